package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// cacheBlob is one row of the cache_blobs table.
type cacheBlob struct {
	bun.BaseModel `bun:"table:cache_blobs,alias:cb"`

	BlobKey   string    `bun:"blob_key,pk"`
	Payload   []byte    `bun:"payload,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// BunStore stores blobs in a relational table through bun.
type BunStore struct {
	db *bun.DB
}

// OpenSQL connects to a sqlite or postgres database.
func OpenSQL(driver, dsn string) (*BunStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("blob store driver %s requires a DSN", driver)
	}

	switch driver {
	case DriverSQLite:
		sqldb, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, err
		}
		// sqlite allows a single writer
		sqldb.SetMaxOpenConns(1)
		return NewBunStore(bun.NewDB(sqldb, sqlitedialect.New())), nil
	case DriverPostgres:
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, err
		}
		return NewBunStore(bun.NewDB(sqldb, pgdialect.New())), nil
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

// NewBunStore wraps an existing bun database.
func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

// EnsureSchema creates the cache_blobs table when missing.
func (s *BunStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*cacheBlob)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (s *BunStore) ReadBlob(ctx context.Context, key string) ([]byte, bool, error) {
	row := new(cacheBlob)
	err := s.db.NewSelect().
		Model(row).
		Where("blob_key = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return row.Payload, true, nil
}

func (s *BunStore) WriteBlob(ctx context.Context, key string, blob []byte) error {
	row := &cacheBlob{
		BlobKey:   key,
		Payload:   blob,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (blob_key) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *BunStore) DeleteBlob(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*cacheBlob)(nil)).
		Where("blob_key = ?", key).
		Exec(ctx)
	return err
}

func (s *BunStore) Close() error {
	return s.db.Close()
}
