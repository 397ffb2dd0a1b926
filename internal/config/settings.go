// Package config loads the settings of the dashboard cache binary from the
// environment and an optional .env file.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-dashboard-cache/cache"
	"github.com/goliatone/go-dashboard-cache/fallback"
	"github.com/goliatone/go-dashboard-cache/internal/blobstore"
)

// Settings is the full runtime configuration.
type Settings struct {
	APIBaseURL string        `env:"API_BASE_URL" envDefault:"http://localhost:8000"`
	APITimeout time.Duration `env:"API_TIMEOUT" envDefault:"30s"`
	HTTPAddr   string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel   string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat  string        `env:"LOG_FORMAT" envDefault:"json"`

	// StoreAliases has the form "canonical=alias1,alias2;other=alias".
	StoreAliases string `env:"STORE_ALIASES"`

	Cache CacheSettings `envPrefix:"CACHE_"`
	Blob  BlobSettings  `envPrefix:"BLOB_"`
}

// CacheSettings mirrors cache.Config.
type CacheSettings struct {
	Capacity           int           `env:"CAPACITY" envDefault:"10000"`
	NumShards          int           `env:"SHARDS" envDefault:"64"`
	MaxAge             time.Duration `env:"MAX_AGE" envDefault:"30m"`
	EvictionPercentage int           `env:"EVICTION_PERCENTAGE" envDefault:"10"`
	SaveInterval       time.Duration `env:"SAVE_INTERVAL" envDefault:"60s"`
	DurableMaxAge      time.Duration `env:"DURABLE_MAX_AGE" envDefault:"0s"`
	CriticalPatterns   []string      `env:"CRITICAL_PATTERNS" envDefault:"sales,kpi" envSeparator:","`
	PurgeOnLoad        []string      `env:"PURGE_ON_LOAD" envDefault:"store_list" envSeparator:","`
	BlobKey            string        `env:"BLOB_KEY" envDefault:"LePain_dashboard_cache"`
	Codec              string        `env:"CODEC" envDefault:"json"`
}

// DefaultSQLiteDSN is the database file used by the sqlite driver when
// BLOB_DSN is empty.
const DefaultSQLiteDSN = "file:dashboard-cache.db?cache=shared"

// BlobSettings selects the durable tier storage.
type BlobSettings struct {
	Driver         string        `env:"DRIVER" envDefault:"sqlite"`
	DSN            string        `env:"DSN"`
	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	Prefix         string        `env:"PREFIX" envDefault:"dashboard"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"5s"`
}

// Load reads the given .env files, when present, then the environment.
// Variables already set in the environment win over .env values.
func Load(files ...string) (Settings, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		// a missing .env file is normal outside development
		_ = godotenv.Load(file)
	}
	return Parse()
}

// Parse reads settings from the environment only.
func Parse() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, goerrors.Wrap(err, goerrors.CategoryValidation, "parse environment")
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the settings.
func (s Settings) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.APIBaseURL, validation.Required, validation.By(absoluteURL)),
		validation.Field(&s.APITimeout, validation.Min(time.Duration(0))),
		validation.Field(&s.HTTPAddr, validation.Required),
		validation.Field(&s.LogLevel, validation.Required, validation.By(logLevel)),
		validation.Field(&s.LogFormat, validation.In("json", "text")),
		validation.Field(&s.StoreAliases, validation.By(aliases)),
		validation.Field(&s.Blob),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid settings")
	}
	if err := s.CacheConfig().Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid cache settings")
	}
	return nil
}

// Validate checks the blob storage selection.
func (b BlobSettings) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Driver, validation.In(
			"", blobstore.DriverNone, blobstore.DriverMemory,
			blobstore.DriverSQLite, blobstore.DriverPostgres, blobstore.DriverRedis,
		)),
		validation.Field(&b.DSN, validation.When(b.Driver == blobstore.DriverPostgres, validation.Required)),
		validation.Field(&b.RedisAddr, validation.When(b.Driver == blobstore.DriverRedis, validation.Required)),
		validation.Field(&b.RedisDB, validation.Min(0)),
	)
}

// CacheConfig converts the cache settings into a cache.Config.
func (s Settings) CacheConfig() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Capacity = s.Cache.Capacity
	cfg.NumShards = s.Cache.NumShards
	cfg.MaxAge = s.Cache.MaxAge
	cfg.EvictionPercentage = s.Cache.EvictionPercentage
	cfg.SaveInterval = s.Cache.SaveInterval
	cfg.DurableMaxAge = s.Cache.DurableMaxAge
	cfg.CriticalPatterns = trimAll(s.Cache.CriticalPatterns)
	cfg.PurgeOnLoad = trimAll(s.Cache.PurgeOnLoad)
	cfg.BlobKey = s.Cache.BlobKey
	cfg.Codec = s.Cache.Codec
	return cfg
}

// BlobOptions converts the blob settings into blobstore.Options.
func (s Settings) BlobOptions() blobstore.Options {
	dsn := s.Blob.DSN
	if dsn == "" && s.Blob.Driver == blobstore.DriverSQLite {
		dsn = DefaultSQLiteDSN
	}
	return blobstore.Options{
		Driver:         s.Blob.Driver,
		DSN:            dsn,
		RedisAddr:      s.Blob.RedisAddr,
		RedisPassword:  s.Blob.RedisPassword,
		RedisDB:        s.Blob.RedisDB,
		Prefix:         s.Blob.Prefix,
		ConnectTimeout: s.Blob.ConnectTimeout,
	}
}

// Level returns the parsed log level.
func (s Settings) Level() logrus.Level {
	level, err := logrus.ParseLevel(s.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// Aliases returns the parsed STORE_ALIASES table.
func (s Settings) Aliases() (map[string][]string, error) {
	return fallback.ParseAliases(s.StoreAliases)
}

func absoluteURL(value any) error {
	raw, _ := value.(string)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return validation.NewError("validation_absolute_url", "must be an absolute URL")
	}
	return nil
}

func logLevel(value any) error {
	raw, _ := value.(string)
	if _, err := logrus.ParseLevel(raw); err != nil {
		return validation.NewError("validation_log_level", "must be a logrus level")
	}
	return nil
}

func aliases(value any) error {
	raw, _ := value.(string)
	if _, err := fallback.ParseAliases(raw); err != nil {
		return validation.NewError("validation_store_aliases", "must look like canonical=alias1,alias2")
	}
	return nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
