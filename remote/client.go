package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-dashboard-cache/cache"
)

// Response is a decoded success response of the analytics API.
type Response struct {
	Data   json.RawMessage
	Status int
}

// Operation performs one remote call with the given query parameters.
type Operation func(ctx context.Context, params cache.Params) (*Response, error)

// maxErrorBody bounds how much of an error response is read for its detail.
const maxErrorBody = 64 << 10

// Client is an HTTP client for the analytics API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  logrus.FieldLogger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per request timeout of the default http.Client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithClientLogger sets the logger used for request diagnostics.
func WithClientLogger(logger logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid analytics api url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid analytics api url %q: scheme and host are required", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Operation returns an Operation issuing GET requests to path. Segments of
// the form {name} are filled from params and removed from the query string.
func (c *Client) Operation(path string) Operation {
	return func(ctx context.Context, params cache.Params) (*Response, error) {
		return c.Get(ctx, path, params)
	}
}

// Get issues a GET request to path with params as the query string.
func (c *Client) Get(ctx context.Context, path string, params cache.Params) (*Response, error) {
	params = params.Normalize()
	resolved, query, err := expandPath(path, params)
	if err != nil {
		return nil, err
	}

	endpoint := *c.baseURL
	endpoint.Path = c.baseURL.Path + resolved
	endpoint.RawQuery = encodeQuery(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, cache.NewTransportError(err, path)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, cache.NewTransportError(err, path)
	}
	defer res.Body.Close()

	log := c.logger.WithFields(logrus.Fields{
		"path":     resolved,
		"status":   res.StatusCode,
		"duration": time.Since(start),
	})

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		log.Debug("analytics api returned an error status")
		return nil, cache.NewLogicError(res.StatusCode, errorDetail(body), path)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, cache.NewTransportError(err, path)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, cache.NewMalformedResponseError(errors.New("response body is empty"), path)
	}
	if !json.Valid(body) {
		return nil, cache.NewMalformedResponseError(fmt.Errorf("response body is not valid json (%d bytes)", len(body)), path)
	}

	log.WithField("bytes", len(body)).Debug("analytics api response")
	return &Response{Data: json.RawMessage(body), Status: res.StatusCode}, nil
}

// expandPath substitutes {name} segments and returns the remaining params.
func expandPath(path string, params cache.Params) (string, cache.Params, error) {
	if !strings.Contains(path, "{") {
		return path, params, nil
	}

	query := params.Clone()
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
			continue
		}
		name := seg[1 : len(seg)-1]
		value := query.String(name)
		if value == "" {
			return "", nil, cache.NewUnknownTargetError("path parameter", name)
		}
		segments[i] = url.PathEscape(value)
		delete(query, name)
	}
	return strings.Join(segments, "/"), query, nil
}

// encodeQuery serializes params sorted by name. Lists are comma joined and
// nil values are skipped.
func encodeQuery(params cache.Params) string {
	if len(params) == 0 {
		return ""
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	values := url.Values{}
	for _, name := range names {
		switch v := params[name].(type) {
		case nil:
			continue
		case []string:
			values.Set(name, strings.Join(v, ","))
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			values.Set(name, strings.Join(parts, ","))
		case time.Time:
			values.Set(name, v.Format("2006-01-02"))
		default:
			values.Set(name, fmt.Sprint(v))
		}
	}
	return values.Encode()
}

// errorDetail extracts the "detail" message of an error body, if any.
func errorDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		return text
	}
	return string(payload.Detail)
}
