// Package platform talks to the Cumulocity REST API to manage the
// registration of a microservice application.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/3cpo-dev/c8ytasks/internal/config"
)

// APIError is a non-2xx answer from the platform.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cumulocity api %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Options tune the HTTP side of the client.
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	// Manifest is the path of the microservice manifest (cumulocity.json).
	Manifest string
}

// Client is a minimal Cumulocity client. Requests are paced but never retried.
type Client struct {
	platform config.Platform
	manifest string
	http     *http.Client
	limiter  *rate.Limiter
}

// New creates a client for the given tenant admin.
func New(p config.Platform, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		platform: p,
		manifest: opts.Manifest,
		http:     &http.Client{Timeout: opts.Timeout},
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// BaseURL returns the platform base URL without trailing slash.
func (c *Client) BaseURL() string { return c.platform.BaseURL }

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.platform.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.platform.Tenant+"/"+c.platform.User, c.platform.Password)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("cumulocity request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: string(bytes.TrimSpace(errorBody))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}
