// internal/adapters/backend/client.go
package backend

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"rate_sentinel/internal/adapters/observability"
	"rate_sentinel/internal/domain"
)

// Client talks to the revenue backend that owns hotel configs, PMS sync and
// portfolio metrics. It implements domain.ConfigBackend and domain.MetricsBackend.
type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

func New(base, key string, rps int) (*Client, error) {
	if base == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 20 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// ---- Config / PMS ----

func (c *Client) GetHotelConfigs(ctx context.Context) (map[string]domain.StoredConfig, error) {
	var out map[string]domain.StoredConfig
	if err := c.do(ctx, http.MethodGet, "/hotels/configs", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]domain.StoredConfig{}
	}
	return out, nil
}

func (c *Client) GetPmsPropertyIDs(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	if err := c.do(ctx, http.MethodGet, "/hotels/pms-ids", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]string{}
	}
	return out, nil
}

func (c *Client) GetHotelConfig(ctx context.Context, hotelID string) (*domain.StoredConfig, error) {
	var out *domain.StoredConfig
	if err := c.do(ctx, http.MethodGet, "/hotels/"+url.PathEscape(hotelID)+"/config", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		// a null body is the backend's "no record"
		return nil, ErrNotFound
	}
	return out, nil
}

func (c *Client) SaveHotelConfig(ctx context.Context, hotelID string, cfg domain.HotelConfig) (*domain.StoredConfig, error) {
	var out *domain.StoredConfig
	err := c.do(ctx, http.MethodPut, "/hotels/"+url.PathEscape(hotelID)+"/config", cfg, &out)
	return out, err
}

func (c *Client) SyncPmsFacts(ctx context.Context, hotelID, pmsPropertyID string) (*domain.StoredConfig, error) {
	body := map[string]string{"pmsPropertyId": pmsPropertyID}
	var out *domain.StoredConfig
	if err := c.do(ctx, http.MethodPost, "/hotels/"+url.PathEscape(hotelID)+"/pms-sync", body, &out); err != nil {
		return nil, err
	}
	if out == nil || len(out.PmsRoomTypes) == 0 {
		return nil, fmt.Errorf("%w: sync response carries no room types", ErrMalformed)
	}
	return out, nil
}

// ---- Metrics ----

func (c *Client) GetPortfolioMetrics(ctx context.Context, f domain.MetricsFilter) ([]domain.PortfolioMetricPoint, error) {
	var out []domain.PortfolioMetricPoint
	if err := c.do(ctx, http.MethodGet, "/portfolio/metrics?"+filterQuery(f), nil, &out); err != nil {
		return nil, err
	}
	for i, p := range out {
		if p.HotelID == "" {
			return nil, fmt.Errorf("%w: metric point %d has no hotelId", ErrMalformed, i)
		}
	}
	return out, nil
}

func (c *Client) GetOccupancyMatrix(ctx context.Context, f domain.MetricsFilter) ([]domain.OccupancyRow, error) {
	var out []domain.OccupancyRow
	if err := c.do(ctx, http.MethodGet, "/portfolio/occupancy?"+filterQuery(f), nil, &out); err != nil {
		return nil, err
	}
	for i, r := range out {
		if r.HotelID == "" {
			return nil, fmt.Errorf("%w: occupancy row %d has no hotelId", ErrMalformed, i)
		}
	}
	return out, nil
}

func filterQuery(f domain.MetricsFilter) string {
	q := url.Values{}
	if f.From != "" {
		q.Set("from", f.From)
	}
	if f.To != "" {
		q.Set("to", f.To)
	}
	for _, id := range f.HotelIDs {
		q.Add("hotel", id)
	}
	return q.Encode()
}

// ---- Internals ----

var (
	// ErrNotFound is domain.ErrNotFound so callers can fall back to defaults.
	ErrNotFound     = domain.ErrNotFound
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrForbidden    = errors.New("backend: forbidden")
	ErrMalformed    = errors.New("backend: malformed response")
)

// do performs one request with client-side rate limiting, retries, and JSON
// decode into out. Retries on 429 and transient 5xx, honoring Retry-After.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		payload = b
	}
	endpoint := path
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		// build a fresh request each attempt
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
		if err != nil {
			return err
		}
		if c.key != "" {
			req.Header.Set("X-API-Key", c.key)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "rate-sentinel/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("backend", endpoint, 0, time.Since(start))
			// network error or context canceled
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("backend", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("%w: %s %s: %v", ErrMalformed, method, endpoint, err)
			}
			return nil

		case http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			// 4xx validation errors come back with a short message body
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns 200ms, 400ms, 800ms... plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
