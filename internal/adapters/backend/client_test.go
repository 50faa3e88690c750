package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"rate_sentinel/internal/adapters/backend"
	"rate_sentinel/internal/domain"
)

func newClient(t *testing.T, h http.Handler) *backend.Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	cl, err := backend.New(ts.URL, "test-key", 100) // high RPS for tests
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return cl
}

func TestClient_GetHotelConfig_RetriesThenSuccess(t *testing.T) {
	var hits int32
	cl := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			// two transient failures
			w.WriteHeader(500)
		default:
			if r.URL.Path != "/hotels/h1/config" || r.Header.Get("X-API-Key") != "test-key" {
				w.WriteHeader(400)
				return
			}
			_, _ = io.WriteString(w, `{"guardrailMax": 350, "sentinelEnabled": true, "monthlyMinRates": {"jan": "90", "feb": null}}`)
		}
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	got, err := cl.GetHotelConfig(ctx, "h1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.GuardrailMax == nil || *got.GuardrailMax != "350" {
		t.Fatalf("guardrailMax not decoded from number: %+v", got.GuardrailMax)
	}
	if got.MonthlyMinRates["feb"] != nil {
		t.Fatalf("null month should decode as nil")
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 calls due to retries, got %d", hits)
	}
}

func TestClient_GetHotelConfig_404(t *testing.T) {
	cl := newClient(t, http.NotFoundHandler())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := cl.GetHotelConfig(ctx, "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_SaveHotelConfig_SendsFullConfig(t *testing.T) {
	var sent domain.HotelConfig
	cl := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(405)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&sent); err != nil {
			w.WriteHeader(400)
			return
		}
		_, _ = io.WriteString(w, `{"sentinelEnabled": true, "guardrailMax": "500.00"}`)
	}))

	cfg := domain.DefaultTemplate(domain.DefaultTemplateOptions())
	cfg.SentinelEnabled = true
	echo, err := cl.SaveHotelConfig(context.Background(), "h1", cfg)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(sent.MonthlyAggression) != 12 || sent.GuardrailMax != "400" {
		t.Fatalf("unexpected payload: %+v", sent)
	}
	if echo.SentinelEnabled == nil || !*echo.SentinelEnabled || *echo.GuardrailMax != "500.00" {
		t.Fatalf("unexpected echo: %+v", echo)
	}
}

func TestClient_MalformedJSON(t *testing.T) {
	cl := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"guardrailMax": true`)
	}))
	_, err := cl.GetHotelConfig(context.Background(), "h1")
	if !errors.Is(err, backend.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestClient_SyncPmsFacts_RequiresRoomTypes(t *testing.T) {
	cl := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["pmsPropertyId"] != "pms-9" {
			w.WriteHeader(400)
			return
		}
		_, _ = io.WriteString(w, `{"pmsRoomTypes": []}`)
	}))
	_, err := cl.SyncPmsFacts(context.Background(), "h1", "pms-9")
	if !errors.Is(err, backend.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for empty catalog, got %v", err)
	}
}

func TestClient_GetPortfolioMetrics_LenientPercents(t *testing.T) {
	cl := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("from") != "2026-11-01" || len(r.URL.Query()["hotel"]) != 2 {
			w.WriteHeader(400)
			return
		}
		_, _ = io.WriteString(w, `[
			{"hotelId": "a", "hotelName": "A", "forwardOccupancyPercent": "52.3%", "pacingDifficultyPercent": 120},
			{"hotelId": "b", "hotelName": "B", "forwardOccupancyPercent": null, "pacingDifficultyPercent": "n/a"}
		]`)
	}))
	f := domain.MetricsFilter{From: "2026-11-01", HotelIDs: []string{"a", "b"}}
	pts, err := cl.GetPortfolioMetrics(context.Background(), f)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if len(pts) != 2 || pts[0].ForwardOccupancyPercent != 52.3 || pts[0].PacingDifficultyPercent != 120 {
		t.Fatalf("unexpected points: %+v", pts)
	}
	if pts[1].ForwardOccupancyPercent.Valid() || pts[1].PacingDifficultyPercent.Valid() {
		t.Fatalf("expected NaN for unparsable values: %+v", pts[1])
	}
}
