package httpserver

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"rate_sentinel/internal/adapters/observability"
)

// Surfaces the API is split into, used as a metrics label and a log field.
const (
	surfaceRules     = "rules"
	surfacePortfolio = "portfolio"
	surfaceOps       = "ops"
)

func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return http.TimeoutHandler(next, d, "timeout") }
}

// requestInfo is what both middlewares read back once the router has matched.
type requestInfo struct {
	route     string
	surface   string
	hotel     string
	roomType  string
	status    int
	duration  time.Duration
	requestID string
}

// serve runs next behind a status-recording writer and resolves the matched
// route afterwards; chi fills the shared route context while routing.
func serve(next http.Handler, w http.ResponseWriter, r *http.Request) requestInfo {
	start := time.Now()
	ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
	next.ServeHTTP(ww, r)

	info := requestInfo{
		status:    ww.Status(),
		duration:  time.Since(start),
		requestID: chimw.GetReqID(r.Context()),
	}
	if info.status == 0 {
		info.status = http.StatusOK
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		info.route = rctx.RoutePattern()
		info.hotel = rctx.URLParam("id")
		info.roomType = rctx.URLParam("roomTypeId")
	}
	if info.route == "" {
		// unmatched paths would explode label cardinality
		info.route = "unmatched"
	}
	info.surface = surfaceOf(info.route)
	return info
}

func surfaceOf(route string) string {
	switch {
	case strings.HasPrefix(route, "/v1/hotels"):
		return surfaceRules
	case strings.HasPrefix(route, "/v1/portfolio"):
		return surfacePortfolio
	default:
		return surfaceOps
	}
}

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := serve(next, w, r)
		observability.ObserveHTTP(info.surface, info.route, r.Method, info.status, info.duration)
	})
}

// Logger writes one access line per request. Rule-console requests carry the
// hotel (and room type) so they join up with the service logs.
func Logger(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := serve(next, w, r)

			ev := l.Info()
			switch {
			case info.status >= http.StatusInternalServerError:
				ev = l.Error()
			case info.status == http.StatusConflict:
				ev = l.Warn()
			}
			if info.hotel != "" {
				ev = ev.Str("hotel", info.hotel)
			}
			if info.roomType != "" {
				ev = ev.Str("room_type", info.roomType)
			}
			if q := r.URL.Query(); info.surface == surfacePortfolio && len(q) > 0 {
				ev = ev.Str("from", q.Get("from")).Str("to", q.Get("to"))
			}
			ev.Str("surface", info.surface).
				Str("route", info.route).
				Str("method", r.Method).
				Int("status", info.status).
				Dur("duration", info.duration).
				Str("request_id", info.requestID).
				Str("remote", clientIP(r)).
				Str("ua", r.UserAgent()).
				Msg("http_request")
		})
	}
}

// chimw.RealIP runs first, so RemoteAddr already holds the forwarded address.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
