//go:build integration || !unit

package integration

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"rate_sentinel/internal/adapters/backend"
	server "rate_sentinel/internal/adapters/http_server"
	redisad "rate_sentinel/internal/adapters/redis"
	"rate_sentinel/internal/app"
	"rate_sentinel/internal/domain"
	mysqlrepo "rate_sentinel/internal/storage/mysql"
)

// ---------- helpers ----------

func migrationsDir(t *testing.T) string {
	t.Helper()
	dir := os.Getenv("MIGRATIONS_DIR")
	if dir == "" {
		dir = filepath.Join("..", "..", "migrations")
	}
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}
	return dir
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir(t)
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env:        []string{"MYSQL_ROOT_PASSWORD=root", "MYSQL_DATABASE=sentinel"},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/sentinel?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		resource.GetPort("3306/tcp"))

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// ---------- a tiny revenue backend (keeps wiring simple) ----------

type revenueAPI struct {
	mu      sync.Mutex
	configs map[string]json.RawMessage
	metrics int
}

func (a *revenueAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/portfolio/metrics":
		a.metrics++
		_, _ = io.WriteString(w, `[{"hotelId": "h1", "hotelName": "Harbor", "forwardOccupancyPercent": "48.5%", "pacingDifficultyPercent": 121}]`)
	case r.URL.Path == "/hotels/pms-ids":
		_, _ = io.WriteString(w, `{"h1": "pms-1"}`)
	case r.URL.Path == "/hotels/h1/pms-sync" && r.Method == http.MethodPost:
		_, _ = io.WriteString(w, `{"sentinelEnabled": true, "pmsRoomTypes": [{"roomTypeId": "dbl", "roomTypeName": "Double"}, {"roomTypeId": "ste", "roomTypeName": "Suite"}]}`)
	case strings.HasSuffix(r.URL.Path, "/config"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/hotels/"), "/config")
		if r.Method == http.MethodPut {
			b, _ := io.ReadAll(r.Body)
			a.configs[id] = b
			_, _ = w.Write(b)
			return
		}
		if c, ok := a.configs[id]; ok {
			_, _ = w.Write(c)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (a *revenueAPI) metricCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.metrics
}

// ---------- the test ----------

func TestHTTP_EndToEnd_ActivateEditSave(t *testing.T) {
	db := startMySQL(t)
	applyMigrations(t, db)
	audit := mysqlrepo.New(db)

	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = cache.Close() })

	rev := &revenueAPI{configs: map[string]json.RawMessage{}}
	revSrv := httptest.NewServer(rev)
	defer revSrv.Close()
	client, err := backend.New(revSrv.URL, "e2e", 100)
	if err != nil {
		t.Fatalf("backend: %v", err)
	}

	rules := app.NewRuleService(client, audit, domain.DefaultTemplateOptions())
	portfolio := app.NewPortfolioService(client, cache, time.Minute)
	srv := server.New([]string{"*"})
	srv.MountHandlers(&server.Handlers{Rules: rules, Portfolio: portfolio, Audit: audit})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	do := func(method, path, body string) (int, []byte) {
		t.Helper()
		var rd io.Reader
		if body != "" {
			rd = strings.NewReader(body)
		}
		req, err := http.NewRequest(method, ts.URL+path, rd)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		defer res.Body.Close()
		b, _ := io.ReadAll(res.Body)
		return res.StatusCode, b
	}

	// 1) activate resolves the PMS id and never enables automation
	if code, b := do(http.MethodPost, "/v1/hotels/h1/activate", ""); code != http.StatusOK {
		t.Fatalf("activate status %d: %s", code, b)
	}

	// 2) edit and save
	if code, b := do(http.MethodPatch, "/v1/hotels/h1/config", `{"path": "monthlyMinRates.dec", "value": "135"}`); code != http.StatusOK {
		t.Fatalf("patch status %d: %s", code, b)
	}
	code, b := do(http.MethodPost, "/v1/hotels/h1/config/save", "")
	if code != http.StatusOK {
		t.Fatalf("save status %d: %s", code, b)
	}
	var view struct {
		Phase  string             `json:"phase"`
		Dirty  bool               `json:"dirty"`
		Config domain.HotelConfig `json:"config"`
	}
	if err := json.Unmarshal(b, &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Phase != "active" || view.Dirty || view.Config.SentinelEnabled || view.Config.MonthlyMinRates[domain.December] != "135" {
		t.Fatalf("unexpected view after save: %+v", view)
	}
	if view.Config.BaseRoomTypeID != "dbl" {
		t.Fatalf("base room type = %q", view.Config.BaseRoomTypeID)
	}

	// 3) both operations are journaled
	code, b = do(http.MethodGet, "/v1/hotels/h1/audit", "")
	if code != http.StatusOK {
		t.Fatalf("audit status %d", code)
	}
	var entries []domain.AuditEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	actions := map[domain.AuditAction]domain.AuditOutcome{}
	for _, e := range entries {
		actions[e.Action] = e.Outcome
	}
	if len(entries) != 2 || actions[domain.AuditSave] != domain.OutcomeOK || actions[domain.AuditActivate] != domain.OutcomeOK {
		t.Fatalf("unexpected audit: %+v", entries)
	}

	// 4) portfolio reads are served from redis the second time
	for i := 0; i < 2; i++ {
		if code, b := do(http.MethodGet, "/v1/portfolio/risk?from=2026-11-01", ""); code != http.StatusOK {
			t.Fatalf("risk status %d: %s", code, b)
		}
	}
	if n := rev.metricCalls(); n != 1 {
		t.Fatalf("expected one upstream metrics call, got %d", n)
	}
}
