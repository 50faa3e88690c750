package app_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"rate_sentinel/internal/domain"
)

// ---- fakes ----

type fakeBackend struct {
	mu      sync.Mutex
	stored  map[string]*domain.StoredConfig
	pmsIDs  map[string]string
	saved   []domain.HotelConfig
	getErr  error
	saveErr error
	syncErr error

	// saveEcho builds the server echo; nil echoes nothing
	saveEcho func(domain.HotelConfig) *domain.StoredConfig
	synced   *domain.StoredConfig

	// when set, SyncPmsFacts signals started and blocks until release is closed
	started chan struct{}
	release chan struct{}

	// same for SaveHotelConfig and GetHotelConfig
	saveStarted chan struct{}
	saveRelease chan struct{}
	getStarted  chan struct{}
	getRelease  chan struct{}

	getCalls  int32
	syncCalls int32

	metrics    []domain.PortfolioMetricPoint
	rows       []domain.OccupancyRow
	metricsErr error
	fetches    int32
}

func (f *fakeBackend) GetHotelConfigs(ctx context.Context) (map[string]domain.StoredConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]domain.StoredConfig{}
	for id, s := range f.stored {
		out[id] = *s
	}
	return out, nil
}

func (f *fakeBackend) GetPmsPropertyIDs(ctx context.Context) (map[string]string, error) {
	return f.pmsIDs, nil
}

func (f *fakeBackend) GetHotelConfig(ctx context.Context, hotelID string) (*domain.StoredConfig, error) {
	atomic.AddInt32(&f.getCalls, 1)
	if f.getStarted != nil {
		f.getStarted <- struct{}{}
		<-f.getRelease
	}
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stored[hotelID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeBackend) SaveHotelConfig(ctx context.Context, hotelID string, c domain.HotelConfig) (*domain.StoredConfig, error) {
	if f.saveStarted != nil {
		f.saveStarted <- struct{}{}
		<-f.saveRelease
	}
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.mu.Lock()
	f.saved = append(f.saved, c)
	f.mu.Unlock()
	if f.saveEcho == nil {
		return nil, nil
	}
	return f.saveEcho(c), nil
}

func (f *fakeBackend) SyncPmsFacts(ctx context.Context, hotelID, pmsPropertyID string) (*domain.StoredConfig, error) {
	atomic.AddInt32(&f.syncCalls, 1)
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	return f.synced, nil
}

func (f *fakeBackend) GetPortfolioMetrics(ctx context.Context, mf domain.MetricsFilter) ([]domain.PortfolioMetricPoint, error) {
	atomic.AddInt32(&f.fetches, 1)
	return f.metrics, f.metricsErr
}

func (f *fakeBackend) GetOccupancyMatrix(ctx context.Context, mf domain.MetricsFilter) ([]domain.OccupancyRow, error) {
	atomic.AddInt32(&f.fetches, 1)
	return f.rows, f.metricsErr
}

// echoStored turns a submitted config back into what a backend would return.
func echoStored(c domain.HotelConfig) *domain.StoredConfig {
	b, _ := json.Marshal(c)
	var s domain.StoredConfig
	_ = json.Unmarshal(b, &s)
	return &s
}

// fakeCache round-trips through JSON like the redis adapter does.
type fakeCache struct {
	mu     sync.Mutex
	store  map[string][]byte
	hits   int
	getErr error
	setErr error
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.getErr != nil {
		return false, c.getErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.setErr != nil {
		return c.setErr
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *fakeAudit) Record(ctx context.Context, e domain.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *fakeAudit) List(ctx context.Context, hotelID string, limit int) ([]domain.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range a.entries {
		if e.HotelID == hotelID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (a *fakeAudit) last() domain.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.entries) == 0 {
		return domain.AuditEntry{}
	}
	return a.entries[len(a.entries)-1]
}

func ptr[T any](v T) *T { return &v }
