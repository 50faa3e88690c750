package domain

import (
	"context"
	"time"
)

// ConfigBackend is the persistence and PMS side of the revenue backend.
type ConfigBackend interface {
	GetHotelConfigs(ctx context.Context) (map[string]StoredConfig, error)
	GetPmsPropertyIDs(ctx context.Context) (map[string]string, error)
	// GetHotelConfig returns ErrNotFound when the hotel has no record yet.
	GetHotelConfig(ctx context.Context, hotelID string) (*StoredConfig, error)
	SaveHotelConfig(ctx context.Context, hotelID string, c HotelConfig) (*StoredConfig, error)
	SyncPmsFacts(ctx context.Context, hotelID, pmsPropertyID string) (*StoredConfig, error)
}

// MetricsBackend serves the portfolio time series.
type MetricsBackend interface {
	GetPortfolioMetrics(ctx context.Context, f MetricsFilter) ([]PortfolioMetricPoint, error)
	GetOccupancyMatrix(ctx context.Context, f MetricsFilter) ([]OccupancyRow, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type AuditAction string

const (
	AuditSave     AuditAction = "save"
	AuditActivate AuditAction = "activate"
)

type AuditOutcome string

const (
	OutcomeOK       AuditOutcome = "ok"
	OutcomeFailed   AuditOutcome = "failed"
	OutcomeRejected AuditOutcome = "rejected"
)

// AuditEntry records one save or activation attempt.
type AuditEntry struct {
	ID        string       `json:"id"`
	HotelID   string       `json:"hotelId"`
	Action    AuditAction  `json:"action"`
	Outcome   AuditOutcome `json:"outcome"`
	Detail    string       `json:"detail,omitempty"`
	Payload   []byte       `json:"-"`
	CreatedAt time.Time    `json:"createdAt"`
}

type AuditLog interface {
	Record(ctx context.Context, e AuditEntry) error
	List(ctx context.Context, hotelID string, limit int) ([]AuditEntry, error)
}
