package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"rate_sentinel/internal/domain"
)

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func valJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// Repo is the rule-change audit journal; it implements domain.AuditLog.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Record(ctx context.Context, e domain.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, insertAuditSQL,
		e.ID,
		e.HotelID,
		string(e.Action),
		string(e.Outcome),
		valStr(e.Detail),
		valJSON(e.Payload),
		e.CreatedAt,
	)
	return err
}

func (r *Repo) List(ctx context.Context, hotelID string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, listAuditSQL, hotelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.AuditEntry{}
	for rows.Next() {
		var (
			e               domain.AuditEntry
			action, outcome string
			detail          sql.NullString
			payload         sql.RawBytes
		)
		if err := rows.Scan(&e.ID, &e.HotelID, &action, &outcome, &detail, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = domain.AuditAction(action)
		e.Outcome = domain.AuditOutcome(outcome)
		if detail.Valid {
			e.Detail = detail.String
		}
		if len(payload) > 0 {
			e.Payload = append([]byte(nil), payload...)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
