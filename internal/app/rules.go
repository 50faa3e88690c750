package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"rate_sentinel/internal/adapters/observability"
	"rate_sentinel/internal/domain"
)

// Phase is where a hotel sits in the activation workflow. It is derived from
// the persisted layer and the in-flight operations, never stored.
type Phase string

const (
	PhaseAvailable Phase = "available"
	PhaseSyncing   Phase = "syncing"
	PhaseActive    Phase = "active"
	PhaseSaving    Phase = "saving"
)

// RuleService owns the per-hotel config layers: persisted (last known server
// state) and local edits. Values are replaced per key, never mutated.
type RuleService struct {
	backend domain.ConfigBackend
	audit   domain.AuditLog
	opts    domain.TemplateOptions
	tmpl    domain.HotelConfig

	mu        sync.Mutex
	persisted map[string]domain.HotelConfig
	edits     map[string]domain.HotelConfig
	syncing   map[string]bool
	saving    map[string]bool

	loads singleflight.Group
}

// NewRuleService wires the engine; audit may be nil.
func NewRuleService(b domain.ConfigBackend, audit domain.AuditLog, opts domain.TemplateOptions) *RuleService {
	return &RuleService{
		backend:   b,
		audit:     audit,
		opts:      opts,
		tmpl:      domain.DefaultTemplate(opts),
		persisted: map[string]domain.HotelConfig{},
		edits:     map[string]domain.HotelConfig{},
		syncing:   map[string]bool{},
		saving:    map[string]bool{},
	}
}

// Load makes sure hotelID has a local-edit layer and returns it. Existing
// edits always win: a hotel already loaded or edited is never refetched.
func (s *RuleService) Load(ctx context.Context, hotelID string) (domain.HotelConfig, error) {
	if c, ok := s.Config(hotelID); ok {
		return c, nil
	}
	v, err, _ := s.loads.Do(hotelID, func() (any, error) {
		stored, err := s.backend.GetHotelConfig(ctx, hotelID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fetchErr("GetHotelConfig", err)
		}
		if err != nil {
			stored = nil
		}
		merged := domain.Merge(stored, s.tmpl)

		s.mu.Lock()
		defer s.mu.Unlock()
		if stored != nil {
			s.persisted[hotelID] = merged
		}
		if cur, ok := s.edits[hotelID]; ok {
			// edited while the fetch was in flight
			return cur.Clone(), nil
		}
		s.edits[hotelID] = merged
		return merged.Clone(), nil
	})
	if err != nil {
		log.Warn().Str("hotel", hotelID).Err(err).Msg("config load failed")
		return domain.HotelConfig{}, err
	}
	return v.(domain.HotelConfig), nil
}

// Config returns a copy of the local-edit layer.
func (s *RuleService) Config(hotelID string) (domain.HotelConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.edits[hotelID]
	if !ok {
		return domain.HotelConfig{}, false
	}
	return c.Clone(), true
}

// Persisted returns a copy of the last known server state.
func (s *RuleService) Persisted(hotelID string) (domain.HotelConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.persisted[hotelID]
	if !ok {
		return domain.HotelConfig{}, false
	}
	return c.Clone(), true
}

// UpdateField sets one field in the local-edit layer, creating the layer from
// the default template when the hotel has none yet.
func (s *RuleService) UpdateField(hotelID string, path domain.FieldPath, value any) (domain.HotelConfig, error) {
	return s.edit(hotelID, func(c domain.HotelConfig) (domain.HotelConfig, error) {
		return path.Apply(c, value)
	})
}

// UpdateFieldPath is UpdateField addressed by a dot path like "lastMinuteFloor.rate".
func (s *RuleService) UpdateFieldPath(hotelID, path string, value any) (domain.HotelConfig, error) {
	p, err := domain.ParseFieldPath(path)
	if err != nil {
		return domain.HotelConfig{}, err
	}
	return s.UpdateField(hotelID, p, value)
}

func (s *RuleService) UpsertDifferential(hotelID, roomTypeID string, field domain.DifferentialField, value string) (domain.HotelConfig, error) {
	return s.edit(hotelID, func(c domain.HotelConfig) (domain.HotelConfig, error) {
		return domain.UpsertDifferential(c, roomTypeID, field, value)
	})
}

func (s *RuleService) edit(hotelID string, fn func(domain.HotelConfig) (domain.HotelConfig, error)) (domain.HotelConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.edits[hotelID]
	if !ok {
		cur = s.tmpl.Clone()
	}
	next, err := fn(cur)
	if err != nil {
		return domain.HotelConfig{}, err
	}
	s.edits[hotelID] = next
	return next.Clone(), nil
}

// Discard reverts local edits to the persisted layer (or drops them when the
// hotel was never persisted).
func (s *RuleService) Discard(hotelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.persisted[hotelID]; ok {
		s.edits[hotelID] = p.Clone()
		return
	}
	delete(s.edits, hotelID)
}

// Dirty reports whether local edits differ from the persisted layer.
func (s *RuleService) Dirty(hotelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.edits[hotelID]
	if !ok {
		return false
	}
	p, ok := s.persisted[hotelID]
	if !ok {
		return true
	}
	return !reflect.DeepEqual(e, p)
}

// StatusFlags derives the badges from the current local-edit layer.
func (s *RuleService) StatusFlags(hotelID string) domain.StatusFlags {
	c, ok := s.Config(hotelID)
	if !ok {
		c = s.tmpl
	}
	return domain.ComputeStatusFlags(c)
}

// Differentials lists the effective differential of every synced room type.
func (s *RuleService) Differentials(hotelID string) []domain.RoomDifferential {
	c, ok := s.Config(hotelID)
	if !ok {
		return nil
	}
	out := make([]domain.RoomDifferential, 0, len(c.PmsRoomTypes))
	for _, rt := range c.PmsRoomTypes {
		out = append(out, domain.EffectiveDifferential(c, rt.RoomTypeID, s.opts.DifferentialPercent))
	}
	return out
}

func (s *RuleService) Phase(hotelID string) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phaseLocked(hotelID)
}

func (s *RuleService) phaseLocked(hotelID string) Phase {
	switch {
	case s.syncing[hotelID]:
		return PhaseSyncing
	case s.saving[hotelID]:
		return PhaseSaving
	}
	if p, ok := s.persisted[hotelID]; ok && p.IsActive() {
		return PhaseActive
	}
	return PhaseAvailable
}

// Save sanitizes and submits the local-edit layer. On success the server echo
// becomes both layers; on any failure both layers are left as they were.
func (s *RuleService) Save(ctx context.Context, hotelID string) (domain.HotelConfig, error) {
	s.mu.Lock()
	cur, ok := s.edits[hotelID]
	if !ok {
		s.mu.Unlock()
		return domain.HotelConfig{}, fmt.Errorf("%w: no local config for hotel %s", domain.ErrNotFound, hotelID)
	}
	if s.saving[hotelID] {
		s.mu.Unlock()
		s.record(ctx, hotelID, domain.AuditSave, domain.OutcomeRejected, "save already in flight", nil)
		return domain.HotelConfig{}, fmt.Errorf("%w: save already running for hotel %s", domain.ErrStateConflict, hotelID)
	}
	cur = cur.Clone()
	s.saving[hotelID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.saving, hotelID)
		s.mu.Unlock()
	}()

	clean, err := domain.Sanitize(cur)
	if err != nil {
		s.record(ctx, hotelID, domain.AuditSave, domain.OutcomeRejected, err.Error(), nil)
		return domain.HotelConfig{}, err
	}
	payload, err := json.Marshal(clean)
	if err != nil {
		// the audit entry goes out without a payload
		log.Warn().Str("hotel", hotelID).Err(err).Msg("audit payload encode failed")
		payload = nil
	}

	echo, err := s.backend.SaveHotelConfig(ctx, hotelID, clean)
	if err != nil {
		err = fetchErr("SaveHotelConfig", err)
		log.Warn().Str("hotel", hotelID).Err(err).Msg("config save failed")
		s.record(ctx, hotelID, domain.AuditSave, domain.OutcomeFailed, err.Error(), payload)
		return domain.HotelConfig{}, err
	}
	saved := clean
	if echo != nil {
		saved = domain.Merge(echo, s.tmpl)
	}

	s.mu.Lock()
	s.persisted[hotelID] = saved
	// edits made while the request was in flight are kept
	if reflect.DeepEqual(s.edits[hotelID], cur) {
		s.edits[hotelID] = saved.Clone()
	}
	s.mu.Unlock()

	s.record(ctx, hotelID, domain.AuditSave, domain.OutcomeOK, "", payload)
	log.Info().Str("hotel", hotelID).Bool("sentinel_enabled", saved.SentinelEnabled).Msg("config saved")
	return saved.Clone(), nil
}

// Activate syncs the PMS room-type catalog for a hotel. An empty
// pmsPropertyID is resolved through the backend's id registry. Only one sync
// per hotel may be in flight; a second request fails with ErrStateConflict.
func (s *RuleService) Activate(ctx context.Context, hotelID, pmsPropertyID string) (domain.HotelConfig, error) {
	if pmsPropertyID == "" {
		ids, err := s.backend.GetPmsPropertyIDs(ctx)
		if err != nil {
			return domain.HotelConfig{}, fetchErr("GetPmsPropertyIds", err)
		}
		pmsPropertyID = ids[hotelID]
		if pmsPropertyID == "" {
			return domain.HotelConfig{}, &domain.ValidationError{Field: "pmsPropertyId", Reason: "no PMS property mapped to hotel " + hotelID}
		}
	}

	s.mu.Lock()
	if s.syncing[hotelID] {
		s.mu.Unlock()
		log.Warn().Str("hotel", hotelID).Msg("activation ignored, sync already in flight")
		observability.ObserveSync(string(domain.OutcomeRejected))
		s.record(ctx, hotelID, domain.AuditActivate, domain.OutcomeRejected, "sync already in flight", nil)
		return domain.HotelConfig{}, fmt.Errorf("%w: sync already running for hotel %s", domain.ErrStateConflict, hotelID)
	}
	s.syncing[hotelID] = true
	var prevBase string
	if e, ok := s.edits[hotelID]; ok {
		prevBase = e.BaseRoomTypeID
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.syncing, hotelID)
		s.mu.Unlock()
	}()

	stored, err := s.backend.SyncPmsFacts(ctx, hotelID, pmsPropertyID)
	var synced domain.HotelConfig
	if err == nil {
		synced = domain.Merge(stored, s.tmpl)
		if stored == nil || !synced.IsActive() {
			err = errors.New("sync returned no room types")
		}
	}
	if err != nil {
		err = fetchErr("SyncPmsFacts", err)
		log.Warn().Str("hotel", hotelID).Str("pms", pmsPropertyID).Err(err).Msg("pms sync failed")
		observability.ObserveSync(string(domain.OutcomeFailed))
		s.record(ctx, hotelID, domain.AuditActivate, domain.OutcomeFailed, err.Error(), nil)
		return domain.HotelConfig{}, err
	}

	seed := synced.Clone()
	// a fresh sync never turns automation on by itself
	seed.SentinelEnabled = false
	if seed.BaseRoomTypeID == "" {
		seed.BaseRoomTypeID = prevBase
	}
	if !hasRoomType(seed.PmsRoomTypes, seed.BaseRoomTypeID) {
		seed.BaseRoomTypeID = seed.PmsRoomTypes[0].RoomTypeID
	}

	s.mu.Lock()
	s.persisted[hotelID] = synced
	s.edits[hotelID] = seed
	s.mu.Unlock()

	observability.ObserveSync(string(domain.OutcomeOK))
	s.record(ctx, hotelID, domain.AuditActivate, domain.OutcomeOK, "pms "+pmsPropertyID, nil)
	log.Info().Str("hotel", hotelID).Int("room_types", len(seed.PmsRoomTypes)).Msg("hotel activated")
	return seed.Clone(), nil
}

func hasRoomType(rts []domain.PmsRoomType, id string) bool {
	if id == "" {
		return false
	}
	for _, rt := range rts {
		if rt.RoomTypeID == id {
			return true
		}
	}
	return false
}

// HotelSummary is one row of the managed-hotel overview.
type HotelSummary struct {
	HotelID       string             `json:"hotelId"`
	PmsPropertyID string             `json:"pmsPropertyId,omitempty"`
	Phase         Phase              `json:"phase"`
	Flags         domain.StatusFlags `json:"flags"`
	RoomTypes     int                `json:"roomTypes"`
	Dirty         bool               `json:"dirty"`
}

// Overview joins the bulk config fetch with the PMS id registry. Hotels
// without a local layer get their persisted layer seeded from the bulk data.
func (s *RuleService) Overview(ctx context.Context) ([]HotelSummary, error) {
	var (
		configs map[string]domain.StoredConfig
		pmsIDs  map[string]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		configs, err = s.backend.GetHotelConfigs(gctx)
		return fetchErr("GetHotelConfigs", err)
	})
	g.Go(func() error {
		var err error
		pmsIDs, err = s.backend.GetPmsPropertyIDs(gctx)
		return fetchErr("GetPmsPropertyIds", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make(map[string]struct{}, len(configs)+len(pmsIDs))
	for id := range configs {
		ids[id] = struct{}{}
	}
	for id := range pmsIDs {
		ids[id] = struct{}{}
	}

	out := make([]HotelSummary, 0, len(ids))
	for id := range ids {
		if sc, ok := configs[id]; ok {
			merged := domain.Merge(&sc, s.tmpl)
			s.mu.Lock()
			if _, loaded := s.edits[id]; !loaded {
				s.persisted[id] = merged
			}
			s.mu.Unlock()
		}
		view, ok := s.Config(id)
		if !ok {
			view, ok = s.Persisted(id)
		}
		if !ok {
			view = s.tmpl
		}
		out = append(out, HotelSummary{
			HotelID:       id,
			PmsPropertyID: pmsIDs[id],
			Phase:         s.Phase(id),
			Flags:         domain.ComputeStatusFlags(view),
			RoomTypes:     len(view.PmsRoomTypes),
			Dirty:         s.Dirty(id),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].Phase == PhaseActive, out[j].Phase == PhaseActive
		if ai != aj {
			return ai
		}
		return out[i].HotelID < out[j].HotelID
	})
	return out, nil
}

// AvailableHotels lists hotels with a PMS mapping but no synced catalog.
func (s *RuleService) AvailableHotels(ctx context.Context) (map[string]string, error) {
	rows, err := s.Overview(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, r := range rows {
		if r.Phase == PhaseAvailable && r.PmsPropertyID != "" {
			out[r.HotelID] = r.PmsPropertyID
		}
	}
	return out, nil
}

func (s *RuleService) record(ctx context.Context, hotelID string, action domain.AuditAction, outcome domain.AuditOutcome, detail string, payload []byte) {
	if action == domain.AuditSave {
		observability.ObserveSave(string(outcome))
	}
	if s.audit == nil {
		return
	}
	e := domain.AuditEntry{HotelID: hotelID, Action: action, Outcome: outcome, Detail: detail, Payload: payload}
	if err := s.audit.Record(ctx, e); err != nil {
		log.Warn().Str("hotel", hotelID).Err(err).Msg("audit record failed")
	}
}

// fetchErr wraps collaborator failures once; nil stays nil.
func fetchErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &domain.FetchError{Op: op, Err: err}
}
