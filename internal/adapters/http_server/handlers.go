// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"rate_sentinel/internal/adapters/observability"
	"rate_sentinel/internal/app"
	"rate_sentinel/internal/domain"
)

// Handlers serves the rule console and the portfolio views. Audit may be nil
// when the journal is disabled.
type Handlers struct {
	Rules     *app.RuleService
	Portfolio *app.PortfolioService
	Audit     domain.AuditLog
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Field  string `json:"field,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1/hotels", func(r chi.Router) {
		r.Get("/", h.listHotels)
		r.Get("/{id}/config", h.getConfig)
		r.Patch("/{id}/config", h.patchConfig)
		r.Put("/{id}/differentials/{roomTypeId}", h.putDifferential)
		r.Post("/{id}/config/save", h.saveConfig)
		r.Delete("/{id}/config/edits", h.discardEdits)
		r.Post("/{id}/activate", h.activate)
		r.Get("/{id}/audit", h.listAudit)
	})

	s.mux.Route("/v1/portfolio", func(r chi.Router) {
		r.Get("/risk", h.riskOverview)
		r.Get("/risk.xlsx", h.riskWorkbook)
		r.Get("/anomalies", h.anomalies)
		r.Get("/dashboard", h.dashboard)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *domain.ValidationError
		fe *domain.FetchError
		p  problem
	)
	switch {
	case errors.As(err, &ve):
		p = problem{Status: http.StatusUnprocessableEntity, Title: "Invalid Config", Detail: ve.Reason, Field: ve.Field}
	case errors.Is(err, domain.ErrStateConflict):
		p = problem{Status: http.StatusConflict, Title: "Conflict", Detail: err.Error()}
	case errors.As(err, &fe):
		p = problem{Status: http.StatusBadGateway, Title: "Backend Unavailable", Detail: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		p = problem{Status: http.StatusNotFound, Title: "Not Found", Detail: err.Error()}
	default:
		p = problem{Status: http.StatusInternalServerError, Title: "Internal Error"}
	}
	p.Type = "about:blank"

	ev := log.Warn()
	if p.Status >= 500 {
		ev = log.Error()
	}
	ev.Err(err).
		Str("route", chi.RouteContext(r.Context()).RoutePattern()).
		Str("kind", observability.LabelErr(err)).
		Int("status", p.Status).
		Msg("request failed")
	writeProblemBody(w, p)
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached answers GETs with a weak ETag and honors If-None-Match.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func writeValue(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal response")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	writeJSON(w, status, body)
}

// decodeBody reads a JSON body with numbers kept as json.Number. An empty
// body is accepted when optional is set.
func decodeBody(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.UseNumber()
	err := dec.Decode(dst)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// ---- Rule console ----

// ConfigView is the console's view of one hotel.
type ConfigView struct {
	HotelID       string                    `json:"hotelId"`
	Phase         app.Phase                 `json:"phase"`
	Dirty         bool                      `json:"dirty"`
	Flags         domain.StatusFlags        `json:"flags"`
	Config        domain.HotelConfig        `json:"config"`
	Differentials []domain.RoomDifferential `json:"differentials"`
}

func (h *Handlers) view(id string, c domain.HotelConfig) ConfigView {
	diffs := h.Rules.Differentials(id)
	if diffs == nil {
		diffs = []domain.RoomDifferential{}
	}
	return ConfigView{
		HotelID:       id,
		Phase:         h.Rules.Phase(id),
		Dirty:         h.Rules.Dirty(id),
		Flags:         domain.ComputeStatusFlags(c),
		Config:        c,
		Differentials: diffs,
	}
}

func (h *Handlers) listHotels(w http.ResponseWriter, r *http.Request) {
	out, err := h.Rules.Overview(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) getConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.Rules.Load(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, h.view(id, c))
}

type fieldUpdate struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

func (h *Handlers) patchConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in fieldUpdate
	if err := decodeBody(r, &in, false); err != nil || in.Path == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", `expected {"path": "...", "value": ...}`)
		return
	}
	// edits land on top of the server state, not a bare template
	if _, err := h.Rules.Load(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Rules.UpdateFieldPath(id, in.Path, in.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeValue(w, http.StatusOK, h.view(id, c))
}

type differentialUpdate struct {
	Field domain.DifferentialField `json:"field"`
	Value domain.NumericText       `json:"value"`
}

func (h *Handlers) putDifferential(w http.ResponseWriter, r *http.Request) {
	id, roomTypeID := chi.URLParam(r, "id"), chi.URLParam(r, "roomTypeId")
	var in differentialUpdate
	if err := decodeBody(r, &in, false); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", `expected {"field": "operator"|"value", "value": ...}`)
		return
	}
	if _, err := h.Rules.Load(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Rules.UpsertDifferential(id, roomTypeID, in.Field, string(in.Value))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeValue(w, http.StatusOK, h.view(id, c))
}

func (h *Handlers) saveConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.Rules.Save(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeValue(w, http.StatusOK, h.view(id, c))
}

func (h *Handlers) discardEdits(w http.ResponseWriter, r *http.Request) {
	h.Rules.Discard(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

type activateRequest struct {
	PmsPropertyID string `json:"pmsPropertyId"`
}

func (h *Handlers) activate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in activateRequest
	if err := decodeBody(r, &in, true); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", `expected {"pmsPropertyId": "..."} or no body`)
		return
	}
	c, err := h.Rules.Activate(r.Context(), id, in.PmsPropertyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeValue(w, http.StatusOK, h.view(id, c))
}

func (h *Handlers) listAudit(w http.ResponseWriter, r *http.Request) {
	if h.Audit == nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "audit journal is disabled")
		return
	}
	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 500 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 500")
			return
		}
		limit = l
	}
	out, err := h.Audit.List(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []domain.AuditEntry{}
	}
	writeCached(w, r, out)
}

// ---- Portfolio ----

// parseFilter reads from, to and hotel; hotel may repeat or be comma separated.
func parseFilter(r *http.Request) domain.MetricsFilter {
	q := r.URL.Query()
	f := domain.MetricsFilter{From: q.Get("from"), To: q.Get("to")}
	for _, v := range q["hotel"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				f.HotelIDs = append(f.HotelIDs, id)
			}
		}
	}
	return f
}

func (h *Handlers) riskOverview(w http.ResponseWriter, r *http.Request) {
	out, err := h.Portfolio.RiskOverview(r.Context(), parseFilter(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) anomalies(w http.ResponseWriter, r *http.Request) {
	out, err := h.Portfolio.AnomalyReport(r.Context(), parseFilter(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	out, err := h.Portfolio.Dashboard(r.Context(), parseFilter(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) riskWorkbook(w http.ResponseWriter, r *http.Request) {
	f := parseFilter(r)
	out, err := h.Portfolio.RiskOverview(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	book, err := RiskWorkbook(out)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer book.Close()

	name := "portfolio-risk"
	if f.From != "" {
		name += "-" + f.From
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if err := book.Write(w); err != nil {
		log.Error().Err(err).Msg("failed to write risk workbook")
	}
}
