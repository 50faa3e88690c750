package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"rate_sentinel/internal/adapters/observability"
	"rate_sentinel/internal/domain"
	"rate_sentinel/internal/risk"
)

type PortfolioService struct {
	backend  domain.MetricsBackend
	cache    domain.Cache
	cacheTTL time.Duration
}

// NewPortfolioService builds the risk read side; cache may be nil.
func NewPortfolioService(b domain.MetricsBackend, c domain.Cache, ttl time.Duration) *PortfolioService {
	return &PortfolioService{backend: b, cache: c, cacheTTL: ttl}
}

type ClassifiedPoint struct {
	domain.PortfolioMetricPoint
	Quadrant risk.Quadrant `json:"quadrant"`
	Label    string        `json:"label"`
}

type RiskSummary struct {
	Total         int                   `json:"total"`
	Counts        map[risk.Quadrant]int `json:"counts"`
	Invalid       int                   `json:"invalid"`
	MeanOccupancy domain.Percent        `json:"meanOccupancy"`
	MeanPressure  domain.Percent        `json:"meanPressure"`
}

type RiskOverview struct {
	Points  []ClassifiedPoint `json:"points"`
	Summary RiskSummary       `json:"summary"`
}

type HotelAnomalies struct {
	HotelID   string         `json:"hotelId"`
	HotelName string         `json:"hotelName"`
	Days      int            `json:"days"`
	Anomalies []risk.Anomaly `json:"anomalies"`
}

type Dashboard struct {
	Risk      RiskOverview     `json:"risk"`
	Anomalies []HotelAnomalies `json:"anomalies"`
}

// RiskOverview classifies every hotel of the portfolio, worst pressure first.
func (s *PortfolioService) RiskOverview(ctx context.Context, f domain.MetricsFilter) (RiskOverview, error) {
	if err := f.Validate(); err != nil {
		return RiskOverview{}, err
	}
	key := "risk:" + f.Key()
	var out RiskOverview
	if s.cacheGet(ctx, key, &out) {
		return out, nil
	}

	points, err := s.backend.GetPortfolioMetrics(ctx, f)
	if err != nil {
		return RiskOverview{}, fetchErr("GetPortfolioMetrics", err)
	}
	out = classifyPortfolio(points)
	for _, p := range out.Points {
		observability.ObserveQuadrant(string(p.Quadrant))
	}
	s.cacheSet(ctx, key, out)
	return out, nil
}

func classifyPortfolio(points []domain.PortfolioMetricPoint) RiskOverview {
	out := RiskOverview{
		Points:  make([]ClassifiedPoint, 0, len(points)),
		Summary: RiskSummary{Total: len(points), Counts: make(map[risk.Quadrant]int, len(risk.Quadrants))},
	}
	for _, q := range risk.Quadrants {
		out.Summary.Counts[q] = 0
	}

	var occ, pressure []float64
	for _, p := range points {
		q := risk.ClassifyPoint(p)
		out.Points = append(out.Points, ClassifiedPoint{PortfolioMetricPoint: p, Quadrant: q, Label: q.Label()})
		if q == risk.Invalid {
			out.Summary.Invalid++
			continue
		}
		out.Summary.Counts[q]++
		occ = append(occ, p.ForwardOccupancyPercent.Float())
		pressure = append(pressure, p.PacingDifficultyPercent.Float())
	}
	out.Summary.MeanOccupancy = domain.Percent(mean(occ))
	out.Summary.MeanPressure = domain.Percent(mean(pressure))

	sort.SliceStable(out.Points, func(i, j int) bool {
		a, b := out.Points[i], out.Points[j]
		av, bv := a.Quadrant != risk.Invalid, b.Quadrant != risk.Invalid
		if av != bv {
			return av
		}
		if av && a.PacingDifficultyPercent != b.PacingDifficultyPercent {
			return a.PacingDifficultyPercent > b.PacingDifficultyPercent
		}
		return a.HotelName < b.HotelName
	})
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// AnomalyReport scans each hotel's daily series; hotels with the most
// anomalies come first.
func (s *PortfolioService) AnomalyReport(ctx context.Context, f domain.MetricsFilter) ([]HotelAnomalies, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	key := "anomalies:" + f.Key()
	var out []HotelAnomalies
	if s.cacheGet(ctx, key, &out) {
		return out, nil
	}

	rows, err := s.backend.GetOccupancyMatrix(ctx, f)
	if err != nil {
		return nil, fetchErr("GetOccupancyMatrix", err)
	}
	out = make([]HotelAnomalies, 0, len(rows))
	for _, r := range rows {
		found := risk.DetectSampleAnomalies(r.DailySamples)
		for _, a := range found {
			observability.ObserveAnomaly(string(a.Kind))
		}
		out = append(out, HotelAnomalies{
			HotelID:   r.HotelID,
			HotelName: r.HotelName,
			Days:      len(r.DailySamples),
			Anomalies: found,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].Anomalies) != len(out[j].Anomalies) {
			return len(out[i].Anomalies) > len(out[j].Anomalies)
		}
		return out[i].HotelName < out[j].HotelName
	})
	s.cacheSet(ctx, key, out)
	return out, nil
}

// Dashboard fetches the risk overview and the anomaly report concurrently.
func (s *PortfolioService) Dashboard(ctx context.Context, f domain.MetricsFilter) (Dashboard, error) {
	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.RiskOverview(gctx, f)
		d.Risk = r
		return err
	})
	g.Go(func() error {
		a, err := s.AnomalyReport(gctx, f)
		d.Anomalies = a
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}
	return d, nil
}

func (s *PortfolioService) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		log.Warn().Str("key", key).Err(err).Msg("portfolio cache read failed")
		return false
	}
	return ok
}

func (s *PortfolioService) cacheSet(ctx context.Context, key string, v any) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, key, v, int(s.cacheTTL.Seconds())); err != nil {
		log.Warn().Str("key", key).Err(err).Msg("portfolio cache write failed")
	}
}
