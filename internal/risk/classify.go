package risk

import (
	"math"

	"rate_sentinel/internal/domain"
)

type Quadrant string

const (
	FillRisk         Quadrant = "fill_risk"
	CriticalRisk     Quadrant = "critical_risk"
	RateStrategyRisk Quadrant = "rate_strategy_risk"
	OnPace           Quadrant = "on_pace"
	// Invalid marks points whose inputs are not finite numbers.
	Invalid Quadrant = "invalid"
)

// Quadrants lists the four real quadrants in display order.
var Quadrants = [4]Quadrant{CriticalRisk, FillRisk, RateStrategyRisk, OnPace}

const (
	OccupancyThreshold = 60.0
	PressureThreshold  = 115.0
)

func (q Quadrant) Label() string {
	switch q {
	case FillRisk:
		return "Fill Risk"
	case CriticalRisk:
		return "Critical Risk"
	case RateStrategyRisk:
		return "Rate Strategy Risk"
	case OnPace:
		return "On Pace"
	}
	return "Invalid"
}

// Classify places a forward occupancy / rate pressure pair in its quadrant.
// Below the occupancy threshold a pressure of exactly 115 is already critical;
// at or above it, pressure must exceed 115 to count as a rate strategy risk.
func Classify(occupancy, pressure float64) Quadrant {
	if !finite(occupancy) || !finite(pressure) {
		return Invalid
	}
	if occupancy < OccupancyThreshold {
		if pressure >= PressureThreshold {
			return CriticalRisk
		}
		return FillRisk
	}
	if pressure > PressureThreshold {
		return RateStrategyRisk
	}
	return OnPace
}

// ClassifyValues is Classify over loosely typed inputs ("52.3%", "118", 61.0).
func ClassifyValues(occupancy, pressure any) Quadrant {
	return Classify(domain.ParsePercent(occupancy), domain.ParsePercent(pressure))
}

func ClassifyPoint(p domain.PortfolioMetricPoint) Quadrant {
	return Classify(p.ForwardOccupancyPercent.Float(), p.PacingDifficultyPercent.Float())
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
