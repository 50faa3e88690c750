package risk

import "rate_sentinel/internal/domain"

type AnomalyKind string

const (
	Drop       AnomalyKind = "drop"
	Persistent AnomalyKind = "persistent"
	Overbooked AnomalyKind = "overbooked"
)

const (
	DropThreshold    = 15.0  // percentage points lost day over day
	LowOccupancy     = 50.0  // below this a day counts toward a low run
	PersistentRunLen = 7     // consecutive low days that make a run persistent
	OverbookedAbove  = 100.0 // occupancy strictly above this is overbooked
)

type Anomaly struct {
	DayIndex int         `json:"dayIndex"`
	Kind     AnomalyKind `json:"kind"`
}

// DetectAnomalies scans a chronological occupancy series (index 0 = today).
// Kinds are evaluated independently, so one day can carry several; results
// are ordered by day, then drop, persistent, overbooked.
func DetectAnomalies(occupancy []float64) []Anomaly {
	out := []Anomaly{}
	lowRun := 0
	for i, occ := range occupancy {
		if i > 0 && occupancy[i-1]-occ >= DropThreshold {
			out = append(out, Anomaly{DayIndex: i, Kind: Drop})
		}

		if occ < LowOccupancy {
			lowRun++
			if lowRun == PersistentRunLen {
				out = append(out, Anomaly{DayIndex: i, Kind: Persistent})
			}
		} else {
			// NaN lands here as well and breaks the run
			lowRun = 0
		}

		if occ > OverbookedAbove {
			out = append(out, Anomaly{DayIndex: i, Kind: Overbooked})
		}
	}
	return out
}

func DetectSampleAnomalies(samples []domain.DailyOccupancySample) []Anomaly {
	occ := make([]float64, len(samples))
	for i, s := range samples {
		occ[i] = s.OccupancyPercent.Float()
	}
	return DetectAnomalies(occ)
}
