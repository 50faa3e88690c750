package domain

import "strings"

// StoredConfig is the persisted config as the backend returns it. Pointer and
// nil-able fields distinguish "absent or null" from a real zero value.
type StoredConfig struct {
	SentinelEnabled   *bool                  `json:"sentinelEnabled"`
	GuardrailMax      *NumericText           `json:"guardrailMax"`
	RateFreezePeriod  *NumericText           `json:"rateFreezePeriod"`
	BaseRoomTypeID    *string                `json:"baseRoomTypeId"`
	LastMinuteFloor   *StoredFloor           `json:"lastMinuteFloor"`
	RoomDifferentials []RoomDifferential     `json:"roomDifferentials"`
	MonthlyMinRates   map[Month]*NumericText `json:"monthlyMinRates"`
	MonthlyAggression map[Month]*Aggression  `json:"monthlyAggression"`
	PmsRoomTypes      []PmsRoomType          `json:"pmsRoomTypes"`
}

type StoredFloor struct {
	Enabled    *bool        `json:"enabled"`
	Rate       *NumericText `json:"rate"`
	Days       *NumericText `json:"days"`
	DaysOfWeek []DayOfWeek  `json:"daysOfWeek"`
}

// Merge layers a persisted config over the template: every field comes from
// s when present, else from tmpl. A nil s yields the template verbatim.
// The result always carries all twelve month keys and at most one
// differential per room type.
func Merge(s *StoredConfig, tmpl HotelConfig) HotelConfig {
	out := tmpl.Clone()
	if out.MonthlyMinRates == nil {
		out.MonthlyMinRates = map[Month]NumericText{}
	}
	if out.MonthlyAggression == nil {
		out.MonthlyAggression = map[Month]Aggression{}
	}
	if s == nil {
		return out
	}

	if s.SentinelEnabled != nil {
		out.SentinelEnabled = *s.SentinelEnabled
	}
	if s.GuardrailMax != nil {
		out.GuardrailMax = *s.GuardrailMax
	}
	if s.RateFreezePeriod != nil {
		out.RateFreezePeriod = *s.RateFreezePeriod
	}
	if s.BaseRoomTypeID != nil {
		out.BaseRoomTypeID = *s.BaseRoomTypeID
	}
	if f := s.LastMinuteFloor; f != nil {
		if f.Enabled != nil {
			out.LastMinuteFloor.Enabled = *f.Enabled
		}
		if f.Rate != nil {
			out.LastMinuteFloor.Rate = *f.Rate
		}
		if f.Days != nil {
			out.LastMinuteFloor.Days = *f.Days
		}
		if f.DaysOfWeek != nil {
			out.LastMinuteFloor.DaysOfWeek = normalizeDays(f.DaysOfWeek)
		}
	}
	if s.RoomDifferentials != nil {
		out.RoomDifferentials = dedupeDifferentials(s.RoomDifferentials)
	}
	if s.PmsRoomTypes != nil {
		out.PmsRoomTypes = append([]PmsRoomType{}, s.PmsRoomTypes...)
	}

	for _, m := range Months {
		if v, ok := s.MonthlyMinRates[m]; ok && v != nil {
			out.MonthlyMinRates[m] = *v
		}
		if v, ok := s.MonthlyAggression[m]; ok && v != nil && v.Valid() {
			out.MonthlyAggression[m] = *v
		}
	}
	// unknown keys coming from the template itself are dropped
	for k := range out.MonthlyMinRates {
		if !k.Valid() {
			delete(out.MonthlyMinRates, k)
		}
	}
	for k := range out.MonthlyAggression {
		if !k.Valid() {
			delete(out.MonthlyAggression, k)
		}
	}
	return out
}

// dedupeDifferentials keeps the first position of each room type and the
// last value written for it.
func dedupeDifferentials(in []RoomDifferential) []RoomDifferential {
	out := make([]RoomDifferential, 0, len(in))
	idx := make(map[string]int, len(in))
	for _, d := range in {
		// a rule without a usable operator reads as a markup
		d.Operator = Operator(strings.TrimSpace(string(d.Operator)))
		if !d.Operator.Valid() {
			d.Operator = OperatorPlus
		}
		if i, ok := idx[d.RoomTypeID]; ok {
			out[i] = d
			continue
		}
		idx[d.RoomTypeID] = len(out)
		out = append(out, d)
	}
	return out
}

// normalizeDays drops unknown and repeated days and orders them Monday first.
func normalizeDays(in []DayOfWeek) []DayOfWeek {
	seen := make(map[DayOfWeek]bool, len(in))
	for _, d := range in {
		seen[d] = true
	}
	out := make([]DayOfWeek, 0, len(in))
	for _, d := range Weekdays {
		if seen[d] {
			out = append(out, d)
		}
	}
	return out
}
