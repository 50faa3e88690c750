package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type fieldKind int

const (
	fieldSentinelEnabled fieldKind = iota + 1
	fieldGuardrailMax
	fieldRateFreezePeriod
	fieldBaseRoomType
	fieldFloorEnabled
	fieldFloorRate
	fieldFloorDays
	fieldFloorDaysOfWeek
	fieldMonthlyMinRate
	fieldMonthlyAggression
)

// FieldPath addresses one editable leaf of a HotelConfig. The zero value is
// invalid; build one with ParseFieldPath or the Path* values.
type FieldPath struct {
	kind  fieldKind
	month Month
}

var (
	PathSentinelEnabled  = FieldPath{kind: fieldSentinelEnabled}
	PathGuardrailMax     = FieldPath{kind: fieldGuardrailMax}
	PathRateFreezePeriod = FieldPath{kind: fieldRateFreezePeriod}
	PathBaseRoomType     = FieldPath{kind: fieldBaseRoomType}
	PathFloorEnabled     = FieldPath{kind: fieldFloorEnabled}
	PathFloorRate        = FieldPath{kind: fieldFloorRate}
	PathFloorDays        = FieldPath{kind: fieldFloorDays}
	PathFloorDaysOfWeek  = FieldPath{kind: fieldFloorDaysOfWeek}
)

func MonthlyMinRatePath(m Month) FieldPath {
	return FieldPath{kind: fieldMonthlyMinRate, month: m}
}

func MonthlyAggressionPath(m Month) FieldPath {
	return FieldPath{kind: fieldMonthlyAggression, month: m}
}

var staticPaths = map[string]FieldPath{
	"sentinelEnabled":            PathSentinelEnabled,
	"guardrailMax":               PathGuardrailMax,
	"rateFreezePeriod":           PathRateFreezePeriod,
	"baseRoomTypeId":             PathBaseRoomType,
	"lastMinuteFloor.enabled":    PathFloorEnabled,
	"lastMinuteFloor.rate":       PathFloorRate,
	"lastMinuteFloor.days":       PathFloorDays,
	"lastMinuteFloor.daysOfWeek": PathFloorDaysOfWeek,
}

// ParseFieldPath resolves a dot-separated address such as
// "lastMinuteFloor.rate" or "monthlyAggression.jul".
func ParseFieldPath(s string) (FieldPath, error) {
	s = strings.TrimSpace(s)
	if p, ok := staticPaths[s]; ok {
		return p, nil
	}
	head, tail, ok := strings.Cut(s, ".")
	if ok && Month(tail).Valid() {
		switch head {
		case "monthlyMinRates":
			return MonthlyMinRatePath(Month(tail)), nil
		case "monthlyAggression":
			return MonthlyAggressionPath(Month(tail)), nil
		}
	}
	return FieldPath{}, &ValidationError{Field: s, Reason: "unknown field", Err: ErrUnknownField}
}

func (p FieldPath) String() string {
	switch p.kind {
	case fieldMonthlyMinRate:
		return "monthlyMinRates." + string(p.month)
	case fieldMonthlyAggression:
		return "monthlyAggression." + string(p.month)
	}
	for k, v := range staticPaths {
		if v == p {
			return k
		}
	}
	return ""
}

// Apply returns a copy of c with the addressed field set to value. c itself is
// never modified. Nil maps along the path are created empty first.
func (p FieldPath) Apply(c HotelConfig, value any) (HotelConfig, error) {
	out := c.Clone()
	name := p.String()
	switch p.kind {
	case fieldSentinelEnabled, fieldFloorEnabled:
		b, err := asBool(name, value)
		if err != nil {
			return c, err
		}
		if p.kind == fieldSentinelEnabled {
			out.SentinelEnabled = b
		} else {
			out.LastMinuteFloor.Enabled = b
		}
	case fieldGuardrailMax, fieldRateFreezePeriod, fieldFloorRate, fieldFloorDays:
		t, err := asText(name, value)
		if err != nil {
			return c, err
		}
		switch p.kind {
		case fieldGuardrailMax:
			out.GuardrailMax = NumericText(t)
		case fieldRateFreezePeriod:
			out.RateFreezePeriod = NumericText(t)
		case fieldFloorRate:
			out.LastMinuteFloor.Rate = NumericText(t)
		default:
			out.LastMinuteFloor.Days = NumericText(t)
		}
	case fieldBaseRoomType:
		t, err := asText(name, value)
		if err != nil {
			return c, err
		}
		out.BaseRoomTypeID = t
	case fieldFloorDaysOfWeek:
		days, err := asDays(name, value)
		if err != nil {
			return c, err
		}
		out.LastMinuteFloor.DaysOfWeek = days
	case fieldMonthlyMinRate:
		t, err := asText(name, value)
		if err != nil {
			return c, err
		}
		if out.MonthlyMinRates == nil {
			out.MonthlyMinRates = map[Month]NumericText{}
		}
		out.MonthlyMinRates[p.month] = NumericText(t)
	case fieldMonthlyAggression:
		t, err := asText(name, value)
		if err != nil {
			return c, err
		}
		a := Aggression(strings.ToLower(t))
		if !a.Valid() {
			return c, invalid(name, "must be low, medium or high")
		}
		if out.MonthlyAggression == nil {
			out.MonthlyAggression = map[Month]Aggression{}
		}
		out.MonthlyAggression[p.month] = a
	default:
		return c, &ValidationError{Reason: "unknown field", Err: ErrUnknownField}
	}
	return out, nil
}

func asBool(field string, v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, invalid(field, "must be true or false")
		}
		return b, nil
	}
	return false, invalid(field, fmt.Sprintf("unexpected %T", v))
}

func asText(field string, v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case NumericText:
		return string(t), nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case nil:
		return "", nil
	}
	return "", invalid(field, fmt.Sprintf("unexpected %T", v))
}

func asDays(field string, v any) ([]DayOfWeek, error) {
	var raw []string
	switch t := v.(type) {
	case []DayOfWeek:
		for _, d := range t {
			raw = append(raw, string(d))
		}
	case []string:
		raw = t
	case []any:
		for _, it := range t {
			s, ok := it.(string)
			if !ok {
				return nil, invalid(field, "days must be strings")
			}
			raw = append(raw, s)
		}
	case nil:
	default:
		return nil, invalid(field, fmt.Sprintf("unexpected %T", v))
	}
	days := make([]DayOfWeek, 0, len(raw))
	for _, s := range raw {
		d := DayOfWeek(strings.ToLower(strings.TrimSpace(s)))
		if !d.Valid() {
			return nil, invalid(field, "unknown day "+s)
		}
		days = append(days, d)
	}
	return normalizeDays(days), nil
}
