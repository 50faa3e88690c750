package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type DifferentialField string

const (
	DifferentialOperator DifferentialField = "operator"
	DifferentialValue    DifferentialField = "value"
)

// UpsertDifferential returns a copy of c where the rule for roomTypeID has
// field set to value. A missing rule is inserted as {+, 0} first.
func UpsertDifferential(c HotelConfig, roomTypeID string, field DifferentialField, value string) (HotelConfig, error) {
	if strings.TrimSpace(roomTypeID) == "" {
		return c, invalid("roomTypeId", "required")
	}
	name := "roomDifferentials." + roomTypeID + "." + string(field)
	apply := func(d *RoomDifferential) error {
		switch field {
		case DifferentialOperator:
			op := Operator(strings.TrimSpace(value))
			if !op.Valid() {
				return invalid(name, "must be + or -")
			}
			d.Operator = op
		case DifferentialValue:
			d.Value = NumericText(value)
		default:
			return invalid(name, "unknown field")
		}
		return nil
	}

	out := c.Clone()
	for i := range out.RoomDifferentials {
		if out.RoomDifferentials[i].RoomTypeID == roomTypeID {
			if err := apply(&out.RoomDifferentials[i]); err != nil {
				return c, err
			}
			return out, nil
		}
	}
	d := RoomDifferential{RoomTypeID: roomTypeID, Operator: OperatorPlus, Value: "0"}
	if err := apply(&d); err != nil {
		return c, err
	}
	out.RoomDifferentials = append(out.RoomDifferentials, d)
	return out, nil
}

type StatusFlags struct {
	HasFloorRate     bool `json:"hasFloorRate"`
	HasRateFreeze    bool `json:"hasRateFreeze"`
	HasDifferentials bool `json:"hasDifferentials"`
}

func ComputeStatusFlags(c HotelConfig) StatusFlags {
	freeze, err := decimal.NewFromString(strings.TrimSpace(string(c.RateFreezePeriod)))
	return StatusFlags{
		HasFloorRate:     c.LastMinuteFloor.Enabled,
		HasRateFreeze:    err == nil && freeze.IsPositive(),
		HasDifferentials: len(c.RoomDifferentials) > 0,
	}
}

// Sanitize prepares c for submission: blank numeric text becomes "0" and
// every numeric field must then parse as a non-negative number. c itself is
// left untouched.
func Sanitize(c HotelConfig) (HotelConfig, error) {
	out := c.Clone()
	var err error
	if out.GuardrailMax, err = coerce("guardrailMax", out.GuardrailMax, false); err != nil {
		return c, err
	}
	if out.RateFreezePeriod, err = coerce("rateFreezePeriod", out.RateFreezePeriod, true); err != nil {
		return c, err
	}
	if out.LastMinuteFloor.Rate, err = coerce("lastMinuteFloor.rate", out.LastMinuteFloor.Rate, false); err != nil {
		return c, err
	}
	if out.LastMinuteFloor.Days, err = coerce("lastMinuteFloor.days", out.LastMinuteFloor.Days, true); err != nil {
		return c, err
	}
	for i, d := range out.RoomDifferentials {
		field := "roomDifferentials." + d.RoomTypeID
		if !d.Operator.Valid() {
			return c, invalid(field+".operator", "must be + or -")
		}
		if out.RoomDifferentials[i].Value, err = coerce(field+".value", d.Value, false); err != nil {
			return c, err
		}
	}
	for m, v := range out.MonthlyMinRates {
		if out.MonthlyMinRates[m], err = coerce("monthlyMinRates."+string(m), v, false); err != nil {
			return c, err
		}
	}
	for m, a := range out.MonthlyAggression {
		if !a.Valid() {
			return c, invalid("monthlyAggression."+string(m), "must be low, medium or high")
		}
	}
	return out, nil
}

func coerce(field string, t NumericText, whole bool) (NumericText, error) {
	s := strings.TrimSpace(string(t))
	if s == "" {
		return "0", nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return t, invalid(field, "not a number")
	}
	if d.IsNegative() {
		return t, invalid(field, "must not be negative")
	}
	if whole && !d.IsInteger() {
		return t, invalid(field, "must be a whole number")
	}
	return NumericText(s), nil
}
