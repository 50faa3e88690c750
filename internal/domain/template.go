package domain

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// TemplateOptions are the presentation defaults a fresh config starts from.
type TemplateOptions struct {
	GuardrailMax        decimal.Decimal
	DifferentialPercent decimal.Decimal
	FloorDays           int
}

func DefaultTemplateOptions() TemplateOptions {
	return TemplateOptions{
		GuardrailMax:        decimal.NewFromInt(400),
		DifferentialPercent: decimal.NewFromInt(15),
		FloorDays:           7,
	}
}

// DefaultTemplate builds the rule template used for hotels without a
// persisted config and for every field a persisted config leaves out.
func DefaultTemplate(o TemplateOptions) HotelConfig {
	c := HotelConfig{
		SentinelEnabled:  false,
		GuardrailMax:     NumericText(o.GuardrailMax.String()),
		RateFreezePeriod: "0",
		LastMinuteFloor: LastMinuteFloor{
			Enabled:    false,
			Rate:       "0",
			Days:       NumericText(strconv.Itoa(o.FloorDays)),
			DaysOfWeek: append([]DayOfWeek(nil), Weekdays[:]...),
		},
		RoomDifferentials: []RoomDifferential{},
		MonthlyMinRates:   make(map[Month]NumericText, len(Months)),
		MonthlyAggression: make(map[Month]Aggression, len(Months)),
		PmsRoomTypes:      []PmsRoomType{},
	}
	for _, m := range Months {
		c.MonthlyMinRates[m] = "0"
		c.MonthlyAggression[m] = AggressionMedium
	}
	return c
}

// EffectiveDifferential is the offset a room type prices at: its stored rule,
// else +defaultPct. The base room type is always +0.
func EffectiveDifferential(c HotelConfig, roomTypeID string, defaultPct decimal.Decimal) RoomDifferential {
	if roomTypeID != "" && roomTypeID == c.BaseRoomTypeID {
		return RoomDifferential{RoomTypeID: roomTypeID, Operator: OperatorPlus, Value: "0"}
	}
	if d, ok := c.Differential(roomTypeID); ok {
		return d
	}
	return RoomDifferential{RoomTypeID: roomTypeID, Operator: OperatorPlus, Value: NumericText(defaultPct.String())}
}
