package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

type Month string

const (
	January   Month = "jan"
	February  Month = "feb"
	March     Month = "mar"
	April     Month = "apr"
	May       Month = "may"
	June      Month = "jun"
	July      Month = "jul"
	August    Month = "aug"
	September Month = "sep"
	October   Month = "oct"
	November  Month = "nov"
	December  Month = "dec"
)

// Months is the canonical key set of every monthly map.
var Months = [12]Month{
	January, February, March, April, May, June,
	July, August, September, October, November, December,
}

func (m Month) Valid() bool {
	for _, k := range Months {
		if k == m {
			return true
		}
	}
	return false
}

type DayOfWeek string

const (
	Monday    DayOfWeek = "mon"
	Tuesday   DayOfWeek = "tue"
	Wednesday DayOfWeek = "wed"
	Thursday  DayOfWeek = "thu"
	Friday    DayOfWeek = "fri"
	Saturday  DayOfWeek = "sat"
	Sunday    DayOfWeek = "sun"
)

var Weekdays = [7]DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

func (d DayOfWeek) Valid() bool {
	for _, k := range Weekdays {
		if k == d {
			return true
		}
	}
	return false
}

type Aggression string

const (
	AggressionLow    Aggression = "low"
	AggressionMedium Aggression = "medium"
	AggressionHigh   Aggression = "high"
)

func (a Aggression) Valid() bool {
	return a == AggressionLow || a == AggressionMedium || a == AggressionHigh
}

type Operator string

const (
	OperatorPlus  Operator = "+"
	OperatorMinus Operator = "-"
)

func (o Operator) Valid() bool { return o == OperatorPlus || o == OperatorMinus }

// NumericText is a numeric field the way the console edits it: free text,
// coerced to a number only when the config is saved.
type NumericText string

// UnmarshalJSON accepts both JSON strings and bare numbers; the backend
// echoes numbers where the console sent text.
func (n *NumericText) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*n = NumericText(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("numeric text: %w", err)
	}
	*n = NumericText(num.String())
	return nil
}

type LastMinuteFloor struct {
	Enabled    bool        `json:"enabled"`
	Rate       NumericText `json:"rate"`
	Days       NumericText `json:"days"`
	DaysOfWeek []DayOfWeek `json:"daysOfWeek"`
}

type RoomDifferential struct {
	RoomTypeID string      `json:"roomTypeId"`
	Operator   Operator    `json:"operator"`
	Value      NumericText `json:"value"`
}

type PmsRoomType struct {
	RoomTypeID   string `json:"roomTypeId"`
	RoomTypeName string `json:"roomTypeName"`
}

// HotelConfig is the full rate-governance record of one hotel.
type HotelConfig struct {
	SentinelEnabled   bool                  `json:"sentinelEnabled"`
	GuardrailMax      NumericText           `json:"guardrailMax"`
	RateFreezePeriod  NumericText           `json:"rateFreezePeriod"`
	BaseRoomTypeID    string                `json:"baseRoomTypeId"`
	LastMinuteFloor   LastMinuteFloor       `json:"lastMinuteFloor"`
	RoomDifferentials []RoomDifferential    `json:"roomDifferentials"`
	MonthlyMinRates   map[Month]NumericText `json:"monthlyMinRates"`
	MonthlyAggression map[Month]Aggression  `json:"monthlyAggression"`
	PmsRoomTypes      []PmsRoomType         `json:"pmsRoomTypes"`
}

// IsActive reports whether the hotel has a synced room-type catalog.
func (c HotelConfig) IsActive() bool { return len(c.PmsRoomTypes) > 0 }

// Clone returns a deep copy; configs are replaced, never mutated in place.
func (c HotelConfig) Clone() HotelConfig {
	out := c
	out.LastMinuteFloor.DaysOfWeek = slices.Clone(c.LastMinuteFloor.DaysOfWeek)
	out.RoomDifferentials = slices.Clone(c.RoomDifferentials)
	out.PmsRoomTypes = slices.Clone(c.PmsRoomTypes)
	out.MonthlyMinRates = maps.Clone(c.MonthlyMinRates)
	out.MonthlyAggression = maps.Clone(c.MonthlyAggression)
	return out
}

// Differential returns the rule for roomTypeID, if one exists.
func (c HotelConfig) Differential(roomTypeID string) (RoomDifferential, bool) {
	for _, d := range c.RoomDifferentials {
		if d.RoomTypeID == roomTypeID {
			return d, true
		}
	}
	return RoomDifferential{}, false
}
