package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Percent is a percentage read leniently off the wire. Values that cannot be
// parsed are NaN, and NaN/Inf marshal as null.
type Percent float64

func (p Percent) Float() float64 { return float64(p) }

func (p Percent) Valid() bool {
	f := float64(p)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (p *Percent) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	*p = Percent(ParsePercent(v))
	return nil
}

func (p Percent) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(float64(p), 'f', -1, 64)), nil
}

var (
	nonNumeric    = regexp.MustCompile(`[^0-9.\-]`)
	leadingNumber = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)
)

// ParsePercent accepts numbers, numeric strings and suffixed strings such as
// "52.3%". Anything else is NaN.
func ParsePercent(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case Percent:
		return float64(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return parsePercentString(t.String())
	case string:
		return parsePercentString(t)
	}
	return math.NaN()
}

func parsePercentString(s string) float64 {
	s = nonNumeric.ReplaceAllString(strings.TrimSpace(s), "")
	m := leadingNumber.FindString(s)
	if m == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// PortfolioMetricPoint is one hotel's position on the risk matrix.
type PortfolioMetricPoint struct {
	HotelID                 string  `json:"hotelId"`
	HotelName               string  `json:"hotelName"`
	ForwardOccupancyPercent Percent `json:"forwardOccupancyPercent"`
	PacingDifficultyPercent Percent `json:"pacingDifficultyPercent"`
}

// DailyOccupancySample is one day of a hotel's forward occupancy; position in
// the series is the day offset from today.
type DailyOccupancySample struct {
	OccupancyPercent Percent         `json:"occupancyPercent"`
	ADR              decimal.Decimal `json:"adr"`
	AvailableRooms   int             `json:"availableRooms"`
}

type OccupancyRow struct {
	HotelID      string                 `json:"hotelId"`
	HotelName    string                 `json:"hotelName"`
	DailySamples []DailyOccupancySample `json:"dailySamples"`
}

// MetricsFilter narrows portfolio queries to a stay-date window and,
// optionally, a set of hotels.
type MetricsFilter struct {
	From     string
	To       string
	HotelIDs []string
}

const dateLayout = "2006-01-02"

func (f MetricsFilter) Validate() error {
	var from, to time.Time
	var err error
	if f.From != "" {
		if from, err = time.Parse(dateLayout, f.From); err != nil {
			return invalid("from", "expected YYYY-MM-DD")
		}
	}
	if f.To != "" {
		if to, err = time.Parse(dateLayout, f.To); err != nil {
			return invalid("to", "expected YYYY-MM-DD")
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return invalid("to", "must not be before from")
	}
	return nil
}

// Key is a stable cache key fragment; hotel order does not matter.
func (f MetricsFilter) Key() string {
	ids := append([]string(nil), f.HotelIDs...)
	sort.Strings(ids)
	return fmt.Sprintf("%s:%s:%s", f.From, f.To, strings.Join(ids, ","))
}
