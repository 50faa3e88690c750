package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePercent(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{52.3, 52.3},
		{"52.3%", 52.3},
		{" 118 % ", 118},
		{json.Number("1e2"), 100},
		{int64(7), 7},
		{"-4.5", -4.5},
		{Percent(61), 61},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, ParsePercent(c.in), "ParsePercent(%#v)", c.in)
	}
	for _, in := range []any{nil, "", "n/a", true, []int{1}} {
		assert.Truef(t, math.IsNaN(ParsePercent(in)), "ParsePercent(%#v) should be NaN", in)
	}
}

func TestPercent_JSON(t *testing.T) {
	var p struct {
		A Percent `json:"a"`
		B Percent `json:"b"`
		C Percent `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "73.5%", "b": null, "c": 12}`), &p))
	assert.Equal(t, Percent(73.5), p.A)
	assert.False(t, p.B.Valid())
	assert.Equal(t, Percent(12), p.C)

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 73.5, "b": null, "c": 12}`, string(b))
}

func TestMetricsFilter(t *testing.T) {
	assert.NoError(t, MetricsFilter{}.Validate())
	assert.NoError(t, MetricsFilter{From: "2026-11-01", To: "2026-11-01"}.Validate())

	var ve *ValidationError
	assert.ErrorAs(t, MetricsFilter{From: "11/01/2026"}.Validate(), &ve)
	assert.ErrorAs(t, MetricsFilter{From: "2026-11-02", To: "2026-11-01"}.Validate(), &ve)

	a := MetricsFilter{From: "2026-11-01", HotelIDs: []string{"b", "a"}}
	b := MetricsFilter{From: "2026-11-01", HotelIDs: []string{"a", "b"}}
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, []string{"b", "a"}, a.HotelIDs)
}
