package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestMerge_NilIsTemplate(t *testing.T) {
	tmpl := DefaultTemplate(DefaultTemplateOptions())
	assert.Equal(t, tmpl, Merge(nil, tmpl))
}

func TestMerge_EveryFieldFilled(t *testing.T) {
	tmpl := DefaultTemplate(DefaultTemplateOptions())
	var s StoredConfig
	require.NoError(t, json.Unmarshal([]byte(`{
		"sentinelEnabled": true,
		"guardrailMax": 520,
		"lastMinuteFloor": {"rate": "85", "daysOfWeek": ["sun", "fri", "fri", "xyz"]},
		"roomDifferentials": [
			{"roomTypeId": "ste", "operator": "+", "value": "10"},
			{"roomTypeId": "fam", "operator": "-", "value": "5"},
			{"roomTypeId": "ste", "operator": "+", "value": "12"}
		],
		"monthlyMinRates": {"jan": "90", "feb": null, "smarch": "1"},
		"monthlyAggression": {"jul": "high", "aug": "reckless"}
	}`), &s))

	got := Merge(&s, tmpl)

	assert.True(t, got.SentinelEnabled)
	assert.Equal(t, NumericText("520"), got.GuardrailMax)
	assert.Equal(t, NumericText("0"), got.RateFreezePeriod)
	assert.Equal(t, LastMinuteFloor{Enabled: false, Rate: "85", Days: "7", DaysOfWeek: []DayOfWeek{Friday, Sunday}}, got.LastMinuteFloor)
	assert.Equal(t, []RoomDifferential{
		{RoomTypeID: "ste", Operator: OperatorPlus, Value: "12"},
		{RoomTypeID: "fam", Operator: OperatorMinus, Value: "5"},
	}, got.RoomDifferentials)

	require.Len(t, got.MonthlyMinRates, 12)
	require.Len(t, got.MonthlyAggression, 12)
	assert.Equal(t, NumericText("90"), got.MonthlyMinRates[January])
	assert.Equal(t, NumericText("0"), got.MonthlyMinRates[February])
	assert.Equal(t, AggressionHigh, got.MonthlyAggression[July])
	assert.Equal(t, AggressionMedium, got.MonthlyAggression[August])
	assert.Empty(t, got.PmsRoomTypes)
	assert.False(t, got.IsActive())
}

func TestMerge_DoesNotAliasTemplate(t *testing.T) {
	tmpl := DefaultTemplate(DefaultTemplateOptions())
	got := Merge(&StoredConfig{MonthlyMinRates: map[Month]*NumericText{March: ptr(NumericText("70"))}}, tmpl)

	got.MonthlyMinRates[April] = "99"
	got.LastMinuteFloor.DaysOfWeek[0] = Sunday
	assert.Equal(t, NumericText("0"), tmpl.MonthlyMinRates[April])
	assert.Equal(t, NumericText("0"), tmpl.MonthlyMinRates[March])
	assert.Equal(t, Monday, tmpl.LastMinuteFloor.DaysOfWeek[0])
}

func TestDefaultTemplate_Options(t *testing.T) {
	o := DefaultTemplateOptions()
	o.FloorDays = 3
	c := DefaultTemplate(o)

	assert.Equal(t, NumericText("400"), c.GuardrailMax)
	assert.Equal(t, NumericText("3"), c.LastMinuteFloor.Days)
	assert.Len(t, c.LastMinuteFloor.DaysOfWeek, 7)
	assert.NotNil(t, c.RoomDifferentials)
}

func TestEffectiveDifferential(t *testing.T) {
	c := DefaultTemplate(DefaultTemplateOptions())
	c.BaseRoomTypeID = "dbl"
	c.RoomDifferentials = []RoomDifferential{
		{RoomTypeID: "dbl", Operator: OperatorMinus, Value: "9"},
		{RoomTypeID: "ste", Operator: OperatorMinus, Value: "4"},
	}
	pct := DefaultTemplateOptions().DifferentialPercent

	assert.Equal(t, RoomDifferential{RoomTypeID: "dbl", Operator: OperatorPlus, Value: "0"}, EffectiveDifferential(c, "dbl", pct))
	assert.Equal(t, RoomDifferential{RoomTypeID: "ste", Operator: OperatorMinus, Value: "4"}, EffectiveDifferential(c, "ste", pct))
	assert.Equal(t, RoomDifferential{RoomTypeID: "fam", Operator: OperatorPlus, Value: "15"}, EffectiveDifferential(c, "fam", pct))
}

func TestMerge_MissingOperatorReadsAsPlus(t *testing.T) {
	tmpl := DefaultTemplate(DefaultTemplateOptions())
	var s StoredConfig
	require.NoError(t, json.Unmarshal([]byte(`{
		"roomDifferentials": [
			{"roomTypeId": "ste", "value": "10"},
			{"roomTypeId": "fam", "operator": "", "value": "5"},
			{"roomTypeId": "dlx", "operator": "plus", "value": "7"},
			{"roomTypeId": "twn", "operator": " - ", "value": "3"}
		]
	}`), &s))

	got := Merge(&s, tmpl)

	assert.Equal(t, []RoomDifferential{
		{RoomTypeID: "ste", Operator: OperatorPlus, Value: "10"},
		{RoomTypeID: "fam", Operator: OperatorPlus, Value: "5"},
		{RoomTypeID: "dlx", Operator: OperatorPlus, Value: "7"},
		{RoomTypeID: "twn", Operator: OperatorMinus, Value: "3"},
	}, got.RoomDifferentials)

	// the merged config stays saveable
	_, err := Sanitize(got)
	assert.NoError(t, err)
}
