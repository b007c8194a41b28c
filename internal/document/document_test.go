package document

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNumberCoercion(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{float64(12.5), 12.5},
		{42, 42},
		{json.Number("7.25"), 7.25},
		{"300", 300},
		{" 18g ", 18},
		{"-4.5kcal", 0},
		{".5", 0.5},
		{"2.5e1x", 25},
		{"1e", 1},
		{"+", 0},
		{strings.Repeat("9", 4000) + "x", 0},
		{"abc", 0},
		{"", 0},
		{nil, 0},
		{-5.0, 0},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{true, 0},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Number(tc.in), "input %#v", tc.in)
	}
}

func TestMinutesRejectsOutOfRange(t *testing.T) {
	require.Equal(t, 30, Minutes("29.6"))
	require.Equal(t, 10080, Minutes(10080))
	require.Zero(t, Minutes(10081))
	require.Zero(t, Minutes(1e300))
	require.Zero(t, Minutes(json.Number("1e19")))
	require.Zero(t, Minutes(-20))

	entry := Exercise("x", map[string]any{"duration": 1e300})
	require.Zero(t, entry.DurationMin)
}

func TestParseAmountRounds(t *testing.T) {
	require.Equal(t, 13.0, ParseAmount("12.5"))
	require.Equal(t, 12.0, ParseAmount("12.4"))
	require.Equal(t, 0.0, ParseAmount("lots"))
}

func TestTimestampFormats(t *testing.T) {
	want := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

	require.True(t, want.Equal(*Timestamp("2024-06-01T12:00:00Z")))
	require.True(t, want.Equal(*Timestamp(want)))
	require.True(t, want.Equal(*Timestamp(map[string]any{"seconds": float64(want.Unix())})))
	require.True(t, want.Equal(*Timestamp(map[string]any{"_seconds": json.Number("1717243200")})))
	require.True(t, want.Equal(*Timestamp(float64(1717243200))))

	require.Nil(t, Timestamp(nil))
	require.Nil(t, Timestamp("yesterday"))
	require.Nil(t, Timestamp(map[string]any{"nanos": 1}))
	require.Nil(t, Timestamp(time.Time{}))
	require.Nil(t, Timestamp(0))
}

func TestExerciseDocument(t *testing.T) {
	entry := Exercise("ex-1", map[string]any{
		"exerciseType":   "Running",
		"duration":       "30",
		"caloriesBurned": float64(300),
		"photoURL":       "https://cdn/run.jpg",
		"recordWorkout":  "5k",
		"timestamp":      map[string]any{"seconds": float64(1717243200)},
	})

	require.Equal(t, "ex-1", entry.ID)
	require.Equal(t, 30, entry.DurationMin)
	require.Equal(t, 300.0, entry.CaloriesBurned)
	require.True(t, entry.HasPhoto)
	require.Equal(t, "5k", entry.RecordWorkout)
	require.NotNil(t, entry.LoggedAt)
}

func TestMealDocumentZeroDefaults(t *testing.T) {
	meal := Meal("m-1", map[string]any{"description": "Toast", "calories": "n/a", "protein": -3})

	require.Zero(t, meal.Calories)
	require.Zero(t, meal.Protein)
	require.Zero(t, meal.Carbs)
	require.Nil(t, meal.LoggedAt)
	require.False(t, meal.HasPhoto)
}

func TestReadExportKeepsDocumentOrder(t *testing.T) {
	export, err := ReadExport(strings.NewReader(`{
		"userId": "u1",
		"meals": [
			{"id": "b", "description": "Lunch", "calories": 200, "timestamp": {"seconds": 1717329600}},
			{"id": "a", "description": "Breakfast", "calories": "300"}
		],
		"exercises": [{"id": 7, "exerciseType": "Yoga", "duration": 20}]
	}`))
	require.NoError(t, err)

	require.Equal(t, "u1", export.UserID)
	require.Len(t, export.Meals, 2)
	require.Equal(t, "b", export.Meals[0].ID)
	require.Equal(t, "a", export.Meals[1].ID)
	require.Equal(t, 300.0, export.Meals[1].Calories)
	require.Equal(t, "u1", export.Meals[1].UserID)
	require.Equal(t, "7", export.Exercises[0].ID)
}

func TestReadExportRejectsMalformedJSON(t *testing.T) {
	_, err := ReadExport(strings.NewReader(`{"meals": [`))
	require.Error(t, err)
}
