package marketdata

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestWeeklyLast(t *testing.T) {
	// 2024-01-08 is a Monday, 2024-01-14 the following Sunday.
	daily := Series{
		{Date: day(2024, 1, 8), Value: 1.0},
		{Date: day(2024, 1, 10), Value: 2.0},
		{Date: day(2024, 1, 12), Value: 3.0},
		{Date: day(2024, 1, 15), Value: 4.0},
		{Date: day(2024, 1, 17), Value: 5.0},
	}

	weekly := WeeklyLast(daily)
	require.Len(t, weekly, 2)

	assert.Equal(t, day(2024, 1, 14), weekly[0].Date, "labelled with the week-ending Sunday")
	assert.Equal(t, 3.0, weekly[0].Value, "last observation of the week wins")
	assert.Equal(t, day(2024, 1, 21), weekly[1].Date)
	assert.Equal(t, 5.0, weekly[1].Value)
}

func TestWeeklyLast_SundayStaysInItsOwnWeek(t *testing.T) {
	weekly := WeeklyLast(Series{{Date: day(2024, 1, 14), Value: 9.0}})
	require.Len(t, weekly, 1)
	assert.Equal(t, day(2024, 1, 14), weekly[0].Date)
}

func TestWeeklyLast_Empty(t *testing.T) {
	assert.Nil(t, WeeklyLast(nil))
}

func TestDiff(t *testing.T) {
	s := Series{
		{Date: day(2024, 1, 1), Value: 5.0},
		{Date: day(2024, 1, 2), Value: 5.25},
		{Date: day(2024, 1, 3), Value: 5.0},
	}

	diffs := Diff(s)
	require.Len(t, diffs, 2)
	assert.Equal(t, day(2024, 1, 2), diffs[0].Date)
	assert.InDelta(t, 0.25, diffs[0].Value, 1e-12)
	assert.InDelta(t, -0.25, diffs[1].Value, 1e-12)

	assert.Nil(t, Diff(Series{{Date: day(2024, 1, 1), Value: 5.0}}))
}

func TestLogReturns(t *testing.T) {
	s := Series{
		{Date: day(2024, 1, 1), Value: 100.0},
		{Date: day(2024, 1, 2), Value: 110.0},
		{Date: day(2024, 1, 3), Value: 99.0},
	}

	rets := LogReturns(s)
	require.Len(t, rets, 2)
	assert.InDelta(t, math.Log(1.1), rets[0].Value, 1e-12)
	assert.InDelta(t, math.Log(99.0/110.0), rets[1].Value, 1e-12)
}

func TestLogReturns_SkipsNonPositivePrices(t *testing.T) {
	s := Series{
		{Date: day(2024, 1, 1), Value: 100.0},
		{Date: day(2024, 1, 2), Value: 0.0},
		{Date: day(2024, 1, 3), Value: 105.0},
	}

	rets := LogReturns(s)
	assert.Empty(t, rets, "pairs touching a non-positive price are dropped")
}

func TestSeries_At(t *testing.T) {
	s := Series{
		{Date: day(2024, 1, 2), Value: 42.0},
	}

	v, ok := s.At(time.Date(2024, 1, 2, 15, 30, 0, 0, time.UTC))
	require.True(t, ok, "lookup truncates to the calendar day")
	assert.Equal(t, 42.0, v)

	_, ok = s.At(day(2024, 1, 3))
	assert.False(t, ok)
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	ts := time.Date(2024, 1, 3, 2, 0, 0, 0, loc)
	assert.Equal(t, day(2024, 1, 2), Day(ts), "truncation happens in UTC")
}
