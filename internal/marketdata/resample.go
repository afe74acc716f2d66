package marketdata

import (
	"math"
	"sort"
	"time"
)

// WeeklyLast resamples a daily series to one observation per calendar week,
// keeping the last value of each week and labelling it with the week-ending
// Sunday.
func WeeklyLast(s Series) Series {
	if s.IsEmpty() {
		return nil
	}

	byWeek := make(map[time.Time]Point)
	for _, p := range s {
		week := weekEnd(p.Date)
		// Points arrive date-ordered, so the last write wins within a week.
		byWeek[week] = Point{Date: week, Value: p.Value}
	}

	out := make(Series, 0, len(byWeek))
	for _, p := range byWeek {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// weekEnd returns the Sunday on or after the given date.
func weekEnd(t time.Time) time.Time {
	day := Day(t)
	offset := (7 - int(day.Weekday())) % 7
	return day.AddDate(0, 0, offset)
}

// Diff returns first differences, dropping the first observation.
func Diff(s Series) Series {
	if len(s) < 2 {
		return nil
	}
	out := make(Series, 0, len(s)-1)
	for i := 1; i < len(s); i++ {
		out = append(out, Point{Date: s[i].Date, Value: s[i].Value - s[i-1].Value})
	}
	return out
}

// LogReturns returns log ratios of consecutive observations, dropping pairs
// with non-positive prices.
func LogReturns(s Series) Series {
	if len(s) < 2 {
		return nil
	}
	out := make(Series, 0, len(s)-1)
	for i := 1; i < len(s); i++ {
		if s[i].Value <= 0 || s[i-1].Value <= 0 {
			continue
		}
		out = append(out, Point{Date: s[i].Date, Value: math.Log(s[i].Value / s[i-1].Value)})
	}
	return out
}
