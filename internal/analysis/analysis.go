// Package analysis implements the pure aggregation functions (spec.md
// §4.5): meal-period bucketing, a gap-filled monthly series, and
// per-merchant totals. None of these touch the store; they operate purely
// over a query result, the same "pure transform" shape the teacher uses
// for its balance-aggregation helpers.
package analysis

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mealflow/mealflow/internal/store"
	"github.com/mealflow/mealflow/pkg/campustime"
)

// MealPeriod is one of the four local-time buckets a transaction falls
// into (spec.md §4.5).
type MealPeriod string

const (
	Breakfast MealPeriod = "breakfast"
	Lunch     MealPeriod = "lunch"
	Dinner    MealPeriod = "dinner"
	Other     MealPeriod = "other"
)

// PeriodCounts is the result of TimePeriodBuckets.
type PeriodCounts struct {
	Breakfast int `json:"breakfast"`
	Lunch     int `json:"lunch"`
	Dinner    int `json:"dinner"`
	Other     int `json:"other"`
}

// ClassifyPeriod buckets a local hour:minute per spec.md §4.5's boundary
// rules: 05:00≤t<10:30 Breakfast, 10:30≤t<13:30 Lunch, 16:30≤t<19:30
// Dinner, otherwise Other.
func ClassifyPeriod(t timeOfDay) MealPeriod {
	minutes := t.hour*60 + t.minute
	switch {
	case minutes >= 5*60 && minutes < 10*60+30:
		return Breakfast
	case minutes >= 10*60+30 && minutes < 13*60+30:
		return Lunch
	case minutes >= 16*60+30 && minutes < 19*60+30:
		return Dinner
	default:
		return Other
	}
}

type timeOfDay struct{ hour, minute int }

// TimePeriodBuckets classifies every row by local time-of-day and returns
// the counts per bucket (spec.md §4.5, §8 property 4, scenario S2).
func TimePeriodBuckets(rows []store.Transaction) PeriodCounts {
	var counts PeriodCounts
	for _, r := range rows {
		local := campustime.InZone(r.Time)
		switch ClassifyPeriod(timeOfDay{hour: local.Hour(), minute: local.Minute()}) {
		case Breakfast:
			counts.Breakfast++
		case Lunch:
			counts.Lunch++
		case Dinner:
			counts.Dinner++
		default:
			counts.Other++
		}
	}
	return counts
}

// MonthPoint is one point of a MonthlySeries.
type MonthPoint struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

// MonthlySeries groups rows by YYYY-MM of local time, sums |amount| per
// month, and gap-fills every month between the earliest and latest with
// zero (spec.md §4.5, §8 property 5, scenario S5). An empty input yields
// an empty series — there is no span to gap-fill.
func MonthlySeries(rows []store.Transaction) []MonthPoint {
	if len(rows) == 0 {
		return nil
	}

	sums := make(map[string]decimal.Decimal)
	for _, r := range rows {
		key := campustime.MonthKey(r.Time)
		amount := decimal.NewFromFloat(r.Amount).Abs()
		sums[key] = sums[key].Add(amount)
	}

	months := make([]string, 0, len(sums))
	for key := range sums {
		months = append(months, key)
	}
	sort.Strings(months)

	first, last := months[0], months[len(months)-1]
	series := make([]MonthPoint, 0)
	for key := first; ; key = nextMonthKey(key) {
		total, _ := sums[key].Round(2).Float64()
		series = append(series, MonthPoint{Month: key, Total: total})
		if key == last {
			break
		}
	}
	return series
}

// nextMonthKey returns the "YYYY-MM" key immediately after key.
func nextMonthKey(key string) string {
	t, err := campustime.ParseDate(key + "-01")
	if err != nil {
		return key
	}
	return campustime.MonthKey(t.AddDate(0, 1, 0))
}

// MerchantTotal is one row of a MerchantTotals result.
type MerchantTotal struct {
	Merchant  string  `json:"merchant"`
	Sum       float64 `json:"sum"`
	Magnitude float64 `json:"magnitude"`
}

// DefaultTopN is merchant_totals' default truncation per spec.md §4.5.
const DefaultTopN = 15

// MerchantTotals sums signed amount per merchant, sorts most-negative
// first (ties broken by merchant name ascending), and truncates to topN
// (spec.md §4.5, §8 property 6).
func MerchantTotals(rows []store.Transaction, topN int) []MerchantTotal {
	if topN <= 0 {
		topN = DefaultTopN
	}

	sums := make(map[string]decimal.Decimal)
	for _, r := range rows {
		sums[r.Merchant] = sums[r.Merchant].Add(decimal.NewFromFloat(r.Amount))
	}

	totals := make([]MerchantTotal, 0, len(sums))
	for merchant, sum := range sums {
		s, _ := sum.Round(2).Float64()
		totals = append(totals, MerchantTotal{Merchant: merchant, Sum: s, Magnitude: absFloat(s)})
	}

	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Sum != totals[j].Sum {
			return totals[i].Sum < totals[j].Sum
		}
		return totals[i].Merchant < totals[j].Merchant
	})

	if len(totals) > topN {
		totals = totals[:topN]
	}
	return totals
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
