package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesOf(counts ...int64) AggregatedSeries {
	points := make([]Point, len(counts))
	for i, c := range counts {
		points[i] = Point{Day: d1 + Day(i), Count: c}
	}
	return AggregatedSeries{Country: testCountry, Metric: MetricConfirmed, Points: points}
}

func TestFilterSeries(t *testing.T) {
	tests := []struct {
		name   string
		series AggregatedSeries
		th     Threshold
		reason Reason
		kept   []int64
	}{
		{"consolidated scenario", seriesOf(15, 65), Threshold{MinDays: 1, MinCases: 50}, ReasonRetained, []int64{65}},
		{"strictly greater than min cases", seriesOf(50, 51), Threshold{MinDays: 1, MinCases: 50}, ReasonRetained, []int64{51}},
		{"gaps are dropped not kept", seriesOf(60, 10, 70), Threshold{MinDays: 2, MinCases: 50}, ReasonRetained, []int64{60, 70}},
		{"four qualifying days need five", seriesOf(11, 12, 13, 14, 5, 1), Threshold{MinDays: 5, MinCases: 10}, ReasonTooFewQualifyingDays, nil},
		{"too few observations", seriesOf(100, 200), Threshold{MinDays: 3, MinCases: 0}, ReasonTooFewObservations, nil},
		{"nothing qualifies with zero min days", seriesOf(0, 0), Threshold{MinDays: 0, MinCases: 0}, ReasonTooFewQualifyingDays, nil},
		{"empty series", seriesOf(), Threshold{MinDays: 1, MinCases: 0}, ReasonTooFewObservations, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := FilterSeries(tt.series, tt.th)
			assert.Equal(t, tt.reason, reason)
			if tt.reason != ReasonRetained {
				assert.Empty(t, got.Points)
				return
			}
			counts := make([]int64, len(got.Points))
			for i, p := range got.Points {
				counts[i] = p.Count
			}
			assert.Equal(t, tt.kept, counts)
			assert.Equal(t, testCountry, got.Country)
		})
	}
}

func TestFilterSeries_StartIsFirstQualifyingDay(t *testing.T) {
	got, reason := FilterSeries(seriesOf(1, 2, 80, 90), Threshold{MinDays: 1, MinCases: 50})
	require.Equal(t, ReasonRetained, reason)
	assert.Equal(t, d1+2, got.Start())
}

func TestFilterSeries_ThresholdMonotonicity(t *testing.T) {
	s := seriesOf(3, 40, 55, 10, 120, 300, 299, 0, 1000)

	prevLen := len(s.Points) + 1
	for minCases := int64(0); minCases <= 1000; minCases += 25 {
		got, _ := FilterSeries(s, Threshold{MinDays: 1, MinCases: minCases})
		assert.LessOrEqual(t, len(got.Points), prevLen, "min_cases=%d", minCases)
		prevLen = len(got.Points)
	}

	retained := func(minDays int) int {
		n := 0
		for _, series := range []AggregatedSeries{seriesOf(60, 70), seriesOf(60, 70, 80, 90), s, seriesOf(1)} {
			if _, r := FilterSeries(series, Threshold{MinDays: minDays, MinCases: 50}); r == ReasonRetained {
				n++
			}
		}
		return n
	}
	prev := retained(0)
	for minDays := 1; minDays <= 10; minDays++ {
		n := retained(minDays)
		assert.LessOrEqual(t, n, prev, "min_days=%d", minDays)
		prev = n
	}
}
