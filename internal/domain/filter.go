package domain

// Reason explains a filter decision.
type Reason string

const (
	ReasonRetained             Reason = "retained"
	ReasonTooFewObservations   Reason = "too_few_observations"
	ReasonTooFewQualifyingDays Reason = "too_few_qualifying_days"
)

// FilterSeries keeps the days whose count exceeds th.MinCases and retains
// the series only when at least th.MinDays observed days exist and at least
// th.MinDays of them qualify. On rejection the returned series is empty.
func FilterSeries(s AggregatedSeries, th Threshold) (RetainedSeries, Reason) {
	if len(s.Points) < th.MinDays {
		return RetainedSeries{}, ReasonTooFewObservations
	}

	var kept []Point
	for _, p := range s.Points {
		if p.Count > th.MinCases {
			kept = append(kept, p)
		}
	}
	// An empty series has no start day, so at least one point must qualify
	// even when MinDays is 0.
	if len(kept) < th.MinDays || len(kept) == 0 {
		return RetainedSeries{}, ReasonTooFewQualifyingDays
	}

	return RetainedSeries{
		Country: s.Country,
		Metric:  s.Metric,
		Points:  kept,
	}, ReasonRetained
}
