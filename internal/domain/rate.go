package domain

import "math"

// DeriveRates scales each retained count by scale/population. It returns nil
// when population is not known (0 or negative) so callers cannot mistake a
// missing relative series for a series of zeros.
func DeriveRates(s RetainedSeries, population int64, scale float64) *Rates {
	if population <= 0 {
		return nil
	}
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		if p.Count <= 0 {
			continue
		}
		values[i] = float64(p.Count) * scale / float64(population)
	}
	return &Rates{Scale: scale, Population: population, Values: values}
}

// DeriveLog returns log10 of each retained count. Counts that are not
// strictly positive have no logarithm and map to nil.
func DeriveLog(s RetainedSeries) []*float64 {
	out := make([]*float64, len(s.Points))
	for i, p := range s.Points {
		if p.Count <= 0 {
			continue
		}
		v := math.Log10(float64(p.Count))
		out[i] = &v
	}
	return out
}

// Series assembles the output form of a retained series.
func Series(s RetainedSeries, population int64, scale float64) MetricSeries {
	ms := MetricSeries{
		Days:     make([]Day, len(s.Points)),
		Absolute: make([]int64, len(s.Points)),
		Relative: DeriveRates(s, population, scale),
		Log:      DeriveLog(s),
	}
	for i, p := range s.Points {
		ms.Days[i] = p.Day
		ms.Absolute[i] = p.Count
	}
	return ms
}
