package analysis

import "sort"

// ColumnStat is the summary of one column over one effective window. When
// Count is zero every other statistic is nil.
type ColumnStat struct {
	Column Column          `json:"column"`
	Window EffectiveWindow `json:"window"`
	Count  uint64          `json:"count"`
	Min    *float64        `json:"min"`
	Max    *float64        `json:"max"`
	Sum    *float64        `json:"sum"`
	Median *float64        `json:"median"`
}

// Empty reports whether the statistic was computed over no samples.
func (s ColumnStat) Empty() bool {
	return s.Count == 0
}

// Summarize computes every statistic of a column from a single set of values.
// values does not need to be sorted; it is sorted in place.
func Summarize(column Column, window EffectiveWindow, values []float64) ColumnStat {
	stat := ColumnStat{Column: column, Window: window, Count: uint64(len(values))}
	if len(values) == 0 {
		return stat
	}

	if !sort.Float64sAreSorted(values) {
		sort.Float64s(values)
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	minV := values[0]
	maxV := values[len(values)-1]
	median := Percentile(values, 0.5)

	stat.Min = &minV
	stat.Max = &maxV
	stat.Sum = &sum
	stat.Median = &median
	return stat
}

// Percentile returns the p-th percentile (0 <= p <= 1) of sorted values using
// linear interpolation between the closest ranks. sorted must be non-empty.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p * float64(len(sorted)-1)
	lower := int(rank)
	if lower >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}

	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}
