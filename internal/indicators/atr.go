package indicators

import "math"

// TrueRange returns the true range per index; index 0 has no previous close
// and is reported as high-low.
func TrueRange(highs, lows, closes []float64) []float64 {
	n := minLen(highs, lows, closes)
	tr := make([]float64, n)
	if n == 0 {
		return tr
	}
	tr[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		tr[i] = math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
	}
	return tr
}

// ATRSeries is Wilder's average true range. The first value lands at index
// period (mean of TR[1..period]); earlier indices are zero.
func ATRSeries(highs, lows, closes []float64, period int) []float64 {
	tr := TrueRange(highs, lows, closes)
	atr := make([]float64, len(tr))
	if period <= 0 || len(tr) <= period {
		return atr
	}
	atr[period] = Mean(tr[1 : period+1])
	for i := period + 1; i < len(tr); i++ {
		atr[i] = (atr[i-1]*float64(period-1) + tr[i]) / float64(period)
	}
	return atr
}

// ATR returns the latest ATR value.
func ATR(highs, lows, closes []float64, period int) float64 {
	return Last(ATRSeries(highs, lows, closes, period))
}

// Valid drops the zero warm-up prefix of an indicator series.
func Valid(series []float64) []float64 {
	for i, v := range series {
		if v != 0 {
			return series[i:]
		}
	}
	return nil
}

func minLen(a, b, c []float64) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if len(c) < n {
		n = len(c)
	}
	return n
}
