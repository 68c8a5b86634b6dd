package indicators

// MACDResult holds the latest MACD line, signal line and histogram.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD computes EMA(fast)-EMA(slow) and its EMA(signal). It returns zeros
// until slow values are available.
func MACD(values []float64, fast, slow, signal int) MACDResult {
	if len(values) < slow || fast <= 0 || slow <= 0 || signal <= 0 {
		return MACDResult{}
	}
	f := EMASeries(values, fast)
	s := EMASeries(values, slow)
	line := make([]float64, len(values))
	for i := range values {
		line[i] = f[i] - s[i]
	}
	sig := EMASeries(line, signal)
	m := Last(line)
	sg := Last(sig)
	return MACDResult{MACD: m, Signal: sg, Histogram: m - sg}
}
