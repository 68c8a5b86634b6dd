package indicators

import "math"

// ADX computes Wilder's average directional index. It needs 2*period+1
// bars and returns 0 before that.
func ADX(highs, lows, closes []float64, period int) float64 {
	n := minLen(highs, lows, closes)
	if period <= 0 || n < 2*period+1 {
		return 0
	}

	tr := TrueRange(highs, lows, closes)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	var trS, plusS, minusS float64
	for i := 1; i <= period; i++ {
		trS += tr[i]
		plusS += plusDM[i]
		minusS += minusDM[i]
	}

	dx := func() float64 {
		if trS == 0 {
			return 0
		}
		plusDI := 100 * plusS / trS
		minusDI := 100 * minusS / trS
		sum := plusDI + minusDI
		if sum == 0 {
			return 0
		}
		return 100 * math.Abs(plusDI-minusDI) / sum
	}

	dxs := []float64{dx()}
	p := float64(period)
	for i := period + 1; i < n; i++ {
		trS = trS - trS/p + tr[i]
		plusS = plusS - plusS/p + plusDM[i]
		minusS = minusS - minusS/p + minusDM[i]
		dxs = append(dxs, dx())
	}

	adx := Mean(dxs[:period])
	for _, v := range dxs[period:] {
		adx = (adx*(p-1) + v) / p
	}
	return adx
}
