package market

import (
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSeriesOneCandlePerPeriod(t *testing.T) {
	s := &series{tf: TF1m}
	offsets := []time.Duration{0, 3 * time.Second, 59 * time.Second, 61 * time.Second, 90 * time.Second, 150 * time.Second}
	prices := []float64{10, 12, 9, 11, 13, 8}
	closedCount := 0
	for i, off := range offsets {
		if s.update(prices[i], t0.Add(off)) {
			closedCount++
		}
	}
	if closedCount != 2 {
		t.Fatalf("closed=%d, expected 2", closedCount)
	}
	first := s.closed[0]
	if first.Open != 10 || first.High != 12 || first.Low != 9 || first.Close != 9 || first.Ticks != 3 {
		t.Fatalf("unexpected first candle %+v", first)
	}
	second := s.closed[1]
	if !second.Start.Equal(t0.Add(time.Minute)) || second.High != 13 || second.Low != 11 {
		t.Fatalf("unexpected second candle %+v", second)
	}
	for _, c := range s.closed {
		if c.Low > c.Open || c.Low > c.Close || c.High < c.Open || c.High < c.Close {
			t.Fatalf("OHLC invariant broken: %+v", c)
		}
	}
}

func TestSeriesIgnoresLateTicks(t *testing.T) {
	s := &series{tf: TF1m}
	s.update(10, t0.Add(2*time.Minute))
	if s.update(50, t0) {
		t.Fatalf("late tick must not close a candle")
	}
	if s.current.High != 10 || s.current.Ticks != 1 {
		t.Fatalf("late tick changed the current candle: %+v", *s.current)
	}
}

func TestSeriesCapacity(t *testing.T) {
	s := &series{tf: TF1h}
	for i := 0; i < 150; i++ {
		s.update(float64(i), t0.Add(time.Duration(i)*time.Hour))
	}
	if len(s.closed) != TF1h.Capacity {
		t.Fatalf("len=%d, expected %d", len(s.closed), TF1h.Capacity)
	}
	if s.closed[0].Open != 49 {
		t.Fatalf("oldest candle should be evicted first, got open %v", s.closed[0].Open)
	}
}

func TestProfileFor(t *testing.T) {
	tests := []struct {
		symbol string
		want   MarketType
	}{
		{"R_100", MarketVolatility},
		{"1HZ100V", MarketVolatility},
		{"BOOM300N", MarketBoomCrash},
		{"CRASH500", MarketBoomCrash},
		{"frxEURUSD", MarketForex},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			if got := ProfileFor(tt.symbol).Type; got != tt.want {
				t.Fatalf("ProfileFor(%s)=%s, expected %s", tt.symbol, got, tt.want)
			}
		})
	}
	if ProfileFor("BOOM1000").NoiseThreshold() != 3.5 || ProfileFor("frxEURUSD").NoiseThreshold() != 2.5 {
		t.Fatalf("unexpected noise thresholds")
	}
}

func TestSideOf(t *testing.T) {
	for name, want := range map[string]Side{"CALL": Buy, "multup": Buy, "PUT": Sell, "MULTDOWN": Sell, "sell": Sell, "DIGITODD": ""} {
		if got := SideOf(name); got != want {
			t.Fatalf("SideOf(%s)=%q, expected %q", name, got, want)
		}
	}
}
