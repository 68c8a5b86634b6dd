package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestShardedExpiresAtTTL(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	c := New[float64](5 * time.Second).WithClock(clk.now)

	c.Set("R_100", 1.5)
	if v, ok := c.Get("R_100"); !ok || v != 1.5 {
		t.Fatalf("expected fresh value, got %v %v", v, ok)
	}

	clk.t = clk.t.Add(4999 * time.Millisecond)
	if _, ok := c.Get("R_100"); !ok {
		t.Fatalf("value should still be live just before ttl")
	}

	clk.t = clk.t.Add(time.Millisecond)
	if _, ok := c.Get("R_100"); ok {
		t.Fatalf("value must not be served at ttl")
	}

	if removed := c.Cleanup(); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Len())
	}
}

func TestShardedZeroTTLNeverExpires(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := New[string](0).WithClock(clk.now)
	c.Set("a", "x")
	clk.t = clk.t.Add(24 * time.Hour)
	if v, ok := c.Get("a"); !ok || v != "x" {
		t.Fatalf("zero ttl entry expired: %v %v", v, ok)
	}
}

func TestShardedSnapshotAndDelete(t *testing.T) {
	c := New[int](time.Minute)
	for i, k := range []string{"a", "b", "c"} {
		c.Set(k, i)
	}
	c.Delete("b")
	snap := c.Snapshot()
	if len(snap) != 2 || snap["a"] != 0 || snap["c"] != 2 {
		t.Fatalf("unexpected snapshot %v", snap)
	}
	if st := c.Stats(); st.TotalItems != 2 {
		t.Fatalf("expected 2 items in stats, got %d", st.TotalItems)
	}
}
