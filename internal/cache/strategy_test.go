package cache

import (
	"testing"
	"time"
)

func infoSet(base time.Time) []EntryInfo {
	return []EntryInfo{
		{Key: "newest-created", CreatedAt: base.Add(2 * time.Hour), LastAccessed: base},
		{Key: "oldest-created", CreatedAt: base, LastAccessed: base.Add(2 * time.Hour)},
		{Key: "middle", CreatedAt: base.Add(time.Hour), LastAccessed: base.Add(time.Hour)},
	}
}

func TestLRUOrder(t *testing.T) {
	base := time.Unix(1700000000, 0)
	victims := LRU{}.Victims(infoSet(base))
	want := []string{"newest-created", "middle", "oldest-created"}
	for i, k := range want {
		if victims[i] != k {
			t.Errorf("LRU victims[%d] = %q, want %q", i, victims[i], k)
		}
	}
}

func TestFIFOOrder(t *testing.T) {
	base := time.Unix(1700000000, 0)
	victims := FIFO{}.Victims(infoSet(base))
	want := []string{"oldest-created", "middle", "newest-created"}
	for i, k := range want {
		if victims[i] != k {
			t.Errorf("FIFO victims[%d] = %q, want %q", i, victims[i], k)
		}
	}
}

func TestAdaptiveSwitchesUnderPressure(t *testing.T) {
	base := time.Unix(1700000000, 0)
	a := NewAdaptive(4)

	// No pressure observed: behaves like LRU.
	victims := a.Victims(infoSet(base))
	if victims[0] != "newest-created" {
		t.Errorf("unpressured adaptive victims[0] = %q, want LRU order", victims[0])
	}

	// Majority of recent inserts forced eviction: behaves like FIFO.
	for i := 0; i < 4; i++ {
		a.Observe(true)
	}
	victims = a.Victims(infoSet(base))
	if victims[0] != "oldest-created" {
		t.Errorf("pressured adaptive victims[0] = %q, want FIFO order", victims[0])
	}

	// Calm inserts slide the pressured samples out of the window.
	for i := 0; i < 4; i++ {
		a.Observe(false)
	}
	victims = a.Victims(infoSet(base))
	if victims[0] != "newest-created" {
		t.Errorf("calmed adaptive victims[0] = %q, want LRU order", victims[0])
	}
}

func TestAdaptiveEvictionThroughCache(t *testing.T) {
	c, clk := newTestCache(Config{MaxEntries: 2, Strategy: NewAdaptive(2)})

	c.Set("a", testResult(1), ContextSnapshot{})
	clk.advance(time.Second)
	c.Set("b", testResult(1), ContextSnapshot{})
	clk.advance(time.Second)
	c.Set("c", testResult(1), ContextSnapshot{})
	clk.advance(time.Second)
	c.Set("d", testResult(1), ContextSnapshot{})
	clk.advance(time.Second)

	// Both samples in the window saw eviction, so the next insert
	// drains in creation order even though c was just touched.
	c.Get("c")
	clk.advance(time.Second)
	c.Set("e", testResult(1), ContextSnapshot{})

	if c.Has("c") {
		t.Error("oldest-created entry survived a pressured window")
	}
	if !c.Has("d") {
		t.Error("newer entry evicted despite FIFO ordering under pressure")
	}
	if got := c.Stats().Strategy; got != "adaptive" {
		t.Errorf("strategy = %q, want adaptive", got)
	}
}
