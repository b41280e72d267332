package cache

import (
	"sort"
	"sync"
	"time"
)

// Strategy decides eviction order. Victims receives a snapshot of the
// current entries and returns keys in the order they should be evicted.
type Strategy interface {
	Name() string
	Victims(entries []EntryInfo) []string
}

// EntryInfo is the bookkeeping snapshot a Strategy ranks entries by.
type EntryInfo struct {
	Key          string
	Size         int
	CreatedAt    time.Time
	LastAccessed time.Time
	AccessCount  int
}

// LRU evicts least-recently-accessed entries first.
type LRU struct{}

func (LRU) Name() string { return "lru" }

func (LRU) Victims(entries []EntryInfo) []string {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccessed.Before(entries[j].LastAccessed)
	})
	return keysOf(entries)
}

// FIFO evicts oldest-created entries first, ignoring access recency.
type FIFO struct{}

func (FIFO) Name() string { return "fifo" }

func (FIFO) Victims(entries []EntryInfo) []string {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return keysOf(entries)
}

func keysOf(entries []EntryInfo) []string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

// Adaptive switches between LRU and FIFO based on recent memory
// pressure: under sustained pressure FIFO drains old bulk faster, while
// LRU preserves hot entries in the common case.
type Adaptive struct {
	mu      sync.Mutex
	samples []bool // recent inserts: true = insert forced eviction
	window  int
}

// NewAdaptive creates an Adaptive strategy sampling the last window
// inserts. window <= 0 defaults to 10.
func NewAdaptive(window int) *Adaptive {
	if window <= 0 {
		window = 10
	}
	return &Adaptive{window: window}
}

func (a *Adaptive) Name() string { return "adaptive" }

// Observe records whether an insert caused eviction. The cache calls
// this on every Set.
func (a *Adaptive) Observe(pressured bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples = append(a.samples, pressured)
	if len(a.samples) > a.window {
		a.samples = a.samples[len(a.samples)-a.window:]
	}
}

func (a *Adaptive) Victims(entries []EntryInfo) []string {
	a.mu.Lock()
	pressured := 0
	for _, s := range a.samples {
		if s {
			pressured++
		}
	}
	high := len(a.samples) > 0 && pressured*2 > len(a.samples)
	a.mu.Unlock()

	if high {
		return FIFO{}.Victims(entries)
	}
	return LRU{}.Victims(entries)
}
