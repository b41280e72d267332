package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ExportEvent is one pipeline lifecycle event (started, completed,
// failed) persisted for analytics queries.
type ExportEvent struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	PresentationID string    `json:"presentation_id"`
	Format         string    `json:"format"`
	Event          string    `json:"event"` // "started", "completed", "failed"
	ByteSize       int       `json:"byte_size,omitempty"`
	DurationMS     int64     `json:"duration_ms,omitempty"`
	CacheHit       bool      `json:"cache_hit,omitempty"`
	ErrorCode      string    `json:"error_code,omitempty"`
	Message        string    `json:"message,omitempty"`
}

// ErrorEntry is one classified export failure retained for diagnostics.
type ErrorEntry struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Code        string    `json:"code"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
	Attempt     int       `json:"attempt"`
	Format      string    `json:"format,omitempty"`
	Quality     string    `json:"quality,omitempty"`
	SlideCount  int       `json:"slide_count,omitempty"`
}

// Job is one queued asynchronous export.
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
	ResultPath  string
}

// ExportAggregates summarizes the export_events table.
type ExportAggregates struct {
	TotalStarted   int            `json:"total_started"`
	TotalCompleted int            `json:"total_completed"`
	TotalFailed    int            `json:"total_failed"`
	CacheHits      int            `json:"cache_hits"`
	ByFormat       map[string]int `json:"by_format"`
	AvgDurationMS  int64          `json:"avg_duration_ms"`
}
