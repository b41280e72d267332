package model

import "time"

// ResultMeta is metadata stamped onto a result by the pipeline.
type ResultMeta struct {
	SlideCount int           `json:"slide_count"`
	Duration   time.Duration `json:"duration"`
	Quality    Quality       `json:"quality"`
}

// ExportResult is the output artifact of one render. Immutable once
// produced; the cache may hand the same result back unchanged.
type ExportResult struct {
	Payload  []byte     `json:"-"`
	FileName string     `json:"file_name"`
	ByteSize int        `json:"byte_size"`
	Format   Format     `json:"format"`
	Meta     ResultMeta `json:"meta"`
}

// ProgressStage tags which pipeline stage a progress event belongs to.
type ProgressStage string

const (
	StagePreparing  ProgressStage = "preparing"
	StageRendering  ProgressStage = "rendering"
	StageProcessing ProgressStage = "processing"
	StageFinalizing ProgressStage = "finalizing"
)

// Progress is one progress event. Percentage is in [0,100] and
// non-decreasing within a single export.
type Progress struct {
	Current    int           `json:"current"`
	Total      int           `json:"total"`
	Stage      ProgressStage `json:"stage"`
	Message    string        `json:"message"`
	Percentage float64       `json:"percentage"`
}

// ProgressFunc receives progress events. Implementations must return
// quickly; the pipeline invokes them synchronously.
type ProgressFunc func(Progress)
