package model

import "fmt"

// Format is a target export format.
type Format string

const (
	FormatPDF            Format = "pdf"
	FormatHTML           Format = "html"
	FormatMarkdown       Format = "markdown"
	FormatMetrics        Format = "metrics"
	FormatExecutive      Format = "executive"
	FormatDigest         Format = "digest"
	FormatAdvancedDigest Format = "advanced-digest"
)

// Formats lists every supported format in a stable order.
func Formats() []Format {
	return []Format{
		FormatPDF, FormatHTML, FormatMarkdown, FormatMetrics,
		FormatExecutive, FormatDigest, FormatAdvancedDigest,
	}
}

// Quality is an output quality tier.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// ExportOptions configures a single export call. Read-only input.
type ExportOptions struct {
	Format        Format  `json:"format"`
	Quality       Quality `json:"quality"`
	IncludeImages bool    `json:"include_images,omitempty"`
	Compression   bool    `json:"compression,omitempty"`
	Interactive   bool    `json:"interactive,omitempty"`
	Progressive   bool    `json:"progressive,omitempty"`
	BatchSize     int     `json:"batch_size,omitempty"`
}

// Validate reports whether the format and quality tier are members of
// their closed sets. An empty quality defaults to medium.
func (o *ExportOptions) Validate() error {
	switch o.Format {
	case FormatPDF, FormatHTML, FormatMarkdown, FormatMetrics,
		FormatExecutive, FormatDigest, FormatAdvancedDigest:
	default:
		return fmt.Errorf("unknown export format %q", o.Format)
	}
	switch o.Quality {
	case QualityLow, QualityMedium, QualityHigh:
	case "":
		o.Quality = QualityMedium
	default:
		return fmt.Errorf("unknown quality tier %q", o.Quality)
	}
	return nil
}

// Extension returns the file extension for a format, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatPDF, FormatDigest, FormatAdvancedDigest:
		return "pdf"
	case FormatHTML:
		return "html"
	case FormatMarkdown, FormatExecutive:
		return "md"
	case FormatMetrics:
		return "json"
	default:
		return "bin"
	}
}
