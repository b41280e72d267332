package model

import "time"

// SlideKind identifies the variant of a slide.
type SlideKind string

const (
	SlideTitle     SlideKind = "title"
	SlideSummary   SlideKind = "summary"
	SlideMetrics   SlideKind = "metrics"
	SlideDemoStory SlideKind = "demo-story"
	SlideCorporate SlideKind = "corporate"
	SlideCustom    SlideKind = "custom"
)

// Slide is one unit of a presentation. Content holds free text; Fields
// holds structured key/value data (metrics slides). Demo-story slides
// reference an externally owned issue by key.
type Slide struct {
	Kind     SlideKind         `json:"kind"`
	Title    string            `json:"title"`
	Content  string            `json:"content,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	Order    int               `json:"order"`
	IssueKey string            `json:"issue_key,omitempty"`
}

// Presentation is an ordered slide deck plus metadata. Callers own it;
// the export pipeline never mutates a presentation it is handed.
type Presentation struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	SprintName string    `json:"sprint_name"`
	CreatedAt  time.Time `json:"created_at"`
	Slides     []Slide   `json:"slides"`
}

// Clone returns a deep copy. The pipeline clones at its boundary so
// concurrent caller mutation cannot leak into renders or cache entries.
func (p *Presentation) Clone() *Presentation {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Slides = make([]Slide, len(p.Slides))
	for i, s := range p.Slides {
		cs := s
		if s.Fields != nil {
			cs.Fields = make(map[string]string, len(s.Fields))
			for k, v := range s.Fields {
				cs.Fields[k] = v
			}
		}
		cp.Slides[i] = cs
	}
	return &cp
}

// CountByKind returns how many slides of each kind the deck contains.
func (p *Presentation) CountByKind() map[SlideKind]int {
	counts := make(map[SlideKind]int)
	for _, s := range p.Slides {
		counts[s.Kind]++
	}
	return counts
}
