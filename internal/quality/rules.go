package quality

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"github.com/nbrem108/sprintdeck/internal/model"
)

const (
	ruleFileIntegrity        = "file_integrity"
	ruleContentCompleteness  = "content_completeness"
	ruleFormatCompliance     = "format_compliance"
	ruleSizeThreshold        = "size_threshold"
	ruleProcessingTime       = "processing_time"
	ruleAccessibility        = "accessibility"
	rulePerformance          = "performance"
	ruleSecurity             = "security"
	ruleMetadataCompleteness = "metadata_completeness"
)

const (
	maxArtifactBytes = 50 << 20         // 50MB
	maxProcessing    = 30 * time.Second // render budget
	maxBytesPerSlide = 2 << 20          // 2MB
)

func defaultRules() []Rule {
	return []Rule{
		{ID: ruleFileIntegrity, Severity: SeverityCritical, Check: checkFileIntegrity},
		{ID: ruleContentCompleteness, Severity: SeverityCritical, Check: checkContentCompleteness},
		{ID: ruleFormatCompliance, Severity: SeverityWarning, Check: checkFormatCompliance},
		{ID: ruleSizeThreshold, Severity: SeverityWarning, Check: checkSizeThreshold},
		{ID: ruleProcessingTime, Severity: SeverityInfo, Check: checkProcessingTime},
		{ID: ruleAccessibility, Severity: SeverityInfo, Check: checkAccessibility},
		{ID: rulePerformance, Severity: SeverityInfo, Check: checkPerformance},
		{ID: ruleSecurity, Severity: SeverityCritical, Check: checkSecurity},
		{ID: ruleMetadataCompleteness, Severity: SeverityWarning, Check: checkMetadataCompleteness},
	}
}

func isPDFFormat(f model.Format) bool {
	switch f {
	case model.FormatPDF, model.FormatDigest, model.FormatAdvancedDigest:
		return true
	}
	return false
}

// checkFileIntegrity re-parses the produced bytes with a real reader
// for structured formats. A payload the target consumer cannot open is
// a critical failure no matter what else passed.
func checkFileIntegrity(in Input) (bool, string, map[string]any) {
	if in.Result == nil || len(in.Result.Payload) == 0 {
		return false, "artifact payload is empty", nil
	}

	switch {
	case isPDFFormat(in.Result.Format):
		r, err := pdf.NewReader(bytes.NewReader(in.Result.Payload), int64(len(in.Result.Payload)))
		if err != nil {
			return false, fmt.Sprintf("pdf does not parse: %v", err), nil
		}
		pages := r.NumPage()
		if pages < 1 {
			return false, "pdf has no pages", nil
		}
		return true, fmt.Sprintf("pdf parses with %d pages", pages), map[string]any{"pages": pages}
	case in.Result.Format == model.FormatHTML:
		if _, err := html.Parse(bytes.NewReader(in.Result.Payload)); err != nil {
			return false, fmt.Sprintf("html does not parse: %v", err), nil
		}
		return true, "html parses", nil
	default:
		return true, "payload is non-empty", nil
	}
}

func checkContentCompleteness(in Input) (bool, string, map[string]any) {
	if in.Presentation == nil || len(in.Presentation.Slides) == 0 {
		return false, "presentation has no slides", nil
	}
	if in.Result == nil {
		return false, "no result to inspect", nil
	}
	want, got := len(in.Presentation.Slides), in.Result.Meta.SlideCount
	if got != want {
		return false, fmt.Sprintf("result covers %d of %d slides", got, want),
			map[string]any{"expected": want, "actual": got}
	}
	return true, fmt.Sprintf("all %d slides present", want), nil
}

func checkFormatCompliance(in Input) (bool, string, map[string]any) {
	if in.Result == nil {
		return false, "no result to inspect", nil
	}
	if in.Result.Format != in.Options.Format {
		return false, fmt.Sprintf("produced format %q, requested %q", in.Result.Format, in.Options.Format), nil
	}
	wantExt := "." + in.Result.Format.Extension()
	if !strings.HasSuffix(in.Result.FileName, wantExt) {
		return false, fmt.Sprintf("file name %q lacks %s extension", in.Result.FileName, wantExt), nil
	}
	return true, "format and extension match the request", nil
}

func checkSizeThreshold(in Input) (bool, string, map[string]any) {
	if in.Result == nil || in.Result.ByteSize == 0 {
		return false, "artifact is empty", nil
	}
	if in.Result.ByteSize > maxArtifactBytes {
		return false, fmt.Sprintf("artifact is %d bytes, budget is %d", in.Result.ByteSize, maxArtifactBytes),
			map[string]any{"bytes": in.Result.ByteSize}
	}
	return true, fmt.Sprintf("artifact is %d bytes", in.Result.ByteSize), nil
}

func checkProcessingTime(in Input) (bool, string, map[string]any) {
	if in.Result == nil {
		return false, "no result to inspect", nil
	}
	d := in.Result.Meta.Duration
	if d > maxProcessing {
		return false, fmt.Sprintf("render took %s, budget is %s", d, maxProcessing),
			map[string]any{"duration_ms": d.Milliseconds()}
	}
	return true, fmt.Sprintf("render took %s", d), nil
}

// checkAccessibility verifies HTML artifacts announce themselves: a
// lang attribute on <html> and a non-empty <title>. Non-HTML formats
// pass when the presentation carries a title.
func checkAccessibility(in Input) (bool, string, map[string]any) {
	if in.Result == nil {
		return false, "no result to inspect", nil
	}
	if in.Result.Format != model.FormatHTML {
		if in.Presentation != nil && strings.TrimSpace(in.Presentation.Title) == "" {
			return false, "presentation has no title", nil
		}
		return true, "document carries a title", nil
	}

	doc, err := html.Parse(bytes.NewReader(in.Result.Payload))
	if err != nil {
		return false, "html does not parse", nil
	}
	hasLang, hasTitle := false, false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "html":
				for _, a := range n.Attr {
					if a.Key == "lang" && a.Val != "" {
						hasLang = true
					}
				}
			case "title":
				if n.FirstChild != nil && strings.TrimSpace(n.FirstChild.Data) != "" {
					hasTitle = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	switch {
	case !hasLang:
		return false, "html element has no lang attribute", nil
	case !hasTitle:
		return false, "document has no title", nil
	}
	return true, "document declares language and title", nil
}

func checkPerformance(in Input) (bool, string, map[string]any) {
	if in.Result == nil || in.Result.Meta.SlideCount == 0 {
		return false, "no slides to measure against", nil
	}
	perSlide := in.Result.ByteSize / in.Result.Meta.SlideCount
	if perSlide > maxBytesPerSlide {
		return false, fmt.Sprintf("%d bytes per slide, budget is %d", perSlide, maxBytesPerSlide),
			map[string]any{"bytes_per_slide": perSlide}
	}
	return true, fmt.Sprintf("%d bytes per slide", perSlide), nil
}

// checkSecurity scans HTML artifacts for active content. Slide and
// issue text is template-escaped on the way in, so a live script
// element, inline event handler, or javascript: URL in the output means
// untrusted content made it through unescaped.
func checkSecurity(in Input) (bool, string, map[string]any) {
	if in.Result == nil {
		return false, "no result to inspect", nil
	}
	if in.Result.Format != model.FormatHTML {
		return true, "format carries no active content", nil
	}

	doc, err := html.Parse(bytes.NewReader(in.Result.Payload))
	if err != nil {
		return false, "html does not parse", nil
	}
	var findings []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "iframe", "object", "embed":
				findings = append(findings, "<"+n.Data+"> element")
			}
			for _, a := range n.Attr {
				key := strings.ToLower(a.Key)
				switch {
				case strings.HasPrefix(key, "on"):
					findings = append(findings, key+" handler")
				case key == "href" || key == "src":
					if strings.HasPrefix(strings.TrimSpace(strings.ToLower(a.Val)), "javascript:") {
						findings = append(findings, "javascript: "+key)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(findings) > 0 {
		return false, "active content in artifact: " + strings.Join(findings, ", "),
			map[string]any{"findings": findings}
	}
	return true, "no active content in artifact", nil
}

func checkMetadataCompleteness(in Input) (bool, string, map[string]any) {
	if in.Result == nil {
		return false, "no result to inspect", nil
	}
	var missing []string
	if in.Result.FileName == "" {
		missing = append(missing, "file name")
	}
	if in.Result.Format == "" {
		missing = append(missing, "format")
	}
	if in.Result.Meta.Quality == "" {
		missing = append(missing, "quality")
	}
	if in.Result.Meta.SlideCount == 0 {
		missing = append(missing, "slide count")
	}
	if len(missing) > 0 {
		return false, "metadata missing: " + strings.Join(missing, ", "),
			map[string]any{"missing": missing}
	}
	return true, "metadata fully stamped", nil
}
