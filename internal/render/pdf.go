package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nbrem108/sprintdeck/internal/model"
)

// PDFRenderer emits one PDF page per slide using the built-in writer.
type PDFRenderer struct{}

func (r *PDFRenderer) Render(ctx context.Context, p *model.Presentation, issues, upcoming []model.Issue,
	metrics *model.SprintMetrics, opts model.ExportOptions, onProgress model.ProgressFunc) (*model.ExportResult, error) {

	slides := sortedSlides(p)
	byKey := issueByKey(issues)

	doc := newPDFDoc(p.Title)
	for i, s := range slides {
		if err := checkCtx(ctx); err != nil {
			return nil, err
		}
		page := doc.addPage()
		page.heading(s.Title)
		writePDFSlideBody(page, s, byKey, metrics)
		reportSlide(onProgress, i, len(slides), s.Title)
	}
	if len(upcoming) > 0 {
		page := doc.addPage()
		page.heading("Upcoming Work")
		for _, is := range upcoming {
			page.line(fmt.Sprintf("- %s %s", is.Key, is.Summary))
		}
	}

	payload, err := doc.bytes()
	if err != nil {
		return nil, fmt.Errorf("assembling pdf: %w", err)
	}
	return finishResult(p, model.FormatPDF, opts, payload), nil
}

func writePDFSlideBody(page *pdfPage, s model.Slide, byKey map[string]model.Issue, metrics *model.SprintMetrics) {
	switch s.Kind {
	case model.SlideMetrics:
		if metrics != nil {
			page.line(fmt.Sprintf("Planned points: %.1f", metrics.PlannedPoints))
			page.line(fmt.Sprintf("Completed points: %.1f", metrics.CompletedPoints))
			page.line(fmt.Sprintf("Completion rate: %.0f%%", metrics.CompletionRate()))
			page.line(fmt.Sprintf("Issues completed: %d / %d", metrics.IssuesCompleted, metrics.IssuesPlanned))
		}
		for _, k := range sortedMapKeys(s.Fields) {
			page.line(fmt.Sprintf("%s: %s", k, s.Fields[k]))
		}
	case model.SlideDemoStory:
		if is, ok := byKey[s.IssueKey]; ok {
			page.line(fmt.Sprintf("%s  %s (%s)", is.Key, is.Summary, is.Status))
			if is.Assignee != "" {
				page.line("Assignee: " + is.Assignee)
			}
			page.paragraph(is.Description)
		} else if s.IssueKey != "" {
			slog.Warn("pdf render: demo-story issue not found", "issue_key", s.IssueKey, "slide", s.Title)
		}
		page.paragraph(s.Content)
	default:
		page.paragraph(s.Content)
	}
}

// pdfDoc builds a small PDF 1.4 document with Helvetica text, one
// content stream per page. Output parses under standard PDF readers.
type pdfDoc struct {
	title string
	pages []*pdfPage
}

type pdfPage struct {
	lines []pdfLine
}

type pdfLine struct {
	text string
	size int
}

const (
	pdfPageWidth   = 612 // US Letter, points
	pdfPageHeight  = 792
	pdfMarginLeft  = 56
	pdfMarginTop   = 64
	pdfBodySize    = 11
	pdfHeadingSize = 18
	pdfLeading     = 16
	pdfWrapColumns = 88
)

func newPDFDoc(title string) *pdfDoc {
	return &pdfDoc{title: title}
}

func (d *pdfDoc) addPage() *pdfPage {
	p := &pdfPage{}
	d.pages = append(d.pages, p)
	return p
}

func (p *pdfPage) heading(text string) {
	p.lines = append(p.lines, pdfLine{text: text, size: pdfHeadingSize})
	p.lines = append(p.lines, pdfLine{size: pdfBodySize}) // spacer
}

func (p *pdfPage) line(text string) {
	p.lines = append(p.lines, pdfLine{text: text, size: pdfBodySize})
}

// paragraph wraps long text at a fixed column and skips empty input.
func (p *pdfPage) paragraph(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	for _, raw := range strings.Split(text, "\n") {
		for _, wrapped := range wrapText(raw, pdfWrapColumns) {
			p.line(wrapped)
		}
	}
}

func wrapText(s string, cols int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}
	var out []string
	cur := words[0]
	for _, w := range words[1:] {
		if len(cur)+1+len(w) > cols {
			out = append(out, cur)
			cur = w
			continue
		}
		cur += " " + w
	}
	return append(out, cur)
}

// escapePDFString escapes the characters PDF literal strings reserve.
func escapePDFString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`, "\r", `\r`, "\n", `\n`)
	return r.Replace(s)
}

func (p *pdfPage) contentStream() []byte {
	var b bytes.Buffer
	y := pdfPageHeight - pdfMarginTop
	b.WriteString("BT\n")
	for _, ln := range p.lines {
		if y < pdfLeading*2 {
			break // page full, truncate rather than overflow
		}
		if ln.text != "" {
			fmt.Fprintf(&b, "/F1 %d Tf\n1 0 0 1 %d %d Tm\n(%s) Tj\n",
				ln.size, pdfMarginLeft, y, escapePDFString(ln.text))
		}
		y -= pdfLeading
		if ln.size == pdfHeadingSize {
			y -= pdfLeading / 2
		}
	}
	b.WriteString("ET\n")
	return b.Bytes()
}

// bytes serializes the document: catalog, page tree, one font, then a
// page and content-stream object pair per page, followed by the xref
// table and trailer.
func (d *pdfDoc) bytes() ([]byte, error) {
	if len(d.pages) == 0 {
		return nil, fmt.Errorf("pdf document has no pages")
	}

	// Object layout: 1 catalog, 2 pages root, 3 font, then pairs of
	// (page, contents) starting at 4.
	var body bytes.Buffer
	offsets := []int{0} // object 0 is the free head
	writeObj := func(content string) {
		offsets = append(offsets, body.Len())
		fmt.Fprintf(&body, "%d 0 obj\n%s\nendobj\n", len(offsets)-1, content)
	}

	body.WriteString("%PDF-1.4\n")

	kids := make([]string, len(d.pages))
	for i := range d.pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+i*2)
	}

	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>",
		strings.Join(kids, " "), len(d.pages)))
	writeObj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	for i, page := range d.pages {
		contentRef := 5 + i*2
		writeObj(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			pdfPageWidth, pdfPageHeight, contentRef))
		stream := page.contentStream()
		writeObj(fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(stream), stream))
	}

	var out bytes.Buffer
	out.Write(body.Bytes())

	xrefStart := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n", len(offsets))
	out.WriteString("0000000000 65535 f \n")
	for _, off := range offsets[1:] {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets), xrefStart)
	return out.Bytes(), nil
}
