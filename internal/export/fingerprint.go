package export

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"github.com/nbrem108/sprintdeck/internal/model"
)

// Fingerprint derives the cache key for one export request. It covers
// the presentation's identity, slide count, every slide's content, and
// only the options that change output bytes. Flags that do not affect
// the artifact (progressive, batch size) are deliberately excluded so
// toggling them still hits the cache.
func Fingerprint(p *model.Presentation, opts model.ExportOptions) string {
	h := sha256.New()

	writeField(h, p.ID)
	writeField(h, p.Title)
	writeField(h, p.SprintName)
	fmt.Fprintf(h, "slides:%d\x00", len(p.Slides))

	for _, s := range p.Slides {
		writeField(h, string(s.Kind))
		writeField(h, s.Title)
		writeField(h, s.Content)
		writeField(h, s.IssueKey)
		fmt.Fprintf(h, "order:%d\x00", s.Order)
		keys := make([]string, 0, len(s.Fields))
		for k := range s.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			writeField(h, k)
			writeField(h, s.Fields[k])
		}
	}

	fmt.Fprintf(h, "opts:%s|%s|%t|%t|%t",
		opts.Format, opts.Quality, opts.IncludeImages, opts.Compression, opts.Interactive)

	return hex.EncodeToString(h.Sum(nil))
}

func writeField(w io.Writer, s string) {
	io.WriteString(w, s)
	w.Write([]byte{0})
}
