package ingest

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
)

// extractMetadata runs the best-effort media-specific extraction named in
// spec.md §4.5 step 5. Every error is captured as a value rather than
// propagated — a bad extraction never fails ingest.
//
// No PDF or image-metadata library ships in the retrieval pack, so page
// counting is a heuristic: it counts occurrences of the literal marker
// /Type /Page (not /Pages). Page objects written with other spacing (such
// as /Type/Page) or stored inside compressed object streams are not
// counted, and an incrementally-updated PDF can count a page more than
// once, which is an acceptable trade-off for a best-effort field (see
// DESIGN.md).
func extractMetadata(mediaType string, data []byte) map[string]string {
	switch mediaType {
	case "application/pdf":
		return map[string]string{"page_count": strconv.Itoa(countPDFPages(data))}
	case "image/png", "image/jpeg":
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return map[string]string{"extraction_error": fmt.Sprintf("decode image config: %v", err)}
		}
		return map[string]string{
			"width":  strconv.Itoa(cfg.Width),
			"height": strconv.Itoa(cfg.Height),
		}
	default:
		return nil
	}
}

var pdfPageMarker = []byte("/Type /Page")

// countPDFPages counts non-overlapping occurrences of a page object
// marker. /Type /Pages (the page-tree root) is excluded by requiring the
// byte after the match not continue the token.
func countPDFPages(data []byte) int {
	count := 0
	rest := data
	for {
		idx := bytes.Index(rest, pdfPageMarker)
		if idx < 0 {
			break
		}
		end := idx + len(pdfPageMarker)
		if end >= len(rest) || rest[end] != 's' {
			count++
		}
		rest = rest[end:]
	}
	return count
}
