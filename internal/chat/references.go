package chat

import (
	"regexp"
	"strconv"

	"github.com/atelier-ai/atelier/internal/review"
)

// referenceTextLimit caps the excerpt length carried in a Reference.
const referenceTextLimit = 300

var markerPattern = regexp.MustCompile(`\[(\d+)\]`)

// ResolveReferences maps bracketed citation markers in the answer to their
// sources. Document chunks take precedence; when none were supplied, markers
// resolve against the reviewed search selection of the final tool round.
// Markers with no matching source are left in the text and omitted here.
// Order of first appearance is kept; duplicates collapse.
func ResolveReferences(content string, chunks []DocumentChunk, searched []review.Assessment) []Reference {
	matches := markerPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[int]struct{})
	var refs []Reference
	for _, m := range matches {
		id, err := strconv.Atoi(m[1])
		if err != nil || id < 1 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}

		var ref Reference
		switch {
		case len(chunks) > 0:
			if id > len(chunks) {
				continue
			}
			c := chunks[id-1]
			ref = Reference{
				ID:         id,
				Text:       truncateText(c.Content),
				Source:     c.Metadata.Source,
				Page:       c.Metadata.Page,
				ChunkID:    c.ID,
				SourceInfo: c.Metadata.SourceInfo,
			}
		case len(searched) > 0:
			if id > len(searched) {
				continue
			}
			a := searched[id-1]
			ref = Reference{
				ID:     id,
				Text:   truncateText(a.Snippet),
				Source: a.Source,
				Title:  a.Title,
				URL:    a.URL,
			}
		default:
			continue
		}

		seen[id] = struct{}{}
		refs = append(refs, ref)
	}
	return refs
}

func truncateText(s string) string {
	runes := []rune(s)
	if len(runes) <= referenceTextLimit {
		return s
	}
	return string(runes[:referenceTextLimit]) + "..."
}
