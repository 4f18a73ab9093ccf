package captions

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse reads an SRT document. Carriage returns are ignored.
func Parse(data []byte) (Document, error) {
	content := strings.TrimSpace(strings.ReplaceAll(string(data), "\r", ""))
	if content == "" {
		return Document{}, nil
	}
	var doc Document
	for n, block := range strings.Split(content, "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			return Document{}, fmt.Errorf("block %d: too few lines", n+1)
		}
		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			return Document{}, fmt.Errorf("block %d: invalid index %q", n+1, lines[0])
		}
		startText, endText, ok := strings.Cut(lines[1], "-->")
		if !ok {
			return Document{}, fmt.Errorf("block %d: missing timing line", n+1)
		}
		start, err := ParseTimestamp(startText)
		if err != nil {
			return Document{}, fmt.Errorf("block %d: %w", n+1, err)
		}
		end, err := ParseTimestamp(endText)
		if err != nil {
			return Document{}, fmt.Errorf("block %d: %w", n+1, err)
		}
		doc.Cues = append(doc.Cues, Cue{Index: index, Start: start, End: end, Lines: lines[2:]})
	}
	return doc, nil
}
