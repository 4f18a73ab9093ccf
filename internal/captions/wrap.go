package captions

import (
	"strings"
	"unicode/utf8"
)

// DefaultWidth is the maximum caption line width in characters.
const DefaultWidth = 40

// Wrap packs words greedily into lines of at most width runes. A word longer
// than width sits alone on its own line and is never split. Blank text yields
// no lines. width <= 0 selects DefaultWidth.
func Wrap(text string, width int) []string {
	if width <= 0 {
		width = DefaultWidth
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	lines := make([]string, 0, 2)
	var current strings.Builder
	currentLen := 0
	for _, word := range words {
		wordLen := utf8.RuneCountInString(word)
		if currentLen > 0 && currentLen+1+wordLen > width {
			lines = append(lines, current.String())
			current.Reset()
			currentLen = 0
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(word)
		currentLen += wordLen
	}
	if currentLen > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
