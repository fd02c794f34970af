package zpl

import (
	"math"
	"strings"
	"unicode"
)

// charWidth estimates a glyph's advance as a fraction of the font height.
// The table approximates the printer's scalable font 0.
func charWidth(r rune) float64 {
	switch {
	case strings.ContainsRune("iljI.,:;'!|`", r):
		return 0.28
	case r == ' ':
		return 0.3
	case strings.ContainsRune("frt()[]-", r):
		return 0.36
	case strings.ContainsRune("mwMW@", r):
		return 0.85
	case r >= '0' && r <= '9':
		return 0.55
	case r < 0x80 && unicode.IsUpper(r):
		return 0.65
	case r < 0x80:
		return 0.52
	case unicode.IsUpper(r):
		return 0.7
	default:
		return 0.56
	}
}

// textWidth estimates the rendered width in dots of s at font height h
func textWidth(s string, h int) int {
	var w float64
	for _, r := range s {
		w += charWidth(r)
	}
	return int(math.Ceil(w * float64(h)))
}

// WrapText breaks text into at most maxLines lines no wider than maxWidth
// dots. Words wider than a line are split by rune. Text beyond the last line
// is dropped without an ellipsis. maxWidth <= 0 disables wrapping.
func WrapText(text string, maxWidth, h, maxLines int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if maxLines < 1 {
		maxLines = 1
	}
	if maxWidth <= 0 {
		return []string{strings.Join(words, " ")}
	}

	var lines []string
	cur := ""
	for _, word := range words {
		for _, piece := range splitWord(word, maxWidth, h) {
			candidate := piece
			if cur != "" {
				candidate = cur + " " + piece
			}
			if cur == "" || textWidth(candidate, h) <= maxWidth {
				cur = candidate
				continue
			}

			lines = append(lines, cur)
			if len(lines) >= maxLines {
				return lines
			}
			cur = piece
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}

	return lines
}

func splitWord(word string, maxWidth, h int) []string {
	if textWidth(word, h) <= maxWidth {
		return []string{word}
	}

	var pieces []string
	var cur []rune
	for _, r := range word {
		if len(cur) > 0 && textWidth(string(append(cur, r)), h) > maxWidth {
			pieces = append(pieces, string(cur))
			cur = cur[:0]
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		pieces = append(pieces, string(cur))
	}

	return pieces
}
