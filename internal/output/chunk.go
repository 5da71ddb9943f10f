package output

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMessageLength is the default per-message limit for chat transports.
const DefaultMessageLength = 4000

// Split cuts text into chunks of at most max runes. Cut points prefer the
// end of a fenced code block, then a blank line, then any line break, and
// fall back to a hard cut. Leading line breaks are dropped from each
// remainder.
func Split(text string, max int) []string {
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= max {
			chunks = append(chunks, string(runes))
			break
		}

		window := runes[:max]
		cut := lastRuneIndex(window, "```\n")
		if float64(cut) > float64(max)*0.5 {
			cut += len("```\n")
		} else {
			cut = lastRuneIndex(window, "\n\n")
		}
		if cut == -1 || float64(cut) < float64(max)*0.3 {
			cut = lastRuneIndex(window, "\n")
		}
		if cut <= 0 {
			cut = max
		}

		chunks = append(chunks, string(runes[:cut]))
		runes = trimLeadingNewlines(runes[cut:])
	}
	return chunks
}

// Number prefixes each chunk with an "[i/N]" marker when there is more
// than one chunk.
func Number(chunks []string) []string {
	if len(chunks) <= 1 {
		return chunks
	}
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = fmt.Sprintf("[%d/%d]\n%s", i+1, len(chunks), c)
	}
	return out
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func trimLeadingNewlines(r []rune) []rune {
	i := 0
	for i < len(r) && r[i] == '\n' {
		i++
	}
	return r[i:]
}

// lastRuneIndex is strings.LastIndex measured in runes.
func lastRuneIndex(r []rune, sub string) int {
	s := string(r)
	i := strings.LastIndex(s, sub)
	if i < 0 {
		return -1
	}
	return utf8.RuneCountInString(s[:i])
}

// runeIndex is strings.Index measured in runes.
func runeIndex(r []rune, sub string) int {
	s := string(r)
	i := strings.Index(s, sub)
	if i < 0 {
		return -1
	}
	return utf8.RuneCountInString(s[:i])
}
