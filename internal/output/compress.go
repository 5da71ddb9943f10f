// Package output fits agent output and replies into chat message limits.
package output

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultCompressLength is the default budget for a compressed reply.
	DefaultCompressLength = 3500

	// headerMargin is reserved between the status header and the content budget.
	headerMargin = 50

	headShare = 0.6
	tailShare = 0.3
)

// CompressOptions describes one agent run for Compress.
type CompressOptions struct {
	MaxLength int
	Cost      float64
	Duration  time.Duration
	IsError   bool
}

// Header renders the one-line status header, e.g. "Done | 12.3s | $0.0420".
func Header(opts CompressOptions) string {
	status := "Done"
	if opts.IsError {
		status = "Error"
	}
	parts := []string{status}
	if opts.Duration > 0 {
		parts = append(parts, fmt.Sprintf("%.1fs", opts.Duration.Seconds()))
	}
	if opts.Cost != 0 {
		parts = append(parts, fmt.Sprintf("$%.4f", opts.Cost))
	}
	return strings.Join(parts, " | ")
}

// Compress renders agent text as a status header plus a body that fits
// MaxLength. Text over budget keeps its head and tail and replaces the
// middle with a notice carrying the exact omitted character count.
func Compress(text string, opts CompressOptions) string {
	maxLen := opts.MaxLength
	if maxLen <= 0 {
		maxLen = DefaultCompressLength
	}

	header := Header(opts)
	if text == "" {
		return header
	}

	runes := []rune(text)
	budget := maxLen - len([]rune(header)) - headerMargin
	if budget < 0 {
		budget = 0
	}
	if len(runes) <= budget {
		return header + "\n\n" + text
	}

	headBudget := int(float64(budget) * headShare)
	tailBudget := int(float64(budget) * tailShare)

	// Cut on line breaks unless that would leave a near-empty slice.
	head := runes[:headBudget]
	if cut := lastRuneIndex(head, "\n"); float64(cut) > float64(headBudget)*0.5 {
		head = head[:cut]
	}

	tail := runes[len(runes)-tailBudget:]
	if cut := runeIndex(tail, "\n"); cut > 0 && float64(cut) < float64(tailBudget)*tailShare {
		tail = tail[cut+1:]
	}

	omitted := len(runes) - len(head) - len(tail)
	return strings.Join([]string{
		header,
		"",
		string(head),
		fmt.Sprintf("\n... %d characters omitted, /detail shows the full output ...\n", omitted),
		string(tail),
	}, "\n")
}
