package memory

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/abdul-hamid-achik/codebridge/internal/logging"
	"github.com/abdul-hamid-achik/codebridge/internal/output"
)

// TaskMarker introduces the user's message in an augmented prompt.
const TaskMarker = "## Current task"

const (
	DefaultRecentEntries    = 15
	DefaultMaxContextTokens = 4000
	// DefaultTokensPerChar is a rough multiplier, not a tokenizer.
	DefaultTokensPerChar = 2
)

// RecentLister is the part of Store the injector needs.
type RecentLister interface {
	Recent(ctx context.Context, project string, n int) ([]Entry, error)
}

// Injector prepends recent project history to the first message of a new
// agent session.
type Injector struct {
	RecentEntries    int
	MaxContextTokens int
	TokensPerChar    int

	log *logging.Logger
}

// NewInjector creates an injector; zero values take the defaults.
func NewInjector(recent, maxTokens, tokensPerChar int, log *logging.Logger) *Injector {
	if recent <= 0 {
		recent = DefaultRecentEntries
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	if tokensPerChar <= 0 {
		tokensPerChar = DefaultTokensPerChar
	}
	return &Injector{
		RecentEntries:    recent,
		MaxContextTokens: maxTokens,
		TokensPerChar:    tokensPerChar,
		log:              log.WithPrefix("injector"),
	}
}

// BuildPrompt returns message unchanged when project has no history,
// otherwise the rendered history block, a separator and the message.
func (i *Injector) BuildPrompt(ctx context.Context, store RecentLister, project, message string) string {
	recent, err := store.Recent(ctx, project, i.RecentEntries)
	if err != nil {
		i.log.Warn("load recent memory failed", logging.Project(project), logging.Err(err))
		return message
	}
	if len(recent) == 0 {
		return message
	}

	lines := make([]string, 0, len(recent))
	for _, e := range recent {
		lines = append(lines, fmt.Sprintf("- [%s] %s -> %s",
			e.Time.Format("2006-01-02T15:04"),
			output.Truncate(e.Task, 80),
			output.Truncate(e.Summary, 100),
		))
	}
	block := fmt.Sprintf("## Recent work (last %d entries)\n%s", len(recent), strings.Join(lines, "\n"))

	if estimated := utf8.RuneCountInString(block) * i.TokensPerChar; estimated > i.MaxContextTokens {
		block = output.Truncate(block, i.MaxContextTokens/i.TokensPerChar) + "\n... (older entries truncated)"
	}

	i.log.Event(logging.EventMemoryInject, logging.Project(project), logging.F("entries", len(recent)))

	return block + "\n\n---\n\n" + TaskMarker + "\n" + message +
		"\n\nCarry out the current task using the project background above. Refer to the recent entries when they are relevant."
}
