package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/codebridge/internal/logging"
)

type fakeLister struct {
	entries []Entry
	err     error
	gotN    int
}

func (f *fakeLister) Recent(_ context.Context, _ string, n int) ([]Entry, error) {
	f.gotN = n
	return f.entries, f.err
}

func TestInjector_NoHistory(t *testing.T) {
	inj := NewInjector(0, 0, 0, logging.Nop())
	lister := &fakeLister{}

	got := inj.BuildPrompt(context.Background(), lister, "demo", "add a readme")
	assert.Equal(t, "add a readme", got)
	assert.Equal(t, DefaultRecentEntries, lister.gotN)
}

func TestInjector_StoreErrorReturnsMessage(t *testing.T) {
	inj := NewInjector(0, 0, 0, logging.Nop())
	got := inj.BuildPrompt(context.Background(), &fakeLister{err: errors.New("locked")}, "demo", "hi")
	assert.Equal(t, "hi", got)
}

func TestInjector_RendersEntries(t *testing.T) {
	inj := NewInjector(0, 0, 0, logging.Nop())
	lister := &fakeLister{entries: []Entry{
		{Time: time.Date(2025, 1, 2, 15, 4, 5, 0, time.Local), Task: strings.Repeat("t", 120), Summary: strings.Repeat("s", 150)},
		{Time: time.Date(2025, 1, 3, 9, 0, 0, 0, time.Local), Task: "fix tests", Summary: "all green"},
	}}

	got := inj.BuildPrompt(context.Background(), lister, "demo", "add a readme")

	assert.True(t, strings.HasPrefix(got, "## Recent work (last 2 entries)\n"))
	assert.Contains(t, got, "- [2025-01-02T15:04] "+strings.Repeat("t", 80)+" -> "+strings.Repeat("s", 100)+"\n")
	assert.Contains(t, got, "- [2025-01-03T09:00] fix tests -> all green")
	assert.Contains(t, got, "\n\n---\n\n"+TaskMarker+"\nadd a readme\n\n")
	assert.NotContains(t, got, "truncated")
}

func TestInjector_TruncatesOverBudget(t *testing.T) {
	inj := NewInjector(15, 400, 2, logging.Nop())
	var entries []Entry
	for i := 0; i < 15; i++ {
		entries = append(entries, Entry{Time: time.Now(), Task: strings.Repeat("a", 80), Summary: strings.Repeat("b", 100)})
	}

	got := inj.BuildPrompt(context.Background(), &fakeLister{entries: entries}, "demo", "go")

	block, _, found := strings.Cut(got, "\n\n---\n\n")
	require.True(t, found)
	assert.True(t, strings.HasSuffix(block, "\n... (older entries truncated)"))
	assert.Len(t, []rune(strings.TrimSuffix(block, "\n... (older entries truncated)")), 200)
	assert.True(t, strings.Contains(got, TaskMarker+"\ngo"))
}

func TestInjector_WithRealStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.SaveEntry(ctx, Entry{Project: "demo", Task: "init repo", Summary: "created go.mod"})
	require.NoError(t, err)

	got := NewInjector(0, 0, 0, logging.Nop()).BuildPrompt(ctx, s, "demo", "add a readme")
	assert.Contains(t, got, "init repo -> created go.mod")
	assert.Contains(t, got, TaskMarker)
}
