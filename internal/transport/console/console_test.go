package console

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/codebridge/internal/logging"
)

func sized(m model) model {
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(model)
}

func TestModel_SubmitCallsHandler(t *testing.T) {
	var got []string
	m := sized(newModel("test", newHighlighter(false), func(s string) { got = append(got, s) }))

	m.input.SetValue("  add a readme ")
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(model)

	assert.Equal(t, []string{"add a readme"}, got)
	assert.Empty(t, m.input.Value())
	require.Len(t, *m.entries, 1)
	assert.Equal(t, entryUser, (*m.entries)[0].kind)
}

func TestModel_EmptyInputIgnored(t *testing.T) {
	called := false
	m := sized(newModel("test", newHighlighter(false), func(string) { called = true }))
	m.input.SetValue("   ")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, called)
	assert.Empty(t, *m.entries)
}

func TestModel_QuitCommand(t *testing.T) {
	m := sized(newModel("test", newHighlighter(false), func(string) { t.Fatal("quit must not reach the handler") }))
	m.input.SetValue("/quit")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModel_TypingThenReply(t *testing.T) {
	m := sized(newModel("test", newHighlighter(false), nil))

	updated, cmd := m.Update(typingMsg{})
	m = updated.(model)
	assert.True(t, m.busy)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "working")

	updated, _ = m.Update(replyMsg{text: "Done | 1.0s\n\nCreated README.md"})
	m = updated.(model)
	assert.False(t, m.busy)
	require.Len(t, *m.entries, 1)
	assert.Equal(t, entryReply, (*m.entries)[0].kind)
	assert.Contains(t, m.renderEntries(), "Created README.md")
}

func TestModel_ErrorReplyStyled(t *testing.T) {
	m := sized(newModel("test", newHighlighter(false), nil))
	updated, _ := m.Update(replyMsg{text: "Error while handling the message: boom"})
	m = updated.(model)
	assert.Equal(t, entryError, (*m.entries)[0].kind)
}

func TestModel_ViewBeforeSize(t *testing.T) {
	m := newModel("test", newHighlighter(false), nil)
	assert.Equal(t, "Starting...\n", m.View())
}

func TestHighlighter(t *testing.T) {
	text := "before\n```go\nfunc main() {}\n```\nafter"

	assert.Equal(t, text, newHighlighter(false).render(text))

	out := newHighlighter(true).render(text)
	assert.True(t, strings.HasPrefix(out, "before\n```go\n"))
	assert.True(t, strings.HasSuffix(out, "\n```\nafter"))
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, out, "main")
}

func TestConsole_SendBeforeStart(t *testing.T) {
	c := New(Options{}, logging.Nop())
	assert.Error(t, c.Send(context.Background(), ConversationID, "hi"))
	assert.Error(t, c.SendTyping(context.Background(), ConversationID))
	assert.Equal(t, "console", c.Name())
}
