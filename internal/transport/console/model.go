package console

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

type entryKind int

const (
	entryUser entryKind = iota
	entryReply
	entryError
)

type entry struct {
	kind entryKind
	text string
}

// replyMsg carries an outbound message into the program.
type replyMsg struct{ text string }

// typingMsg turns the spinner on until the next reply.
type typingMsg struct{}

// model is the bubbletea model. Entries live behind a pointer so copies
// made by tea.Program share them.
type model struct {
	title    string
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	hl       *highlighter
	entries  *[]entry
	busy     bool
	ready    bool
	width    int
	height   int
	onSubmit func(text string)
}

func newModel(title string, hl *highlighter, onSubmit func(string)) model {
	ti := textinput.New()
	ti.Placeholder = "Send a task or /help..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 0
	ti.Width = 50

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = dimStyle

	entries := make([]entry, 0)
	return model{
		title:    title,
		input:    ti,
		spinner:  sp,
		hl:       hl,
		entries:  &entries,
		onSubmit: onSubmit,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		// header 1 line, footer 2 lines
		vpHeight := max(m.height-4, 1)
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.input.Width = max(m.width-4, 10)
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if text == "" {
				return m, nil
			}
			if text == "/quit" || text == "/exit" {
				return m, tea.Quit
			}
			m.add(entry{kind: entryUser, text: text})
			if m.onSubmit != nil {
				m.onSubmit(text)
			}
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case replyMsg:
		m.busy = false
		kind := entryReply
		if strings.HasPrefix(msg.text, "Error") {
			kind = entryError
		}
		m.add(entry{kind: kind, text: msg.text})
		return m, nil

	case typingMsg:
		if !m.busy {
			m.busy = true
			return m, m.spinner.Tick
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *model) add(e entry) {
	*m.entries = append(*m.entries, e)
	m.refresh()
}

func (m *model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderEntries())
	m.viewport.GotoBottom()
}

func (m model) renderEntries() string {
	var b strings.Builder
	for i, e := range *m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.kind {
		case entryUser:
			b.WriteString(userPrefixStyle.Render(iconUser) + " " + userStyle.Render(e.text))
		case entryError:
			b.WriteString(errorStyle.Render(e.text))
		default:
			b.WriteString(replyStyle.Render(m.hl.render(e.text)))
		}
	}
	return b.String()
}

func (m model) View() string {
	if !m.ready {
		return "Starting...\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Width(m.width).Render(headerTitleStyle.Render("codebridge") + " " + dimStyle.Render(m.title)))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	status := "ready"
	if m.busy {
		status = m.spinner.View() + " working"
	}
	b.WriteString(footerStyle.Width(m.width).Render(status + dimStyle.Render("  esc to quit")))
	b.WriteString("\n")
	b.WriteString(userPrefixStyle.Render(iconUser) + " " + m.input.View())
	return b.String()
}
