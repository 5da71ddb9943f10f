// Package console drives the router from a local terminal.
package console

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/abdul-hamid-achik/codebridge/internal/logging"
	"github.com/abdul-hamid-achik/codebridge/internal/transport"
)

// ConversationID is the single conversation a console session uses.
const ConversationID = "console"

// Options configure the console.
type Options struct {
	// Title is shown in the header, typically the config path or model.
	Title     string
	Highlight bool
	// Bypass selects input handled immediately instead of waiting for the
	// running task.
	Bypass func(transport.Message) bool
}

// Console implements transport.Transport with a bubbletea UI.
type Console struct {
	opts Options
	log  *logging.Logger

	mu      sync.Mutex
	program *tea.Program
}

var _ transport.Transport = (*Console)(nil)

// New creates a console transport.
func New(opts Options, log *logging.Logger) *Console {
	return &Console{opts: opts, log: log.WithPrefix("console")}
}

// IsTTYAvailable reports whether stdin and stdout are terminals.
func IsTTYAvailable() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Name returns the platform name.
func (c *Console) Name() string {
	return "console"
}

// Start runs the UI until the user quits or ctx is done.
func (c *Console) Start(ctx context.Context, h transport.Handler) error {
	if !IsTTYAvailable() {
		return fmt.Errorf("console mode requires a terminal")
	}

	d := transport.NewDispatcher(h, c.opts.Bypass)
	submit := func(text string) {
		d.Dispatch(ctx, transport.Message{
			Platform:       "console",
			UserID:         "local",
			ConversationID: ConversationID,
			Text:           text,
		})
	}

	m := newModel(c.opts.Title, newHighlighter(c.opts.Highlight), submit)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	c.mu.Lock()
	c.program = p
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.program = nil
		c.mu.Unlock()
	}()

	_, err := p.Run()
	d.Wait()
	if err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return err
	}
	return nil
}

func (c *Console) send(msg tea.Msg) error {
	c.mu.Lock()
	p := c.program
	c.mu.Unlock()
	if p == nil {
		return fmt.Errorf("console is not running")
	}
	p.Send(msg)
	return nil
}

// Send shows a reply. The terminal has no length limit so text is never
// split.
func (c *Console) Send(_ context.Context, _ string, text string) error {
	return c.send(replyMsg{text: text})
}

// SendTyping starts the spinner.
func (c *Console) SendTyping(_ context.Context, _ string) error {
	return c.send(typingMsg{})
}
