// Package router turns inbound chat messages into control commands or
// agent tasks and sends the reply back through the transport.
package router

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	cberr "github.com/abdul-hamid-achik/codebridge/internal/errors"
	"github.com/abdul-hamid-achik/codebridge/internal/executor"
	"github.com/abdul-hamid-achik/codebridge/internal/files"
	"github.com/abdul-hamid-achik/codebridge/internal/gitops"
	"github.com/abdul-hamid-achik/codebridge/internal/logging"
	"github.com/abdul-hamid-achik/codebridge/internal/memory"
	"github.com/abdul-hamid-achik/codebridge/internal/output"
	"github.com/abdul-hamid-achik/codebridge/internal/projects"
	"github.com/abdul-hamid-achik/codebridge/internal/session"
	"github.com/abdul-hamid-achik/codebridge/internal/transport"
)

// Agent runs tasks for a conversation. *executor.Executor implements it.
type Agent interface {
	Run(ctx context.Context, req executor.Request) executor.Result
	Abort(conversationID string) bool
}

// MemoryStores hands out the memory store of a project root.
// *memory.Manager implements it.
type MemoryStores interface {
	Store(root string) (*memory.Store, error)
}

// Deps are the collaborators of a Router.
type Deps struct {
	Sessions *session.Store
	Agent    Agent
	Projects *projects.Manager
	Memory   MemoryStores
	Injector *memory.Injector
	Git      *gitops.Git
	Files    *files.Viewer
	Replier  transport.Replier
	Log      *logging.Logger
}

// Router dispatches messages. It is safe for concurrent use; messages of
// one conversation are handled one at a time.
type Router struct {
	sessions *session.Store
	agent    Agent
	projects *projects.Manager
	memory   MemoryStores
	injector *memory.Injector
	git      *gitops.Git
	files    *files.Viewer
	replier  transport.Replier
	log      *logging.Logger

	mu      sync.Mutex
	outputs map[string]string
}

// New creates a router.
func New(d Deps) *Router {
	return &Router{
		sessions: d.Sessions,
		agent:    d.Agent,
		projects: d.Projects,
		memory:   d.Memory,
		injector: d.Injector,
		git:      d.Git,
		files:    d.Files,
		replier:  d.Replier,
		log:      d.Log.WithPrefix("router"),
		outputs:  make(map[string]string),
	}
}

// request is one parsed inbound message.
type request struct {
	msg  transport.Message
	arg  string
	conv session.Conversation
}

func (q request) id() string {
	return q.msg.ConversationID
}

// Handle processes one message. It never returns an error: failures are
// logged and reported to the user.
func (r *Router) Handle(ctx context.Context, msg transport.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	log := r.log.With(logging.ConversationID(msg.ConversationID), logging.F("user", msg.UserID))
	log.Info("message received", logging.F("text", output.Truncate(text, 100)))

	defer func() {
		if p := recover(); p != nil {
			err := cberr.Internal(fmt.Errorf("panic: %v", p))
			log.Error("handler panicked", logging.Err(err))
			r.reply(ctx, msg.ConversationID, "Error while handling the message: "+cberr.GetUserMessage(err))
		}
	}()

	token, arg := "", ""
	if strings.HasPrefix(text, "/") {
		token, arg = parseCommand(text)
	}

	// /abort must reach a conversation whose lock is held by a running task.
	if !isBypass(token) {
		unlock := r.sessions.Lock(msg.ConversationID)
		defer unlock()
	}

	req := request{msg: msg, arg: arg, conv: r.sessions.GetOrCreate(msg.ConversationID)}

	var (
		reply string
		err   error
	)
	if token == "" {
		reply, err = r.runTask(ctx, req, text)
	} else {
		reply, err = r.dispatch(ctx, req, token)
	}
	if err != nil {
		reply = r.errorReply(log, token, err)
	}
	if reply != "" {
		r.reply(ctx, msg.ConversationID, reply)
	}
}

func (r *Router) dispatch(ctx context.Context, req request, token string) (string, error) {
	cmd, ok := commandTable[token]
	if !ok {
		return unknownCommand(token), nil
	}
	if cmd.needsProject && !req.conv.HasProject() {
		return selectProjectShort, nil
	}
	return cmd.handler(r, ctx, req)
}

// errorReply renders a handler error. Input and policy errors carry a
// message written for the user; anything else is reported as a failure.
func (r *Router) errorReply(log *logging.Logger, token string, err error) string {
	switch cberr.GetCategory(err) {
	case cberr.CategoryInput, cberr.CategoryPolicy, cberr.CategoryConfig, cberr.CategoryTimeout:
		log.Info("command rejected", logging.Command(token), logging.Err(err))
		return cberr.GetUserMessage(err)
	}
	log.Error("command failed", logging.Command(token), logging.Err(err))
	return "Error while handling the message: " + cberr.GetUserMessage(err)
}

func (r *Router) reply(ctx context.Context, conversationID, text string) {
	if err := r.replier.Send(ctx, conversationID, text); err != nil {
		r.log.Warn("send reply failed", logging.ConversationID(conversationID), logging.Err(err))
	}
}

// LastOutput returns the raw agent output cached for a conversation.
func (r *Router) LastOutput(conversationID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outputs[conversationID]
}

func (r *Router) setLastOutput(conversationID, out string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[conversationID] = out
}

// Bypasses reports whether m must be handled without waiting for the
// conversation's running task. Transports use it to let /abort skip
// their per-conversation queue.
func Bypasses(m transport.Message) bool {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return false
	}
	token, _ := parseCommand(text)
	return isBypass(token)
}

func isBypass(token string) bool {
	return token == "/abort"
}

// parseCommand splits "/cmd@bot arg..." into a lowercased token without
// the bot suffix and the trimmed argument.
func parseCommand(text string) (token, arg string) {
	parts := splitArgs(text, 2)
	token = strings.ToLower(parts[0])
	if i := strings.Index(token, "@"); i >= 0 {
		token = token[:i]
	}
	if len(parts) > 1 {
		arg = parts[1]
	}
	return token, arg
}

// splitArgs splits s on whitespace into at most n fields; the last field
// keeps the remainder with its inner spacing.
func splitArgs(s string, n int) []string {
	var out []string
	s = strings.TrimSpace(s)
	for s != "" && len(out) < n-1 {
		i := strings.IndexFunc(s, unicode.IsSpace)
		if i < 0 {
			break
		}
		out = append(out, s[:i])
		s = strings.TrimSpace(s[i:])
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

// sliceRunes returns runes [from, to) of s, clamped to its length.
func sliceRunes(s string, from, to int) string {
	runes := []rune(s)
	if from >= len(runes) {
		return ""
	}
	return string(runes[from:min(to, len(runes))])
}
