package router

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/abdul-hamid-achik/codebridge/internal/executor"
	"github.com/abdul-hamid-achik/codebridge/internal/files"
	"github.com/abdul-hamid-achik/codebridge/internal/gitops"
	"github.com/abdul-hamid-achik/codebridge/internal/logging"
	"github.com/abdul-hamid-achik/codebridge/internal/memory"
	"github.com/abdul-hamid-achik/codebridge/internal/projects"
	"github.com/abdul-hamid-achik/codebridge/internal/runner"
	"github.com/abdul-hamid-achik/codebridge/internal/session"
	"github.com/abdul-hamid-achik/codebridge/internal/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const conv = "chat-1"

type fakeReplier struct {
	mu     sync.Mutex
	sent   []string
	typing int
}

func (f *fakeReplier) Send(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeReplier) SendTyping(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing++
	return nil
}

func (f *fakeReplier) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeReplier) last() string {
	msgs := f.messages()
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

type fakeAgent struct {
	mu      sync.Mutex
	reqs    []executor.Request
	result  executor.Result
	panics  bool
	started chan struct{}
	release chan struct{}
	aborts  int
}

func (f *fakeAgent) Run(_ context.Context, req executor.Request) executor.Result {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	res, panics, started, release := f.result, f.panics, f.started, f.release
	f.mu.Unlock()

	if panics {
		panic("agent exploded")
	}
	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return res
}

func (f *fakeAgent) Abort(string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborts++
	return true
}

func (f *fakeAgent) requests() []executor.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]executor.Request(nil), f.reqs...)
}

type failingStores struct{}

func (failingStores) Store(string) (*memory.Store, error) {
	return nil, errors.New("disk full")
}

type fixture struct {
	router   *Router
	replies  *fakeReplier
	agent    *fakeAgent
	run      *runner.Mock
	sessions *session.Store
	memory   *memory.Manager
	root     string
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "demo")
	require.NoError(t, os.MkdirAll(dir, 0755))

	log := logging.Nop()
	reg, err := projects.OpenRegistry(filepath.Join(root, "projects.yaml"), log)
	require.NoError(t, err)
	_, err = reg.Add("demo", dir, "demo project")
	require.NoError(t, err)

	mock := runner.NewMock()
	git := gitops.New(gitops.Config{CommitPrefix: "[bot]", ProtectedBranches: []string{"main", "production"}}, mock)
	mgr := projects.NewManager(reg, projects.Config{WorkspaceRoot: filepath.Join(root, "ws")}, git, projects.NewGitHub(mock), log)

	mem := memory.NewManager(log)
	t.Cleanup(func() { _ = mem.Close() })

	f := &fixture{
		replies:  &fakeReplier{},
		agent:    &fakeAgent{},
		run:      mock,
		sessions: session.NewStore("claude-sonnet-4-5-20250929"),
		memory:   mem,
		root:     root,
		dir:      dir,
	}
	f.router = New(Deps{
		Sessions: f.sessions,
		Agent:    f.agent,
		Projects: mgr,
		Memory:   mem,
		Injector: memory.NewInjector(0, 0, 0, log),
		Git:      git,
		Files:    files.NewViewer(files.Config{}),
		Replier:  f.replies,
		Log:      log,
	})
	return f
}

func (f *fixture) send(text string) string {
	f.router.Handle(context.Background(), transport.Message{
		Platform:       "test",
		UserID:         "42",
		ConversationID: conv,
		Text:           text,
	})
	return f.replies.last()
}

func TestHandle_TaskScenario(t *testing.T) {
	f := newFixture(t)
	store, err := f.memory.Store(f.dir)
	require.NoError(t, err)
	_, err = store.SaveEntry(context.Background(), memory.Entry{Project: "demo", Task: "init repo", Summary: "created go.mod"})
	require.NoError(t, err)

	f.send("/cd demo")
	f.agent.result = executor.Result{
		Success:      true,
		AgentSession: "abc123",
		Output:       "Added README.md",
		Summary:      "Added README.md",
		Formatted:    "Done | 1.0s\n\nAdded README.md",
		CostUSD:      0.01,
	}

	reply := f.send("add a readme")
	assert.Equal(t, "Done | 1.0s\n\nAdded README.md", reply)
	assert.Contains(t, f.replies.messages(), "Executing... [demo]")
	assert.Equal(t, 1, f.replies.typing)

	reqs := f.agent.requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, memory.TaskMarker)
	assert.Contains(t, reqs[0].Prompt, "init repo")
	assert.True(t, strings.HasSuffix(reqs[0].Prompt, "add a readme"))
	assert.Equal(t, f.dir, reqs[0].Dir)
	assert.Empty(t, reqs[0].ResumeHandle)
	assert.False(t, reqs[0].Continue)
	assert.Equal(t, "claude-sonnet-4-5-20250929", reqs[0].Model)

	c := f.sessions.GetOrCreate(conv)
	assert.True(t, c.Continuation)
	assert.Equal(t, "abc123", c.AgentSession)
	assert.Equal(t, "Added README.md", f.router.LastOutput(conv))

	recent, err := store.Recent(context.Background(), "demo", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "add a readme", recent[1].Task)
	assert.Equal(t, "abc123", recent[1].AgentSession)
	assert.InDelta(t, 0.01, recent[1].CostUSD, 1e-9)

	// A continued session gets the raw text and the handle.
	f.send("now add tests")
	reqs = f.agent.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "now add tests", reqs[1].Prompt)
	assert.Equal(t, "abc123", reqs[1].ResumeHandle)
	assert.True(t, reqs[1].Continue)
}

func TestHandle_TaskWithoutProject(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, selectProjectPrompt, f.send("add a readme"))
	assert.Empty(t, f.agent.requests())
}

func TestHandle_EmptyOutput(t *testing.T) {
	f := newFixture(t)
	f.send("/cd demo")
	assert.Equal(t, noOutput, f.send("do nothing"))

	// An empty handle leaves the session fresh.
	assert.False(t, f.sessions.GetOrCreate(conv).Continuation)
}

func TestHandle_MemoryStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.router.memory = failingStores{}
	f.send("/cd demo")
	f.agent.result = executor.Result{Success: true, Formatted: "ok"}

	assert.Equal(t, "ok", f.send("add a readme"))
	assert.Equal(t, "add a readme", f.agent.requests()[0].Prompt)
}

func TestHandle_PanicIsRecovered(t *testing.T) {
	f := newFixture(t)
	f.send("/cd demo")
	f.agent.panics = true

	reply := f.send("add a readme")
	assert.Equal(t, "Error while handling the message: internal error", reply)

	c := f.sessions.GetOrCreate(conv)
	assert.False(t, c.Continuation)
	assert.Equal(t, "demo", c.Project)
}

func TestHandle_IgnoresBlankText(t *testing.T) {
	f := newFixture(t)
	f.send("   \n\t ")
	assert.Empty(t, f.replies.messages())
	assert.Equal(t, 0, f.sessions.Count())
}

func TestHandle_PushProtectedBranch(t *testing.T) {
	f := newFixture(t)
	f.send("/cd demo")

	reply := f.send("/push main")
	assert.Contains(t, reply, "'main' is a protected branch")
	assert.Equal(t, 0, f.run.CallCount())
}

func TestHandle_PushCurrentProtectedBranch(t *testing.T) {
	f := newFixture(t)
	f.run.On("git branch --show-current", "production\n", 0)
	f.send("/cd demo")

	assert.Contains(t, f.send("/push"), "'production' is a protected branch")
	assert.Equal(t, []string{"git branch --show-current"}, f.run.Lines())
}

func TestHandle_CatOutsideRoot(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "x"), []byte("secret"), 0644))
	f.send("/cd demo")

	reply := f.send("/cat ../x")
	assert.Contains(t, reply, "outside the project directory")
	assert.NotContains(t, reply, "secret")
}

func TestHandle_CatInsideRoot(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "main.go"), []byte("package main\n"), 0644))
	f.send("/cd demo")

	assert.Equal(t, "main.go (1 lines, showing 1-1)\n   1 | package main", f.send("/cat main.go"))
	assert.Contains(t, f.send("/cat"), "Usage: /cat")
}

func TestHandle_ProjectCommandsNeedProject(t *testing.T) {
	f := newFixture(t)
	for _, text := range []string{"/diff", "/commit", "/gs", "/tree", "/memory", "/search x"} {
		assert.Equal(t, selectProjectShort, f.send(text), text)
	}
	assert.Equal(t, 0, f.run.CallCount())
}

func TestHandle_GitPassthrough(t *testing.T) {
	f := newFixture(t)
	f.run.On("git status --short", " M main.go\n", 0)
	f.send("/cd demo")

	assert.Equal(t, "Git status:\n M main.go\n", f.send("/gs"))
	require.Len(t, f.run.Calls, 1)
	assert.Equal(t, f.dir, f.run.Calls[0].Dir)
}

func TestHandle_UnknownCommand(t *testing.T) {
	f := newFixture(t)

	reply := f.send("/comit")
	assert.Contains(t, reply, "Unknown command: /comit\nSend /help for the command list")
	assert.Contains(t, reply, "Did you mean /commit?")

	assert.Equal(t, "Unknown command: /zzz\nSend /help for the command list", f.send("/zzz"))
}

func TestHandle_CommandTokenNormalized(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, helpText, f.send("/HELP@codebridge_bot"))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text, token, arg string
	}{
		{"/help", "/help", ""},
		{"/Cat@bot  main.go   1-20 ", "/cat", "main.go   1-20"},
		{"/commit fix the   build", "/commit", "fix the   build"},
		{"/model\topus", "/model", "opus"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			token, arg := parseCommand(tt.text)
			assert.Equal(t, tt.token, token)
			assert.Equal(t, tt.arg, arg)
		})
	}
}

func TestSplitArgs(t *testing.T) {
	assert.Equal(t, []string{"web", "/srv/web", "the  site"}, splitArgs(" web /srv/web the  site", 3))
	assert.Equal(t, []string{"web"}, splitArgs("web", 3))
	assert.Nil(t, splitArgs("   ", 2))
}

func TestCommandTableComplete(t *testing.T) {
	for name, cmd := range commandTable {
		assert.NotNil(t, cmd.handler, name)
		assert.Contains(t, helpText, name+" ", "help text is missing %s", name)
		switch cmd.group {
		case groupGit, groupFiles, groupMemory:
			assert.True(t, cmd.needsProject, "%s should need a project", name)
		}
	}
	assert.Len(t, Commands(), len(commandTable))
}

func TestHandle_ProjectLifecycle(t *testing.T) {
	f := newFixture(t)
	other := filepath.Join(f.root, "other")
	require.NoError(t, os.MkdirAll(other, 0755))

	assert.Contains(t, f.send("/addproject web "+other+" the web site"), "Registered project: web")
	assert.Contains(t, f.send("/addproject web "+other), "project 'web' already exists")
	assert.Contains(t, f.send("/addproject web"), "Usage: /addproject")

	f.send("/cd web")
	list := f.send("/projects")
	assert.Contains(t, list, "web (the web site)")
	assert.Contains(t, list, "<-- current")
	assert.Contains(t, list, "Current project: web")

	miss := f.send("/cd dmo")
	assert.Contains(t, miss, "Project 'dmo' does not exist")
	assert.Contains(t, miss, "Did you mean /cd demo?")

	assert.Contains(t, f.send("/rmproject web"), "unregistered (files kept)")
	_, err := os.Stat(other)
	assert.NoError(t, err)
	assert.Contains(t, f.send("/rmproject web"), "does not exist")
}

func TestHandle_NewProject(t *testing.T) {
	f := newFixture(t)

	reply := f.send("/newproject api the api server")
	assert.Contains(t, reply, "Created project: api")
	assert.Contains(t, reply, "Active project: api")

	c := f.sessions.GetOrCreate(conv)
	assert.Equal(t, "api", c.Project)
	assert.Equal(t, filepath.Join(f.root, "ws", "api"), c.ProjectPath)
}

func TestHandle_CloneFailure(t *testing.T) {
	f := newFixture(t)
	f.run.On("gh auth status", "", 1)

	reply := f.send("/clone octocat/hello")
	assert.Contains(t, f.replies.messages(), "Cloning octocat/hello...")
	assert.Contains(t, reply, "gh is not logged in")
	assert.False(t, f.sessions.GetOrCreate(conv).HasProject())
}

func TestHandle_SessionCommands(t *testing.T) {
	f := newFixture(t)
	f.send("/cd demo")
	f.sessions.RecordAgentSession(conv, "0123456789abcdefXYZ")

	status := f.send("/status")
	assert.Contains(t, status, "Project: demo")
	assert.Contains(t, status, "Session: continuing")
	assert.Contains(t, status, "Session id: 0123456789abcdef...")
	assert.Contains(t, status, "Tasks: 0")

	assert.Equal(t, "Started a new session (project unchanged)", f.send("/new"))
	c := f.sessions.GetOrCreate(conv)
	assert.False(t, c.Continuation)
	assert.Equal(t, "demo", c.Project)

	// Switching to the same project still resets the session.
	f.sessions.RecordAgentSession(conv, "h1")
	f.send("/cd demo")
	assert.Empty(t, f.sessions.GetOrCreate(conv).AgentSession)
}

func TestHandle_Model(t *testing.T) {
	f := newFixture(t)

	listing := f.send("/model")
	assert.Contains(t, listing, "Current model: claude-sonnet-4-5-20250929")
	assert.Contains(t, listing, "/model sonnet - claude-sonnet-4-5-20250929 (recommended)")
	assert.Contains(t, listing, "/model opus - claude-opus-4-6 (strongest)")
	assert.Contains(t, listing, "/model haiku - claude-haiku-4-5-20251001 (fastest)")
	assert.Equal(t, "Model switched to: claude-opus-4-6", f.send("/model OPUS"))
	assert.Equal(t, "Model switched to: my-custom-model", f.send("/model my-custom-model"))

	f.send("/cd demo")
	f.send("go")
	assert.Equal(t, "my-custom-model", f.agent.requests()[0].Model)
}

func TestResolveModel(t *testing.T) {
	assert.Equal(t, "claude-sonnet-4-5-20250929", ResolveModel("sonnet"))
	assert.Equal(t, "claude-haiku-4-5-20251001", ResolveModel("Haiku"))
	assert.Equal(t, "claude-opus-4-1", ResolveModel("claude-opus-4-1"))
}

func TestBypasses(t *testing.T) {
	assert.True(t, Bypasses(transport.Message{Text: "/abort"}))
	assert.True(t, Bypasses(transport.Message{Text: "  /ABORT@codebridge_bot "}))
	assert.False(t, Bypasses(transport.Message{Text: "abort"}))
	assert.False(t, Bypasses(transport.Message{Text: "/aborted"}))
	assert.False(t, Bypasses(transport.Message{Text: "/status"}))
}

func TestModelAliases(t *testing.T) {
	aliases := ModelAliases()
	require.Len(t, aliases, 3)
	assert.Equal(t, anthropic.ModelClaudeSonnet4_5_20250929, aliases[0].ID)
	assert.Equal(t, anthropic.ModelClaudeHaiku4_5_20251001, aliases[2].ID)
	assert.Equal(t, []string{"haiku", "opus", "sonnet"}, ModelAliasNames())

	aliases[0].ID = "changed"
	assert.Equal(t, string(anthropic.ModelClaudeSonnet4_5_20250929), ResolveModel("sonnet"))
}

func TestHandle_Detail(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "No output to show", f.send("/detail"))

	f.send("/cd demo")
	f.agent.result = executor.Result{Output: strings.Repeat("a", 4000) + strings.Repeat("b", 1000) + strings.Repeat("c", 5000), Formatted: "ok"}
	f.send("big task")

	before := len(f.replies.messages())
	f.send("/detail")
	msgs := f.replies.messages()[before:]
	require.Len(t, msgs, 2)
	assert.Equal(t, strings.Repeat("a", 4000), msgs[0])
	assert.Equal(t, strings.Repeat("b", 1000)+strings.Repeat("c", 3000), msgs[1])
}

func TestHandle_DetailShortOutput(t *testing.T) {
	f := newFixture(t)
	f.send("/cd demo")
	f.agent.result = executor.Result{Output: "short", Formatted: "ok"}
	f.send("task")

	before := len(f.replies.messages())
	f.send("/detail")
	assert.Equal(t, []string{"short"}, f.replies.messages()[before:])
}

func TestHandle_MemoryCommands(t *testing.T) {
	f := newFixture(t)
	f.send("/cd demo")
	assert.Contains(t, f.send("/memory"), "No memory yet")
	assert.Equal(t, "Usage: /search <query>", f.send("/search"))

	f.agent.result = executor.Result{Summary: "wrote the readme", Formatted: "ok", CostUSD: 0.5}
	f.send("add a readme")

	assert.Contains(t, f.send("/memory"), "add a readme\n  -> wrote the readme")
	assert.Contains(t, f.send("/memory stats"), "Entries: 1\n  Total cost: $0.5000")
	assert.Contains(t, f.send("/search readme"), "Results for 'readme'")
	assert.Equal(t, "Nothing found for 'kubernetes'", f.send("/search kubernetes"))
}

func TestHandle_AbortBypassesLock(t *testing.T) {
	f := newFixture(t)
	unlock := f.sessions.Lock(conv)
	defer unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.send("/abort")
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("/abort blocked on the conversation lock")
	}
	assert.Equal(t, "Task aborted", f.replies.last())
	assert.Equal(t, 1, f.agent.aborts)
}

func TestHandle_SerializesConversation(t *testing.T) {
	f := newFixture(t)
	f.send("/cd demo")
	f.agent.started = make(chan struct{}, 1)
	f.agent.release = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.send("long task")
	}()
	<-f.agent.started

	second := make(chan struct{})
	go func() {
		defer close(second)
		f.send("/new")
	}()

	select {
	case <-second:
		t.Fatal("second message ran while the first held the conversation")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.agent.release)
	<-second
	wg.Wait()
}
