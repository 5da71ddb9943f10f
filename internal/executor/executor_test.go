package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/abdul-hamid-achik/codebridge/internal/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAgent writes an executable shell script standing in for the agent CLI.
func fakeAgent(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-claude")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func newExecutor(cfg Config) *Executor {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5-20250929"
	}
	return New(cfg, logging.Nop())
}

func TestArgs(t *testing.T) {
	e := newExecutor(Config{MaxTurns: 7, AllowedTools: []string{"Read", "Edit"}})

	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{
			name: "fresh",
			req:  Request{Prompt: "hi"},
			want: []string{"-p", "hi", "--output-format", "json", "--model", "claude-sonnet-4-5-20250929", "--max-turns", "7",
				"--allowedTools", "Read", "--allowedTools", "Edit"},
		},
		{
			name: "resume wins over continue",
			req:  Request{Prompt: "hi", ResumeHandle: "abc", Continue: true, Model: "claude-opus-4-6"},
			want: []string{"-p", "hi", "--output-format", "json", "--model", "claude-opus-4-6", "--max-turns", "7",
				"--resume", "abc", "--allowedTools", "Read", "--allowedTools", "Edit"},
		},
		{
			name: "continue",
			req:  Request{Prompt: "hi", Continue: true},
			want: []string{"-p", "hi", "--output-format", "json", "--model", "claude-sonnet-4-5-20250929", "--max-turns", "7",
				"--continue", "--allowedTools", "Read", "--allowedTools", "Edit"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Args(tt.req))
		})
	}
}

func TestEnv_Proxy(t *testing.T) {
	e := newExecutor(Config{ProxyURL: "http://127.0.0.1:7890"})
	env := e.Env()
	for _, k := range []string{"HTTPS_PROXY", "HTTP_PROXY", "https_proxy", "http_proxy"} {
		assert.Contains(t, env, k+"=http://127.0.0.1:7890")
	}

	plain := newExecutor(Config{}).Env()
	assert.Equal(t, len(os.Environ()), len(plain))
}

func TestRun_StructuredOutput(t *testing.T) {
	script := fakeAgent(t, `printf '%s\n' '{"result":"Created README.md\n\nAdded a title.","session_id":"abc123","total_cost_usd":0.0421,"duration_ms":12300,"is_error":false}'`)
	e := newExecutor(Config{Command: script})

	res := e.Run(context.Background(), Request{ConversationID: "c1", Prompt: "add a readme", Dir: t.TempDir()})

	assert.True(t, res.Success)
	assert.Equal(t, "abc123", res.AgentSession)
	assert.Equal(t, "Created README.md\n\nAdded a title.", res.Output)
	assert.Equal(t, "Created README.md Added a title.", res.Summary)
	assert.Equal(t, "Done | 12.3s | $0.0421\n\nCreated README.md\n\nAdded a title.", res.Formatted)
	assert.InDelta(t, 0.0421, res.CostUSD, 1e-9)
	assert.Equal(t, 12300*time.Millisecond, res.Duration)
	assert.Empty(t, res.Error)
	assert.False(t, e.Running("c1"))
}

func TestRun_StructuredError(t *testing.T) {
	script := fakeAgent(t, `printf '%s\n' '{"result":"max turns reached","session_id":"s9","cost_usd":0.5,"is_error":true}'`)
	res := newExecutor(Config{Command: script}).Run(context.Background(), Request{Prompt: "x"})

	assert.False(t, res.Success)
	assert.Equal(t, "max turns reached", res.Error)
	assert.Equal(t, "s9", res.AgentSession)
	assert.True(t, strings.HasPrefix(res.Formatted, "Error | $0.5000"))
}

func TestRun_PassesArgsAndProxy(t *testing.T) {
	dir := t.TempDir()
	script := fakeAgent(t, `echo "$HTTPS_PROXY $*"; pwd`)
	e := newExecutor(Config{Command: script, ProxyURL: "http://proxy:1"})

	res := e.Run(context.Background(), Request{Prompt: "go", Dir: dir, ResumeHandle: "h1"})

	require.True(t, res.Success)
	assert.Contains(t, res.Output, "http://proxy:1 -p go --output-format json")
	assert.Contains(t, res.Output, "--resume h1")
	assert.Contains(t, res.Output, dir)
	assert.Empty(t, res.AgentSession)
}

func TestRun_PlainFailure(t *testing.T) {
	script := fakeAgent(t, `echo "boom" >&2; exit 2`)
	res := newExecutor(Config{Command: script}).Run(context.Background(), Request{Prompt: "x", ResumeHandle: "keep"})

	assert.False(t, res.Success)
	assert.Equal(t, "boom", res.Output)
	assert.Equal(t, "Error:\nboom", res.Formatted)
	assert.Equal(t, "boom", res.Error)
	assert.Empty(t, res.AgentSession)
}

func TestRun_PlainTruncated(t *testing.T) {
	script := fakeAgent(t, `i=0; while [ $i -lt 500 ]; do printf 'abcdefghij'; i=$((i+1)); done`)
	res := newExecutor(Config{Command: script}).Run(context.Background(), Request{Prompt: "x"})

	require.True(t, res.Success)
	assert.Len(t, res.Output, 5000)
	assert.Len(t, res.Formatted, 3500)
	assert.Len(t, res.Summary, 200)
}

func TestRun_CommandNotFound(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	res := newExecutor(Config{Command: missing}).Run(context.Background(), Request{Prompt: "x"})

	assert.False(t, res.Success)
	assert.Equal(t, ErrCodeCommandNotFound, res.Error)
	assert.Equal(t, "claude command not found", res.Summary)
	assert.Contains(t, res.Formatted, "npm install -g @anthropic-ai/claude-code")
}

func TestRun_MissingDir(t *testing.T) {
	script := fakeAgent(t, `echo ok`)
	res := newExecutor(Config{Command: script}).Run(context.Background(), Request{Prompt: "x", Dir: filepath.Join(t.TempDir(), "gone")})

	assert.False(t, res.Success)
	assert.NotEqual(t, ErrCodeCommandNotFound, res.Error)
	assert.True(t, strings.HasPrefix(res.Summary, "execution failed: "))
}

func TestRun_Timeout(t *testing.T) {
	script := fakeAgent(t, `sleep 5`)
	e := newExecutor(Config{Command: script, Timeout: 200 * time.Millisecond, GracePeriod: time.Second})

	start := time.Now()
	res := e.Run(context.Background(), Request{Prompt: "x", ResumeHandle: "prev"})

	assert.Less(t, time.Since(start), 3*time.Second)
	assert.False(t, res.Success)
	assert.Equal(t, ErrCodeTimeout, res.Error)
	assert.Equal(t, "prev", res.AgentSession)
	assert.Empty(t, res.Output)
	assert.Contains(t, res.Formatted, "timed out")
	assert.Equal(t, 1, e.log.Metrics().Snapshot().Timeouts)
}

func TestRun_TimeoutKillsAfterGrace(t *testing.T) {
	script := fakeAgent(t, `trap '' TERM; sleep 5`)
	e := newExecutor(Config{Command: script, Timeout: 100 * time.Millisecond, GracePeriod: 200 * time.Millisecond})

	start := time.Now()
	res := e.Run(context.Background(), Request{Prompt: "x"})

	assert.Equal(t, ErrCodeTimeout, res.Error)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestAbort(t *testing.T) {
	script := fakeAgent(t, `sleep 5`)
	e := newExecutor(Config{Command: script})

	assert.False(t, e.Abort("c1"))

	done := make(chan Result, 1)
	go func() {
		done <- e.Run(context.Background(), Request{ConversationID: "c1", Prompt: "x"})
	}()

	require.Eventually(t, func() bool { return e.Running("c1") }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, e.Running("c2"))
	assert.True(t, e.Abort("c1"))

	select {
	case res := <-done:
		assert.False(t, res.Success)
		assert.Equal(t, ErrCodeAborted, res.Error)
	case <-time.After(3 * time.Second):
		t.Fatal("run did not stop after abort")
	}
	assert.False(t, e.Running("c1"))
}

func TestRun_ContextCancel(t *testing.T) {
	script := fakeAgent(t, `sleep 5`)
	e := newExecutor(Config{Command: script})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res := e.Run(ctx, Request{ConversationID: "c1", Prompt: "x"})
	assert.Equal(t, ErrCodeAborted, res.Error)
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"joins lines", "  one \n\n two\nthree  ", "one two three"},
		{"caps at 200", strings.Repeat("x", 300), strings.Repeat("x", 200)},
		{"stops after limit", strings.Repeat("a", 150) + "\n" + strings.Repeat("b", 100) + "\nc", strings.Repeat("a", 150) + " " + strings.Repeat("b", 49)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.in))
		})
	}
}
