// Package runner provides a testable command execution abstraction for the
// short git and gh subprocesses.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	osexec "os/exec"
	"strings"
	"sync"
)

// Result is the outcome of a command that started.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// OK reports a zero exit code.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Output returns trimmed stdout, or trimmed stderr when stdout is empty.
func (r Result) Output() string {
	if out := strings.TrimSpace(r.Stdout); out != "" {
		return out
	}
	return strings.TrimSpace(r.Stderr)
}

// Runner executes external commands. A non-zero exit is reported in
// Result.ExitCode; the error is reserved for commands that could not run.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (Result, error)
}

// OSRunner implements Runner using os/exec.
type OSRunner struct {
	// Env overrides environment variables (nil = inherit from parent)
	Env []string
}

// NewOSRunner creates a new OS-based command runner.
func NewOSRunner() *OSRunner {
	return &OSRunner{}
}

// Run executes name in dir and captures stdout and stderr separately.
func (r *OSRunner) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	cmd := osexec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if r.Env != nil {
		cmd.Env = r.Env
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *osexec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		res.ExitCode = -1
		return res, err
	}
}

// IsNotFound reports whether err means the executable does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, osexec.ErrNotFound) || errors.Is(err, os.ErrNotExist)
}

// LookPath reports where name resolves on PATH.
func LookPath(name string) (string, bool) {
	p, err := osexec.LookPath(name)
	return p, err == nil
}

// Mock implements Runner for testing.
type Mock struct {
	mu sync.Mutex

	// Calls records all command invocations
	Calls []Call

	// Responses maps "name arg0 arg1 ..." to a response. The longest key
	// that prefixes the invoked command line wins.
	Responses map[string]MockResponse
}

// Call records a single command invocation.
type Call struct {
	Dir  string
	Name string
	Args []string
}

// Line returns the call as "name arg0 arg1 ...".
func (c Call) Line() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// MockResponse defines the response for a mocked command.
type MockResponse struct {
	Result Result
	Err    error
}

// NewMock creates a mock whose unmatched commands succeed with no output.
func NewMock() *Mock {
	return &Mock{Responses: make(map[string]MockResponse)}
}

// On sets the response for a command line prefix.
func (m *Mock) On(line string, stdout string, exitCode int) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[line] = MockResponse{Result: Result{Stdout: stdout, ExitCode: exitCode}}
	return m
}

// OnResponse sets a full response for a command line prefix.
func (m *Mock) OnResponse(line string, resp MockResponse) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[line] = resp
	return m
}

// Run records the call and returns the configured response.
func (m *Mock) Run(_ context.Context, dir, name string, args ...string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := Call{Dir: dir, Name: name, Args: append([]string(nil), args...)}
	m.Calls = append(m.Calls, call)

	line := call.Line()
	best, found := "", false
	for key := range m.Responses {
		if (line == key || strings.HasPrefix(line, key+" ")) && len(key) >= len(best) {
			best, found = key, true
		}
	}
	if !found {
		return Result{}, nil
	}
	resp := m.Responses[best]
	return resp.Result, resp.Err
}

// CallCount returns how many commands ran.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Lines returns every recorded call as a command line.
func (m *Mock) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := make([]string, len(m.Calls))
	for i, c := range m.Calls {
		lines[i] = c.Line()
	}
	return lines
}
