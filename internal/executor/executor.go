// Package executor runs the coding agent CLI as a subprocess and interprets
// its output.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	cberr "github.com/abdul-hamid-achik/codebridge/internal/errors"
	"github.com/abdul-hamid-achik/codebridge/internal/logging"
	"github.com/abdul-hamid-achik/codebridge/internal/output"
)

// Error codes carried in Result.Error for runs that did not complete.
const (
	ErrCodeTimeout         = "timeout"
	ErrCodeAborted         = "aborted"
	ErrCodeCommandNotFound = "command_not_found"
)

const (
	summaryLength  = 200
	fallbackLength = 3500
)

// Config controls agent invocation.
type Config struct {
	Command        string
	Model          string
	MaxTurns       int
	Timeout        time.Duration
	GracePeriod    time.Duration
	AllowedTools   []string
	ProxyURL       string
	CompressLength int
}

// Request is one agent run.
type Request struct {
	ConversationID string
	Prompt         string
	Dir            string
	// ResumeHandle takes precedence over Continue.
	ResumeHandle string
	Continue     bool
	// Model overrides Config.Model when set.
	Model string
}

// Result is the interpreted outcome of a run.
type Result struct {
	Success      bool
	AgentSession string
	Output       string
	Summary      string
	Formatted    string
	FilesChanged []string
	CostUSD      float64
	Duration     time.Duration
	Error        string
}

type run struct {
	cmd     *exec.Cmd
	aborted atomic.Bool
}

// Executor launches agent runs and tracks the ones in flight per
// conversation.
type Executor struct {
	cfg Config
	log *logging.Logger

	mu       sync.Mutex
	inflight map[string]*run
}

// New creates an executor. Zero config values take the defaults.
func New(cfg Config, log *logging.Logger) *Executor {
	if cfg.Command == "" {
		cfg.Command = "claude"
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 5 * time.Second
	}
	if cfg.CompressLength <= 0 {
		cfg.CompressLength = output.DefaultCompressLength
	}
	return &Executor{
		cfg:      cfg,
		log:      log.WithPrefix("executor"),
		inflight: make(map[string]*run),
	}
}

// Args builds the agent command line (without the command itself).
func (e *Executor) Args(req Request) []string {
	model := req.Model
	if model == "" {
		model = e.cfg.Model
	}
	args := []string{
		"-p", req.Prompt,
		"--output-format", "json",
		"--model", model,
		"--max-turns", strconv.Itoa(e.cfg.MaxTurns),
	}
	if req.ResumeHandle != "" {
		args = append(args, "--resume", req.ResumeHandle)
	} else if req.Continue {
		args = append(args, "--continue")
	}
	for _, tool := range e.cfg.AllowedTools {
		args = append(args, "--allowedTools", tool)
	}
	return args
}

// Env returns the child environment, with proxy variables added when a
// proxy is configured.
func (e *Executor) Env() []string {
	env := os.Environ()
	if e.cfg.ProxyURL == "" {
		return env
	}
	for _, k := range []string{"HTTPS_PROXY", "HTTP_PROXY", "https_proxy", "http_proxy"} {
		env = append(env, k+"="+e.cfg.ProxyURL)
	}
	return env
}

// Run executes one agent run. Failures are reported in the Result, never
// as an error.
func (e *Executor) Run(ctx context.Context, req Request) Result {
	log := e.log.With(logging.RequestID(e.log.NewRequestID()), logging.ConversationID(req.ConversationID))
	start := time.Now()

	if req.Dir != "" {
		if info, err := os.Stat(req.Dir); err != nil || !info.IsDir() {
			return e.failure(log, req, fmt.Errorf("project directory %s is not accessible", req.Dir))
		}
	}

	cmd := exec.Command(e.cfg.Command, e.Args(req)...)
	cmd.Dir = req.Dir
	cmd.Env = e.Env()
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Info("running agent",
		logging.F("dir", req.Dir),
		logging.F("prompt", output.Truncate(req.Prompt, 80)),
		logging.F("resume", req.ResumeHandle != ""),
	)
	log.Event(logging.EventTaskStart)

	if err := cmd.Start(); err != nil {
		return e.startFailure(log, req, err)
	}

	r := &run{cmd: cmd}
	e.track(req.ConversationID, r)
	defer e.untrack(req.ConversationID, r)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(e.cfg.Timeout)
	defer timer.Stop()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-timer.C:
		e.stop(cmd, done)
		log.Warn("agent run timed out", logging.Duration(e.cfg.Timeout))
		log.Event(logging.EventTaskTimeout)
		e.log.Metrics().RecordTask(false, ErrCodeTimeout, 0, time.Since(start))
		return e.timeoutResult(req)
	case <-ctx.Done():
		r.aborted.Store(true)
		e.stop(cmd, done)
		waitErr = ctx.Err()
	}

	if r.aborted.Load() {
		log.Info("agent run aborted", logging.DurationSince(start))
		log.Event(logging.EventTaskAbort)
		e.log.Metrics().RecordTask(false, ErrCodeAborted, 0, time.Since(start))
		return Result{
			AgentSession: req.ResumeHandle,
			Summary:      "aborted",
			Formatted:    "Task aborted",
			Duration:     time.Since(start),
			Error:        ErrCodeAborted,
		}
	}

	exitCode := 0
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	} else if waitErr != nil {
		return e.failure(log, req, waitErr)
	}

	if stderr.Len() > 0 {
		log.Debug("agent stderr", logging.F("stderr", output.Truncate(stderr.String(), 500)))
	}

	res := e.parse(stdout.String(), stderr.String(), exitCode)
	if res.Duration == 0 {
		res.Duration = time.Since(start)
	}

	log.Info("agent run finished",
		logging.F("success", res.Success),
		logging.F("exit_code", exitCode),
		logging.Duration(res.Duration),
		logging.Cost(res.CostUSD),
	)
	log.Event(logging.EventTaskComplete)
	e.log.Metrics().RecordTask(res.Success, res.Error, res.CostUSD, res.Duration)
	return res
}

// Abort terminates the run in flight for conversationID. It reports
// whether there was one.
func (e *Executor) Abort(conversationID string) bool {
	e.mu.Lock()
	r, ok := e.inflight[conversationID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	r.aborted.Store(true)
	if err := terminate(r.cmd); err != nil {
		e.log.Warn("abort signal failed", logging.ConversationID(conversationID), logging.Err(err))
	}
	return true
}

// Running reports whether a run is in flight for conversationID.
func (e *Executor) Running(conversationID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inflight[conversationID]
	return ok
}

func (e *Executor) track(id string, r *run) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight[id] = r
}

func (e *Executor) untrack(id string, r *run) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[id] == r {
		delete(e.inflight, id)
	}
}

// stop sends SIGTERM to the process group and SIGKILL after the grace
// period. It returns once the process has been reaped.
func (e *Executor) stop(cmd *exec.Cmd, done <-chan error) {
	if err := terminate(cmd); err != nil {
		e.log.Debug("terminate failed", logging.Err(err))
	}
	grace := time.NewTimer(e.cfg.GracePeriod)
	defer grace.Stop()
	select {
	case <-done:
		return
	case <-grace.C:
	}
	if err := kill(cmd); err != nil {
		e.log.Debug("kill failed", logging.Err(err))
	}
	<-done
}

func (e *Executor) timeoutResult(req Request) Result {
	te := cberr.ExecutionTimeout(int(e.cfg.Timeout.Seconds()))
	return Result{
		AgentSession: req.ResumeHandle,
		Summary:      "execution timed out",
		Formatted:    te.Message,
		Duration:     e.cfg.Timeout,
		Error:        ErrCodeTimeout,
	}
}

func (e *Executor) startFailure(log *logging.Logger, req Request, err error) Result {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		nf := cberr.ExecutableNotFound("claude", err)
		log.Error("agent executable not found", logging.F("command", e.cfg.Command), logging.Err(err))
		e.log.Metrics().RecordTask(false, ErrCodeCommandNotFound, 0, 0)
		return Result{
			Summary:   "claude command not found",
			Formatted: nf.Message,
			Error:     ErrCodeCommandNotFound,
		}
	}
	return e.failure(log, req, err)
}

func (e *Executor) failure(log *logging.Logger, req Request, err error) Result {
	log.Error("agent run failed", logging.Err(err))
	e.log.Metrics().RecordTask(false, "exception", 0, 0)
	msg := err.Error()
	return Result{
		AgentSession: req.ResumeHandle,
		Summary:      "execution failed: " + output.Truncate(msg, 100),
		Formatted:    "execution failed: " + msg,
		Error:        msg,
	}
}

// parse interprets agent stdout. Structured JSON is preferred; anything else
// is passed through as plain text.
func (e *Executor) parse(stdout, stderr string, exitCode int) Result {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" || !gjson.Valid(trimmed) || !gjson.Parse(trimmed).IsObject() {
		return parsePlain(stdout, stderr, exitCode)
	}

	data := gjson.Parse(trimmed)
	text := data.Get("result").String()
	cost := data.Get("cost_usd").Float()
	if cost == 0 {
		cost = data.Get("total_cost_usd").Float()
	}
	duration := time.Duration(data.Get("duration_ms").Int()) * time.Millisecond
	isError := data.Get("is_error").Bool()

	res := Result{
		Success:      !isError,
		AgentSession: data.Get("session_id").String(),
		Output:       text,
		Summary:      Summarize(text),
		Formatted: output.Compress(text, output.CompressOptions{
			MaxLength: e.cfg.CompressLength,
			Cost:      cost,
			Duration:  duration,
			IsError:   isError,
		}),
		CostUSD:  cost,
		Duration: duration,
	}
	if isError {
		res.Error = output.Truncate(text, summaryLength)
	}
	return res
}

func parsePlain(stdout, stderr string, exitCode int) Result {
	text := strings.TrimSpace(stdout)
	if text == "" {
		text = strings.TrimSpace(stderr)
	}
	ok := exitCode == 0

	res := Result{
		Success:   ok,
		Output:    text,
		Summary:   output.Truncate(text, summaryLength),
		Formatted: output.Truncate(text, fallbackLength),
	}
	if !ok {
		res.Formatted = "Error:\n" + res.Formatted
		res.Error = output.Truncate(text, summaryLength)
		if res.Error == "" {
			res.Error = fmt.Sprintf("exit status %d", exitCode)
		}
	}
	return res
}

// Summarize joins the non-empty lines of text with single spaces, stopping
// once the result passes 200 characters, and caps it there.
func Summarize(text string) string {
	var parts []string
	length := 0
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if s := strings.TrimSpace(line); s != "" {
			parts = append(parts, s)
			if length > 0 {
				length++
			}
			length += len([]rune(s))
		}
		if length > summaryLength {
			break
		}
	}
	return output.Truncate(strings.Join(parts, " "), summaryLength)
}
