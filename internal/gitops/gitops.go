// Package gitops wraps the git commands exposed to chat users.
package gitops

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	cberr "github.com/abdul-hamid-achik/codebridge/internal/errors"
	"github.com/abdul-hamid-achik/codebridge/internal/output"
	"github.com/abdul-hamid-achik/codebridge/internal/runner"
)

const (
	maxDiffLength   = 3000
	defaultLogCount = 10
	maxLogCount     = 30
)

// Config is the commit identity and branch policy.
type Config struct {
	CommitPrefix      string
	ProtectedBranches []string
	UserName          string
	UserEmail         string
}

// Git runs git in a project directory.
type Git struct {
	cfg Config
	run runner.Runner
}

// New creates a Git wrapper.
func New(cfg Config, r runner.Runner) *Git {
	if cfg.CommitPrefix == "" {
		cfg.CommitPrefix = "[bot]"
	}
	if cfg.ProtectedBranches == nil {
		cfg.ProtectedBranches = []string{"main", "production"}
	}
	return &Git{cfg: cfg, run: r}
}

// IsProtected reports whether branch may not be pushed to directly.
func (g *Git) IsProtected(branch string) bool {
	return slices.Contains(g.cfg.ProtectedBranches, branch)
}

func (g *Git) git(ctx context.Context, dir string, args ...string) (runner.Result, error) {
	full := make([]string, 0, len(args)+4)
	if g.cfg.UserName != "" {
		full = append(full, "-c", "user.name="+g.cfg.UserName)
	}
	if g.cfg.UserEmail != "" {
		full = append(full, "-c", "user.email="+g.cfg.UserEmail)
	}
	full = append(full, args...)

	res, err := g.run.Run(ctx, dir, "git", full...)
	if err != nil {
		if runner.IsNotFound(err) {
			return res, cberr.ExecutableNotFound("git", err)
		}
		return res, cberr.CommandFailed("git "+args[0], err)
	}
	return res, nil
}

// Diff shows --stat followed by the full diff, truncated.
func (g *Git) Diff(ctx context.Context, dir, ref string) (string, error) {
	statArgs := []string{"diff", "--stat"}
	fullArgs := []string{"diff"}
	if ref != "" {
		statArgs = append(statArgs, ref)
		fullArgs = append(fullArgs, ref)
	}

	stat, err := g.git(ctx, dir, statArgs...)
	if err != nil {
		return "", err
	}
	full, err := g.git(ctx, dir, fullArgs...)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(stat.Stdout) == "" && strings.TrimSpace(full.Stdout) == "" {
		return "No uncommitted changes", nil
	}

	var b strings.Builder
	b.WriteString("Change summary:\n")
	b.WriteString(stat.Stdout)
	if diff := full.Stdout; diff != "" {
		if len([]rune(diff)) > maxDiffLength {
			diff = output.Truncate(diff, maxDiffLength) + "\n... diff too long, truncated"
		}
		b.WriteString("\n")
		b.WriteString(diff)
	}
	return b.String(), nil
}

// Commit stages everything and commits it. Without a message one is
// derived from the staged --stat summary.
func (g *Git) Commit(ctx context.Context, dir, message string) (string, error) {
	if _, err := g.git(ctx, dir, "add", "-A"); err != nil {
		return "", err
	}

	status, err := g.git(ctx, dir, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(status.Stdout) == "" {
		return "Nothing to commit", nil
	}

	if message == "" {
		stat, err := g.git(ctx, dir, "diff", "--cached", "--stat")
		if err != nil {
			return "", err
		}
		message = "Update"
		if s := strings.TrimSpace(stat.Stdout); s != "" {
			lines := strings.Split(s, "\n")
			message = "Update: " + strings.TrimSpace(lines[len(lines)-1])
		}
	}

	res, err := g.git(ctx, dir, "commit", "-m", g.cfg.CommitPrefix+" "+message)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "Commit failed:\n" + res.Stderr, nil
	}
	return "Committed\n" + res.Stdout, nil
}

// Push pushes branch (the current one when empty) to origin. Protected
// branches are refused before git is invoked.
func (g *Git) Push(ctx context.Context, dir, branch string) (string, error) {
	if branch != "" && g.IsProtected(branch) {
		return "", cberr.ProtectedBranch(branch)
	}
	if branch == "" {
		res, err := g.git(ctx, dir, "branch", "--show-current")
		if err != nil {
			return "", err
		}
		branch = strings.TrimSpace(res.Stdout)
	}
	if branch == "" {
		return "Could not determine the current branch", nil
	}
	if g.IsProtected(branch) {
		return "", cberr.ProtectedBranch(branch)
	}

	res, err := g.git(ctx, dir, "push", "-u", "origin", branch)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "Push failed:\n" + res.Stderr, nil
	}
	return "Pushed to origin/" + branch, nil
}

// Pull runs git pull.
func (g *Git) Pull(ctx context.Context, dir string) (string, error) {
	res, err := g.git(ctx, dir, "pull")
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "Pull failed:\n" + res.Stderr, nil
	}
	return "Pull complete\n" + res.Stdout, nil
}

// Branch lists all branches when name is empty, otherwise checks name out,
// creating it if it does not exist.
func (g *Git) Branch(ctx context.Context, dir, name string) (string, error) {
	if name == "" {
		res, err := g.git(ctx, dir, "branch", "-a")
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(res.Stdout) == "" {
			return "No branches yet", nil
		}
		return "Branches:\n" + res.Stdout, nil
	}

	res, err := g.git(ctx, dir, "checkout", name)
	if err != nil {
		return "", err
	}
	if res.OK() {
		return "Switched to branch: " + name, nil
	}

	res, err = g.git(ctx, dir, "checkout", "-b", name)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "Branch switch failed:\n" + res.Stderr, nil
	}
	return "Created and switched to new branch: " + name, nil
}

// ParseLogCount reads the /log argument: default 10, capped at 30.
func ParseLogCount(arg string) int {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n <= 0 {
		return defaultLogCount
	}
	return min(n, maxLogCount)
}

// Log shows the last commits as a graph.
func (g *Git) Log(ctx context.Context, dir, count string) (string, error) {
	n := ParseLogCount(count)
	res, err := g.git(ctx, dir, "log", fmt.Sprintf("-%d", n), "--oneline", "--graph", "--decorate")
	if err != nil {
		return "", err
	}
	if !res.OK() || strings.TrimSpace(res.Stdout) == "" {
		return "No commits yet", nil
	}
	return fmt.Sprintf("Last %d commits:\n%s", n, res.Stdout), nil
}

// Status shows git status --short.
func (g *Git) Status(ctx context.Context, dir string) (string, error) {
	res, err := g.git(ctx, dir, "status", "--short")
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "Could not read git status", nil
	}
	if strings.TrimSpace(res.Stdout) == "" {
		return "Working tree clean", nil
	}
	return "Git status:\n" + res.Stdout, nil
}

// Init creates a repository with main as the initial branch.
func (g *Git) Init(ctx context.Context, dir string) error {
	res, err := g.git(ctx, dir, "init", "-b", "main")
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("git init: %s", res.Output())
	}
	return nil
}
