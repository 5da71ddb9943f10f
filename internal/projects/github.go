package projects

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/codebridge/internal/output"
	"github.com/abdul-hamid-achik/codebridge/internal/runner"
)

const (
	DefaultRepoLimit = 20
	MaxRepoLimit     = 50
)

// GitHub drives the gh CLI.
type GitHub struct {
	run runner.Runner
}

// NewGitHub creates a gh wrapper.
func NewGitHub(r runner.Runner) *GitHub {
	return &GitHub{run: r}
}

// authProblem returns a user-facing reason when gh is unusable, or "".
func (g *GitHub) authProblem(ctx context.Context) string {
	res, err := g.run.Run(ctx, "", "gh", "auth", "status")
	if err != nil {
		if runner.IsNotFound(err) {
			return "gh CLI is not installed (https://cli.github.com/)"
		}
		return "gh could not run: " + err.Error()
	}
	if !res.OK() {
		return "gh is not logged in, run: gh auth login"
	}
	return ""
}

// CreateRepo creates a GitHub repository from a local directory. Failures
// are reported as a note, never an error.
func (g *GitHub) CreateRepo(ctx context.Context, name, description, dir string, private bool) string {
	if problem := g.authProblem(ctx); problem != "" {
		return "Skipped GitHub repository: " + problem
	}

	visibility := "--public"
	if private {
		visibility = "--private"
	}
	args := []string{"repo", "create", name, visibility, "--source", dir}
	if description != "" {
		args = append(args, "--description", description)
	}

	res, err := g.run.Run(ctx, "", "gh", args...)
	if err != nil {
		return "GitHub repository creation failed: " + err.Error()
	}
	if !res.OK() {
		if strings.Contains(res.Stderr, "already exists") {
			return fmt.Sprintf("GitHub repository %s already exists, skipped", name)
		}
		return "GitHub repository creation failed: " + strings.TrimSpace(res.Stderr)
	}
	return "GitHub repository created: " + strings.TrimSpace(res.Stdout)
}

// Clone clones repo (owner/name or URL) into target.
func (g *GitHub) Clone(ctx context.Context, repo, target string) error {
	if problem := g.authProblem(ctx); problem != "" {
		return fmt.Errorf("%s", problem)
	}
	res, err := g.run.Run(ctx, "", "gh", "repo", "clone", repo, target)
	if err != nil {
		return fmt.Errorf("clone failed: %w", err)
	}
	if !res.OK() {
		return fmt.Errorf("clone failed: %s", strings.TrimSpace(res.Stderr))
	}
	return nil
}

// ClampRepoLimit applies the /repos default and maximum.
func ClampRepoLimit(n int) int {
	if n <= 0 {
		return DefaultRepoLimit
	}
	return min(n, MaxRepoLimit)
}

// ListRepos renders the user's repositories.
func (g *GitHub) ListRepos(ctx context.Context, limit int) (string, error) {
	limit = ClampRepoLimit(limit)
	res, err := g.run.Run(ctx, "", "gh", "repo", "list",
		"--limit", fmt.Sprint(limit),
		"--json", "name,description,isPrivate,updatedAt,stargazerCount,primaryLanguage",
	)
	if err != nil {
		if runner.IsNotFound(err) {
			return "", fmt.Errorf("gh CLI is not installed")
		}
		return "", err
	}
	if !res.OK() {
		return "", fmt.Errorf("listing repositories failed: %s", strings.TrimSpace(res.Stderr))
	}

	repos := gjson.Parse(res.Stdout).Array()
	if len(repos) == 0 {
		return "No repositories found on GitHub", nil
	}

	lines := []string{fmt.Sprintf("GitHub repositories (%d):\n", len(repos))}
	for _, r := range repos {
		flag := "public "
		if r.Get("isPrivate").Bool() {
			flag = "private"
		}
		line := fmt.Sprintf("  [%s] %s", flag, r.Get("name").String())
		if stars := r.Get("stargazerCount").Int(); stars > 0 {
			line += fmt.Sprintf(" *%d", stars)
		}
		if lang := r.Get("primaryLanguage.name").String(); lang != "" {
			line += " [" + lang + "]"
		}
		if desc := r.Get("description").String(); desc != "" {
			line += "\n    " + output.Truncate(desc, 60)
		}
		lines = append(lines, line)
	}
	lines = append(lines, "\nClone one with /clone <repo>")
	return strings.Join(lines, "\n"), nil
}
