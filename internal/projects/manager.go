package projects

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	cberr "github.com/abdul-hamid-achik/codebridge/internal/errors"
	"github.com/abdul-hamid-achik/codebridge/internal/logging"
)

// GitInitializer initializes a repository in a new project directory.
type GitInitializer interface {
	Init(ctx context.Context, dir string) error
}

// Config controls project creation.
type Config struct {
	WorkspaceRoot    string
	InitGitOnCreate  bool
	CreateGitHubRepo bool
	GitHubPrivate    bool
}

// Manager creates, clones and registers projects.
type Manager struct {
	*Registry

	cfg Config
	git GitInitializer
	gh  *GitHub
	log *logging.Logger
}

// NewManager wires the registry with git and gh.
func NewManager(reg *Registry, cfg Config, git GitInitializer, gh *GitHub, log *logging.Logger) *Manager {
	return &Manager{Registry: reg, cfg: cfg, git: git, gh: gh, log: log.WithPrefix("projects")}
}

// Create makes <workspace_root>/<name>, registers it and optionally runs
// git init and creates a GitHub repository. The returned text lists the
// steps taken.
func (m *Manager) Create(ctx context.Context, name, description string) (Project, string, error) {
	path, err := m.projectDir(name)
	if err != nil {
		return Project{}, "", err
	}
	if m.Has(name) {
		return Project{}, "", cberr.ProjectExists(name)
	}
	if _, err := os.Stat(path); err == nil {
		return Project{}, "", cberr.DirectoryExists(name, path)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return Project{}, "", fmt.Errorf("create project dir: %w", err)
	}

	p := Project{Name: name, Path: path, Description: description, CreatedAt: time.Now()}
	if err := m.put(p); err != nil {
		return Project{}, "", err
	}

	lines := []string{"Created project: " + name, "Path: " + path}

	if m.cfg.InitGitOnCreate {
		if _, err := os.Stat(filepath.Join(path, ".git")); os.IsNotExist(err) {
			if err := m.git.Init(ctx, path); err != nil {
				m.log.Warn("git init failed", logging.Project(name), logging.Err(err))
				lines = append(lines, "git init failed: "+cberr.GetUserMessage(err))
			} else {
				lines = append(lines, "git init done")
			}
		}
	}

	if m.cfg.CreateGitHubRepo {
		lines = append(lines, m.gh.CreateRepo(ctx, name, description, path, m.cfg.GitHubPrivate))
	}

	return p, strings.Join(lines, "\n"), nil
}

// projectDir maps a project name to its absolute directory under the
// workspace root. The name must be a single path component.
func (m *Manager) projectDir(name string) (string, error) {
	if !ValidName(name) {
		return "", cberr.InvalidProjectName(name)
	}
	root, err := filepath.Abs(m.cfg.WorkspaceRoot)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	return filepath.Join(root, name), nil
}

// ValidName reports whether name can be used as a directory directly
// under the workspace root.
func ValidName(name string) bool {
	if name == "" || name == "." || strings.Contains(name, "..") {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

// RepoName infers a project name from owner/repo or a clone URL.
func RepoName(repo string) string {
	repo = strings.TrimRight(repo, "/")
	if i := strings.LastIndexAny(repo, "/:"); i >= 0 {
		repo = repo[i+1:]
	}
	return strings.TrimSuffix(repo, ".git")
}

// Clone clones repo into the workspace and registers it. An empty name is
// inferred from the repository.
func (m *Manager) Clone(ctx context.Context, repo, name string) (Project, error) {
	if name == "" {
		name = RepoName(repo)
	}
	target, err := m.projectDir(name)
	if err != nil {
		return Project{}, err
	}
	if m.Has(name) {
		return Project{}, cberr.ProjectExists(name)
	}
	if _, err := os.Stat(target); err == nil {
		return Project{}, cberr.DirectoryExists(name, target)
	}

	if err := m.gh.Clone(ctx, repo, target); err != nil {
		return Project{}, err
	}

	p := Project{Name: name, Path: target, Description: "cloned from " + repo, CreatedAt: time.Now()}
	if err := m.put(p); err != nil {
		return Project{}, err
	}
	m.log.Info("project cloned", logging.Project(name), logging.F("repo", repo))
	return p, nil
}

// ListRemote lists the user's GitHub repositories.
func (m *Manager) ListRemote(ctx context.Context, limit int) (string, error) {
	return m.gh.ListRepos(ctx, limit)
}
