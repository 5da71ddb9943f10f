package main

import (
	"errors"
	"time"

	"github.com/abdul-hamid-achik/codebridge/internal/config"
	"github.com/abdul-hamid-achik/codebridge/internal/executor"
	"github.com/abdul-hamid-achik/codebridge/internal/files"
	"github.com/abdul-hamid-achik/codebridge/internal/gitops"
	"github.com/abdul-hamid-achik/codebridge/internal/logging"
	"github.com/abdul-hamid-achik/codebridge/internal/memory"
	"github.com/abdul-hamid-achik/codebridge/internal/projects"
	"github.com/abdul-hamid-achik/codebridge/internal/router"
	"github.com/abdul-hamid-achik/codebridge/internal/runner"
	"github.com/abdul-hamid-achik/codebridge/internal/session"
	"github.com/abdul-hamid-achik/codebridge/internal/transport"
)

const registryDebounce = 500 * time.Millisecond

// app holds the components shared by serve and console.
type app struct {
	router  *router.Router
	watcher *projects.Watcher
	memory  *memory.Manager
	log     *logging.Logger
}

func newApp(cfg *config.Config, log *logging.Logger, replier transport.Replier) (*app, error) {
	reg, err := projects.OpenRegistry(cfg.Projects.File, log)
	if err != nil {
		return nil, err
	}

	run := runner.NewOSRunner()
	git := gitops.New(gitops.Config{
		CommitPrefix:      cfg.Git.CommitPrefix,
		ProtectedBranches: cfg.Git.ProtectedBranches,
		UserName:          cfg.Git.UserName,
		UserEmail:         cfg.Git.UserEmail,
	}, run)

	mgr := projects.NewManager(reg, projects.Config{
		WorkspaceRoot:    cfg.Projects.WorkspaceRoot,
		InitGitOnCreate:  cfg.Projects.InitGitOnCreate,
		CreateGitHubRepo: cfg.Projects.CreateGitHubRepo,
		GitHubPrivate:    cfg.Projects.GitHubPrivate,
	}, git, projects.NewGitHub(run), log)

	exec := executor.New(executor.Config{
		Command:        cfg.Claude.Command,
		Model:          cfg.Claude.Model,
		MaxTurns:       cfg.Claude.MaxTurns,
		Timeout:        cfg.Claude.Timeout,
		GracePeriod:    cfg.Claude.GracePeriod,
		AllowedTools:   cfg.Claude.AllowedTools,
		ProxyURL:       cfg.Proxy.URL,
		CompressLength: cfg.Output.CompressLength,
	}, log)

	mem := memory.NewManager(log)

	r := router.New(router.Deps{
		Sessions: session.NewStore(cfg.Claude.Model),
		Agent:    exec,
		Projects: mgr,
		Memory:   mem,
		Injector: memory.NewInjector(cfg.Memory.RecentEntries, cfg.Memory.MaxContextTokens, cfg.Memory.TokensPerChar, log),
		Git:      git,
		Files: files.NewViewer(files.Config{
			MaxCatLines:  cfg.Files.MaxCatLines,
			MaxFileSize:  cfg.MaxFileSize(),
			TreeMaxLines: cfg.Files.TreeMaxLines,
			TreeIgnore:   cfg.Files.TreeIgnore,
		}),
		Replier: replier,
		Log:     log,
	})

	log.Info("components ready",
		logging.F("projects", len(reg.List())),
		logging.F("registry", reg.File()),
		logging.F("model", cfg.Claude.Model),
	)

	return &app{
		router:  r,
		watcher: projects.NewWatcher(reg, registryDebounce, log),
		memory:  mem,
		log:     log,
	}, nil
}

// Close releases the memory stores and logs the task totals.
func (a *app) Close() error {
	m := a.log.Metrics().Snapshot()
	a.log.Info("shutting down",
		logging.F("tasks", m.Tasks),
		logging.F("failures", m.Failures),
		logging.Cost(m.TotalCost),
		logging.Duration(m.Uptime),
	)
	return errors.Join(a.memory.Close(), a.log.Close())
}
