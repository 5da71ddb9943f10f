package router

import (
	"context"
	"fmt"
	"strings"

	cberr "github.com/abdul-hamid-achik/codebridge/internal/errors"
	"github.com/abdul-hamid-achik/codebridge/internal/memory"
	"github.com/abdul-hamid-achik/codebridge/internal/output"
)

// Git, file and memory commands. All of them require a project, which
// dispatch checks before calling.

func (r *Router) cmdDiff(ctx context.Context, req request) (string, error) {
	return r.git.Diff(ctx, req.conv.ProjectPath, req.arg)
}

func (r *Router) cmdCommit(ctx context.Context, req request) (string, error) {
	return r.git.Commit(ctx, req.conv.ProjectPath, req.arg)
}

func (r *Router) cmdPush(ctx context.Context, req request) (string, error) {
	return r.git.Push(ctx, req.conv.ProjectPath, req.arg)
}

func (r *Router) cmdPull(ctx context.Context, req request) (string, error) {
	return r.git.Pull(ctx, req.conv.ProjectPath)
}

func (r *Router) cmdBranch(ctx context.Context, req request) (string, error) {
	return r.git.Branch(ctx, req.conv.ProjectPath, req.arg)
}

func (r *Router) cmdLog(ctx context.Context, req request) (string, error) {
	return r.git.Log(ctx, req.conv.ProjectPath, req.arg)
}

func (r *Router) cmdGitStatus(ctx context.Context, req request) (string, error) {
	return r.git.Status(ctx, req.conv.ProjectPath)
}

func (r *Router) cmdCat(_ context.Context, req request) (string, error) {
	return r.files.Cat(req.conv.ProjectPath, req.arg)
}

func (r *Router) cmdTree(_ context.Context, req request) (string, error) {
	return r.files.Tree(req.conv.ProjectPath, req.arg)
}

const memoryListSize = 10

func (r *Router) cmdMemory(ctx context.Context, req request) (string, error) {
	project := req.conv.Project
	store, err := r.memory.Store(req.conv.ProjectPath)
	if err != nil {
		return "", cberr.StoreFailed("open", err)
	}

	if req.arg == "stats" {
		st, err := store.Stats(ctx, project)
		if err != nil {
			return "", cberr.StoreFailed("stats", err)
		}
		return fmt.Sprintf("Memory stats [%s]:\n  Entries: %d\n  Total cost: $%.4f", project, st.Count, st.TotalCost), nil
	}

	recent, err := store.Recent(ctx, project, memoryListSize)
	if err != nil {
		return "", cberr.StoreFailed("recent", err)
	}
	if len(recent) == 0 {
		return "No memory yet\nEntries are recorded after each agent task", nil
	}

	lines := []string{fmt.Sprintf("Recent work [%s]:\n", project)}
	lines = append(lines, renderEntries(recent)...)
	lines = append(lines, "/memory stats - totals", "/search <query> - search past work")
	return strings.Join(lines, "\n"), nil
}

func (r *Router) cmdSearch(ctx context.Context, req request) (string, error) {
	if req.arg == "" {
		return "", cberr.Usage("Usage: /search <query>")
	}
	project := req.conv.Project
	store, err := r.memory.Store(req.conv.ProjectPath)
	if err != nil {
		return "", cberr.StoreFailed("open", err)
	}

	results, err := store.Search(ctx, req.arg, project, memoryListSize)
	if err != nil {
		return "", cberr.StoreFailed("search", err)
	}
	if len(results) == 0 {
		return fmt.Sprintf("Nothing found for '%s'", req.arg), nil
	}

	lines := []string{fmt.Sprintf("Results for '%s':\n", req.arg)}
	lines = append(lines, renderEntries(results)...)
	return strings.TrimRight(strings.Join(lines, "\n"), "\n"), nil
}

func renderEntries(entries []memory.Entry) []string {
	lines := make([]string, 0, 2*len(entries))
	for _, e := range entries {
		lines = append(lines,
			fmt.Sprintf("[%s] %s", e.Time.Format("2006-01-02 15:04"), output.Truncate(e.Task, 60)),
			"  -> "+output.Truncate(e.Summary, 80)+"\n",
		)
	}
	return lines
}
