package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	cberr "github.com/abdul-hamid-achik/codebridge/internal/errors"
	"github.com/abdul-hamid-achik/codebridge/internal/output"
	"github.com/abdul-hamid-achik/codebridge/internal/projects"
)

const detailChunk = 4000

// Project commands

func (r *Router) cmdProjects(_ context.Context, req request) (string, error) {
	list := r.projects.List()
	if len(list) == 0 {
		return "No projects yet\n\n/newproject <name> - create a project\n/addproject <name> <path> - register an existing directory", nil
	}

	lines := []string{"Projects:\n"}
	for _, p := range list {
		line := "  " + p.Name
		if p.Description != "" {
			line += " (" + p.Description + ")"
		}
		if !p.CreatedAt.IsZero() {
			line += ", added " + humanize.Time(p.CreatedAt)
		}
		if p.Name == req.conv.Project {
			line += " <-- current"
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", "Current project: "+orNone(req.conv.Project), "Switch with /cd <name>")
	return strings.Join(lines, "\n"), nil
}

func (r *Router) cmdCd(_ context.Context, req request) (string, error) {
	if req.arg == "" {
		return "", cberr.Usage("Usage: /cd <project>")
	}
	p, ok := r.projects.Get(req.arg)
	if !ok {
		names := r.projects.Names()
		msg := fmt.Sprintf("Project '%s' does not exist\nAvailable projects: %s", req.arg, orNone(strings.Join(names, ", ")))
		if s := suggest(req.arg, names); s != "" {
			msg += fmt.Sprintf("\nDid you mean /cd %s?", s)
		}
		return msg, nil
	}
	r.sessions.SetProject(req.id(), p.Name, p.Path)
	return fmt.Sprintf("Switched to: %s\nPath: %s", p.Name, p.Path), nil
}

func (r *Router) cmdAddProject(_ context.Context, req request) (string, error) {
	parts := splitArgs(req.arg, 3)
	if len(parts) < 2 {
		return "", cberr.Usage("Usage: /addproject <name> <path> [description]")
	}
	desc := ""
	if len(parts) > 2 {
		desc = parts[2]
	}
	p, err := r.projects.Add(parts[0], parts[1], desc)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Registered project: %s\nPath: %s\nSwitch with /cd %s", p.Name, p.Path, p.Name), nil
}

func (r *Router) cmdNewProject(ctx context.Context, req request) (string, error) {
	parts := splitArgs(req.arg, 2)
	if len(parts) == 0 {
		return "", cberr.Usage("Usage: /newproject <name> [description]")
	}
	desc := ""
	if len(parts) > 1 {
		desc = parts[1]
	}
	p, report, err := r.projects.Create(ctx, parts[0], desc)
	if err != nil {
		return "", err
	}
	r.sessions.SetProject(req.id(), p.Name, p.Path)
	return report + "\n\nActive project: " + p.Name, nil
}

func (r *Router) cmdClone(ctx context.Context, req request) (string, error) {
	parts := splitArgs(req.arg, 2)
	if len(parts) == 0 {
		return "", cberr.Usage("Usage: /clone <owner/repo> [name]\nExample: /clone octocat/hello-world\nList your repositories: /repos")
	}
	repo, name := parts[0], ""
	if len(parts) > 1 {
		name = parts[1]
	}

	r.reply(ctx, req.id(), "Cloning "+repo+"...")
	p, err := r.projects.Clone(ctx, repo, name)
	if err != nil {
		if cberr.GetCategory(err) != "" {
			return "", err
		}
		return err.Error(), nil
	}
	r.sessions.SetProject(req.id(), p.Name, p.Path)
	return fmt.Sprintf("Cloned %s\nPath: %s\n\nActive project: %s", repo, p.Path, p.Name), nil
}

func (r *Router) cmdRepos(ctx context.Context, req request) (string, error) {
	limit, _ := strconv.Atoi(strings.TrimSpace(req.arg))
	out, err := r.projects.ListRemote(ctx, projects.ClampRepoLimit(limit))
	if err != nil {
		return err.Error(), nil
	}
	return out, nil
}

func (r *Router) cmdRmProject(_ context.Context, req request) (string, error) {
	if req.arg == "" {
		return "", cberr.Usage("Usage: /rmproject <name>")
	}
	if err := r.projects.Remove(req.arg); err != nil {
		return "", err
	}
	return fmt.Sprintf("Project '%s' unregistered (files kept)", req.arg), nil
}

// Session commands

func (r *Router) cmdStatus(_ context.Context, req request) (string, error) {
	c := req.conv
	sessionState := "new session"
	if c.Continuation {
		sessionState = "continuing"
	}
	lines := []string{
		"Status:\n",
		"  Project: " + orNone(c.Project),
		"  Path: " + orValue(c.ProjectPath, "n/a"),
		"  Session: " + sessionState,
		"  Model: " + orValue(c.Model, "default"),
	}
	if c.AgentSession != "" {
		lines = append(lines, "  Session id: "+output.Truncate(c.AgentSession, 16)+"...")
	}

	m := r.log.Metrics().Snapshot()
	lines = append(lines,
		"",
		fmt.Sprintf("Tasks: %d (failed %d, timed out %d, aborted %d)", m.Tasks, m.Failures, m.Timeouts, m.Aborts),
		fmt.Sprintf("Total cost: $%.4f", m.TotalCost),
		"Uptime: "+m.Uptime.Round(time.Second).String(),
	)
	return strings.Join(lines, "\n"), nil
}

func (r *Router) cmdNew(_ context.Context, req request) (string, error) {
	r.sessions.ClearSession(req.id())
	return "Started a new session (project unchanged)", nil
}

func (r *Router) cmdModel(_ context.Context, req request) (string, error) {
	if req.arg == "" {
		var b strings.Builder
		fmt.Fprintf(&b, "Current model: %s\n\nAvailable models:\n", orValue(req.conv.Model, "default"))
		for _, a := range modelAliases {
			fmt.Fprintf(&b, "  /model %s - %s (%s)\n", a.Name, a.ID, a.Label)
		}
		b.WriteString("  /model <model id> - any other model")
		return b.String(), nil
	}
	model := ResolveModel(req.arg)
	r.sessions.SetModel(req.id(), model)
	return "Model switched to: " + model, nil
}

func (r *Router) cmdAbort(_ context.Context, req request) (string, error) {
	if r.agent.Abort(req.id()) {
		return "Task aborted", nil
	}
	return "No task is running", nil
}

func (r *Router) cmdHelp(context.Context, request) (string, error) {
	return helpText, nil
}

func (r *Router) cmdStart(context.Context, request) (string, error) {
	return welcomeText, nil
}

// Output commands

func (r *Router) cmdDetail(ctx context.Context, req request) (string, error) {
	full := r.LastOutput(req.id())
	if full == "" {
		return "No output to show", nil
	}
	r.reply(ctx, req.id(), sliceRunes(full, 0, detailChunk))
	return sliceRunes(full, detailChunk, 2*detailChunk), nil
}

func orNone(s string) string {
	return orValue(s, "none")
}

func orValue(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
