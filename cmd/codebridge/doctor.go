package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/abdul-hamid-achik/codebridge/internal/config"
	cberr "github.com/abdul-hamid-achik/codebridge/internal/errors"
	"github.com/abdul-hamid-achik/codebridge/internal/runner"
)

type prerequisite struct {
	name     string
	required bool
	hint     string
}

type probe struct {
	prerequisite
	path    string
	version string
	found   bool
}

func prerequisites(cfg *config.Config) []prerequisite {
	return []prerequisite{
		{name: "git", required: true, hint: "install git from https://git-scm.com/"},
		{name: cfg.Claude.Command, required: true, hint: cberr.InstallHint},
		{name: "gh", required: false, hint: "https://cli.github.com/ (needed for /newproject, /clone, /repos)"},
	}
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that git, gh and the agent CLI are installed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if path := cfg.ConfigPath(); path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Config: %s\n", path)
			}
			return checkPrerequisites(cmd.Context(), cmd.OutOrStdout(), cfg, false)
		},
	}
}

// checkPrerequisites probes every tool in parallel. Missing required tools
// are an error. When quiet, only problems are printed.
func checkPrerequisites(ctx context.Context, w io.Writer, cfg *config.Config, quiet bool) error {
	reqs := prerequisites(cfg)
	probes := make([]probe, len(reqs))
	run := runner.NewOSRunner()

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			p := probe{prerequisite: req}
			p.path, p.found = runner.LookPath(req.name)
			if p.found {
				if res, err := run.Run(gctx, "", req.name, "--version"); err == nil && res.OK() {
					p.version, _, _ = strings.Cut(strings.TrimSpace(res.Stdout), "\n")
				}
			}
			probes[i] = p
			return nil
		})
	}
	_ = g.Wait()

	var missing []string
	for _, p := range probes {
		switch {
		case p.found:
			if !quiet {
				fmt.Fprintf(w, "%s %s %s\n", color.GreenString("✓"), p.name, color.HiBlackString(orDash(p.version)))
			}
		case p.required:
			missing = append(missing, p.name)
			fmt.Fprintf(w, "%s %s not found: %s\n", color.RedString("✗"), p.name, p.hint)
		default:
			fmt.Fprintf(w, "%s %s not found (optional): %s\n", color.YellowString("!"), p.name, p.hint)
		}
	}

	if len(missing) > 0 {
		return cberr.ExecutableNotFound(strings.Join(missing, ", "), nil)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
