package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/abdul-hamid-achik/codebridge/internal/config"
	"github.com/abdul-hamid-achik/codebridge/internal/logging"
	"github.com/abdul-hamid-achik/codebridge/internal/router"
	"github.com/abdul-hamid-achik/codebridge/internal/transport/console"
	"github.com/abdul-hamid-achik/codebridge/internal/transport/telegram"
)

var errNoTerminal = errors.New("console mode needs an interactive terminal")

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateFor(config.TransportTelegram); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := checkPrerequisites(ctx, cmd.ErrOrStderr(), cfg, true); err != nil {
				return err
			}

			log, err := newLogger(cfg, nil)
			if err != nil {
				return err
			}

			bot, err := telegram.New(telegram.Config{
				Token:            cfg.Telegram.Token,
				AllowedUsers:     cfg.Telegram.AllowedUsers,
				PollTimeout:      cfg.Telegram.PollTimeout,
				SendRate:         cfg.Telegram.SendRate,
				ProxyURL:         cfg.Proxy.URL,
				MaxMessageLength: cfg.Output.MaxMessageLength,
				Bypass:           router.Bypasses,
			}, log)
			if err != nil {
				_ = log.Close()
				return err
			}

			a, err := newApp(cfg, log, bot)
			if err != nil {
				_ = log.Close()
				return err
			}
			defer func() { _ = a.Close() }()

			log.Info("codebridge started", logging.F("transport", bot.Name()))
			return run(ctx, a, func(ctx context.Context) error {
				return bot.Start(ctx, a.router.Handle)
			})
		},
	}
}

func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Drive the agent from this terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !console.IsTTYAvailable() {
				return errNoTerminal
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := checkPrerequisites(ctx, cmd.ErrOrStderr(), cfg, true); err != nil {
				return err
			}

			// The UI owns the screen, so console log output is dropped; the
			// session log file still records everything.
			log, err := newLogger(cfg, io.Discard)
			if err != nil {
				return err
			}

			con := console.New(console.Options{
				Title:     cfg.Claude.Model,
				Highlight: true,
				Bypass:    router.Bypasses,
			}, log)
			a, err := newApp(cfg, log, con)
			if err != nil {
				_ = log.Close()
				return err
			}
			defer func() { _ = a.Close() }()

			return run(ctx, a, func(ctx context.Context) error {
				return con.Start(ctx, a.router.Handle)
			})
		},
	}
}

// run drives a transport next to the registry watcher. Either one
// returning ends both.
func run(ctx context.Context, a *app, start func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return start(gctx)
	})
	g.Go(func() error {
		return a.watcher.Run(gctx)
	})
	return g.Wait()
}
