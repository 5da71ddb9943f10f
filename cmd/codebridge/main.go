package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/codebridge/internal/config"
	"github.com/abdul-hamid-achik/codebridge/internal/logging"
)

var Version = "dev"

var (
	configPath string
	verbose    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "codebridge",
		Short: "Drive the claude coding agent from a chat",
		Long: `codebridge relays chat messages to the claude CLI running in your projects.

Plain messages become agent tasks in the active project; slash commands
manage projects, git, files and the per-project memory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: search codebridge.yaml, .codebridge/config.yaml, ~/.config/codebridge/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newServeCmd(),
		newConsoleCmd(),
		newDoctorCmd(),
		newModelsCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "codebridge version %s\n", Version)
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{Path: configPath})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger. Environment settings win over the
// config file. A nil console writer means stderr.
func newLogger(cfg *config.Config, console io.Writer) (*logging.Logger, error) {
	lc := logging.ConfigFromEnv()
	if cfg.Log.Level != "" && os.Getenv("CODEBRIDGE_LOG_LEVEL") == "" && !lc.DebugMode {
		lc = lc.WithLevel(logging.ParseLevel(cfg.Log.Level))
	}
	if cfg.Log.Dir != "" && os.Getenv("CODEBRIDGE_LOG_DIR") == "" {
		lc = lc.WithLogDir(cfg.Log.Dir)
	}
	if verbose {
		lc = lc.WithVerbose(true)
	}
	if console != nil {
		return logging.NewWithWriter(lc, console), nil
	}
	return logging.Init(lc)
}
