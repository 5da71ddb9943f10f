package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/codebridge/internal/router"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Show the configured model and the /model aliases",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Default model: %s\n\n", cfg.Claude.Model)
			fmt.Fprintln(out, "Aliases for /model:")
			for _, a := range router.ModelAliases() {
				fmt.Fprintf(out, "  %-7s %-28s %s\n", a.Name, a.ID, a.Label)
			}
			fmt.Fprintln(out, "\nAny other value is passed to the agent as a model id.")
			return nil
		},
	}
}
