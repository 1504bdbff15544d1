// cmd/tools/schoolq/root.go
package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	dataFile   string
	provider   string
	policy     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "schoolq",
		Short: "Ask questions about California School Dashboard results",
		Long: `schoolq answers plain-English questions about California School Dashboard
results, for example "Which schools in San Jose have math concerns for English
Learner students?".

Questions run through the same pipeline as the answer-school-question worker.
Use --data to query a local JSON snapshot instead of the configured database.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: configs/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.dataFile, "data", "", "answer from a JSON snapshot of dashboard results")
	cmd.PersistentFlags().StringVar(&opts.provider, "provider", "", "language model provider override (gemini, gateway, none)")
	cmd.PersistentFlags().StringVar(&opts.policy, "policy", "", "merge policy override (prefer_extractor, prefer_fallback)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(newAskCmd(opts))
	cmd.AddCommand(newIndicatorsCmd())
	cmd.AddCommand(newGroupsCmd())
	cmd.AddCommand(newBandsCmd())

	return cmd
}
