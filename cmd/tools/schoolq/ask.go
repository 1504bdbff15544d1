// cmd/tools/schoolq/ask.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ca-schools-query/internal/bootstrap"
	"ca-schools-query/internal/common/config"
	"ca-schools-query/internal/common/logger"
	"ca-schools-query/internal/pipeline"
)

func newAskCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question",
		Example: `  schoolq ask --data testdata/dashboard.json "high-performing ELA schools in San Francisco"
  schoolq ask --json "chronic absenteeism above 20% in Fresno"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			zapLog := logger.NewWithOutput(root.logLevel, "console", "stderr")
			defer zapLog.Sync()

			components, err := bootstrap.Build(cmd.Context(), cfg, zapLog, nil, bootstrap.Options{ConnectAttempts: 1})
			if err != nil {
				return err
			}
			defer components.Close()

			ans, err := components.Pipeline.Answer(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(ans)
			}
			printAnswer(cmd.OutOrStdout(), ans)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full answer as JSON")
	return cmd
}

func printAnswer(w io.Writer, ans pipeline.Answer) {
	if ans.Status == pipeline.StatusClarificationNeeded {
		fmt.Fprintln(w, ans.Clarification)
		return
	}
	p := ans.Payload
	fmt.Fprintln(w, p.Narrative)
	fmt.Fprintf(w, "\n(%d of %d matches, query %s)\n", p.Returned, p.TotalMatches, ans.QueryID)
}

// loadConfig resolves configuration for one invocation. --data alone needs
// no config file.
func loadConfig(root *rootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case root.configFile != "":
		cfg, err = config.LoadFromFile(root.configFile)
	case root.dataFile != "":
		cfg = &config.Config{}
	default:
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if root.dataFile != "" {
		cfg.Storage.Backend = config.BackendMemory
		cfg.Storage.DataFile = root.dataFile
		if root.configFile == "" && root.provider == "" {
			cfg.APIs.GenAI.Provider = config.ProviderNone
		}
	}
	if root.provider != "" {
		cfg.APIs.GenAI.Provider = root.provider
	}
	if root.policy != "" {
		cfg.Pipeline.MergePolicy = root.policy
	}

	if err := config.Finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
