// cmd/tools/schoolq/catalog.go
package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ca-schools-query/internal/schema"
)

func newIndicatorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indicators",
		Short: "List the dashboard indicators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tUNIT\tPOLARITY")
			for _, spec := range schema.Default().Indicators() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", spec.ID, spec.Name, spec.Unit, spec.Polarity)
			}
			return tw.Flush()
		},
	}
}

func newGroupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List the student groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tNAME")
			for _, g := range schema.Default().ListDemographics() {
				fmt.Fprintf(tw, "%s\t%s\n", g.Code, g.Name)
			}
			return tw.Flush()
		},
	}
}

func newBandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "bands <indicator>",
		Short:   "Show the performance bands of an indicator",
		Example: `  schoolq bands math`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := schema.Default()
			id, err := reg.LookupIndicator(args[0])
			if err != nil {
				return err
			}
			spec, err := reg.Describe(id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s, %s)\n", spec.Name, spec.Unit, spec.Polarity)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BAND\tRANGE")
			for _, b := range spec.Bands {
				ranges, err := reg.BandRanges(id, b.Color)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\n", b.Color, ranges[0])
			}
			return tw.Flush()
		},
	}
}
