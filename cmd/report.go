package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/signalnine/skillbench/internal/config"
	"github.com/signalnine/skillbench/internal/report"
)

var flagFormat string

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [runs-dir]",
		Short: "Print the aggregated results table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			return report.Generate(resultsDir(cfg, args), flagFormat, os.Stdout, report.OptionsFromConfig(cfg))
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json)")
	return cmd
}
