package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/signalnine/skillbench/internal/config"
	"github.com/signalnine/skillbench/internal/report"
	"github.com/signalnine/skillbench/internal/result"
)

func newSummarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize [runs-dir]",
		Short: "Grade every stored run and write the summary CSV and chart",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			dir := resultsDir(cfg, args)
			rows, err := report.Summarize(dir, report.OptionsFromConfig(cfg))
			if err != nil {
				return err
			}

			csvPath := filepath.Join(dir, cfg.Results.SummaryCSV)
			if err := result.WriteCSVFile(csvPath, rows); err != nil {
				return err
			}
			fmt.Printf("Wrote %d rows to %s\n", len(rows), csvPath)

			if cfg.Chart.File != "" {
				chartPath := filepath.Join(dir, cfg.Chart.File)
				if err := report.WriteChart(chartPath, report.PassRateByModel(rows)); err != nil {
					log.WithError(err).Warn("chart not written")
				} else {
					fmt.Printf("Wrote chart to %s\n", chartPath)
				}
			}

			fmt.Println()
			return report.Write(report.Aggregate(rows), "table", os.Stdout)
		},
	}
}
