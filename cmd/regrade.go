package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalnine/skillbench/internal/config"
	"github.com/signalnine/skillbench/internal/report"
)

func newRegradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regrade [runs-dir]",
		Short: "Re-check stored artifacts",
		Long:  "Walk every run under the runs directory, re-run the assertions on its artifact and rewrite the assertion fields of its meta.json.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			dir := resultsDir(cfg, args)
			graded, err := report.Regrade(dir, report.OptionsFromConfig(cfg))
			for _, g := range graded {
				mark := " "
				if g.Changed() {
					mark = "*"
				}
				status := "FAIL"
				if g.After.Passed {
					status = "PASS"
				}
				fmt.Printf("%s %s/run_%d  %s  %d/%d\n", mark, g.Ref.BatchID, g.Ref.Run, status, g.After.Passing, g.After.Total)
			}
			if err != nil {
				return err
			}
			if len(graded) == 0 {
				return fmt.Errorf("no run folders found under %s", dir)
			}
			return nil
		},
	}
}
