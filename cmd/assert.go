package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalnine/skillbench/internal/assertion"
	"github.com/signalnine/skillbench/internal/config"
)

func newAssertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assert [file]",
		Short: "Check an evaluation artifact against the expectations",
		Long:  "Validate a model-index YAML file. Defaults to the configured output file in the current directory. Exits non-zero when any check fails.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			path := cfg.OutputFile
			if len(args) > 0 {
				path = args[0]
			}
			fmt.Printf("Validating: %s\n\n", path)
			r := assertion.CheckFile(path, cfg.Expectations)
			r.Print(os.Stdout)
			if !r.Passed() {
				return fmt.Errorf("%d assertion(s) failed", len(r.Failed()))
			}
			return nil
		},
	}
}
