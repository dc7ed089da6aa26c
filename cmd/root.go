package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/signalnine/skillbench/internal/config"
)

var (
	cfgFile     string
	flagVerbose bool
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "skillbench",
		Short:        "Benchmark harness for agent skills",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagVerbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	root.AddCommand(newRunCmd())
	root.AddCommand(newAssertCmd())
	root.AddCommand(newSummarizeCmd())
	root.AddCommand(newRegradeCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newListCmd())
	return root
}

// resultsDir returns the runs directory named in args, or the configured one.
func resultsDir(cfg *config.Config, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Results.Dir
}
