package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/signalnine/skillbench/internal/config"
	"github.com/signalnine/skillbench/internal/skills"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the configured agent, skill, connectors and expectations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			printConfig(os.Stdout, cfg)
			return nil
		},
	}
}

func printConfig(w io.Writer, cfg *config.Config) {
	a := cfg.Agent
	fmt.Fprintln(w, "Agent:")
	fmt.Fprintf(w, "  - %s (image: %s, model: %s, timeout: %s)\n", a.Name, a.Image, a.Model, a.Timeout())

	s := cfg.Skill
	fmt.Fprintln(w, "\nSkill:")
	if s.Dir != "" {
		fmt.Fprintf(w, "  - %s (dir: %s)\n", s.Name, s.Dir)
		for _, found := range skills.Discover(s.Dir) {
			fmt.Fprintf(w, "      %s: %s\n", found.Name, found.Description)
		}
	} else {
		fmt.Fprintf(w, "  - %s (%s@%s)\n", s.Name, s.Repo, s.Commit)
	}

	fmt.Fprintln(w, "\nConnectors:")
	for _, c := range cfg.Connectors {
		fmt.Fprintf(w, "  - %s (%s %s)\n", c.Name, c.Transport, c.URL)
	}

	e := cfg.Expectations
	fmt.Fprintln(w, "\nExpectations:")
	fmt.Fprintf(w, "  output: %s\n", cfg.OutputFile)
	fmt.Fprintf(w, "  model: %s (task type %s)\n", e.Model, e.TaskType)
	fmt.Fprintf(w, "  benchmarks: at least %d of %s\n", e.MinBenchmarks, strings.Join(e.AllowList, ", "))
	fmt.Fprintf(w, "  excluded: %s\n", strings.Join(e.DenyList, ", "))
}
