package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/signalnine/skillbench/internal/config"
	"github.com/signalnine/skillbench/internal/docker"
	"github.com/signalnine/skillbench/internal/envfile"
	"github.com/signalnine/skillbench/internal/report"
	"github.com/signalnine/skillbench/internal/result"
	"github.com/signalnine/skillbench/internal/runner"
)

var (
	flagRuns       int
	flagOutputFile string
	flagCleanup    bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent against the skill and grade each run",
		Args:  cobra.NoArgs,
		RunE:  runBatch,
	}
	cmd.Flags().IntVar(&flagRuns, "runs", 0, "override run count")
	cmd.Flags().StringVar(&flagOutputFile, "output-file", "", "override the expected artifact name")
	cmd.Flags().BoolVar(&flagCleanup, "cleanup", false, "prune skillbench containers after the batch")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	applyRunFlags(cfg, flagRuns, flagOutputFile)

	opts := report.OptionsFromConfig(cfg)
	secrets := loadSecrets(cfg.Secrets.EnvFile)

	batchID, batchDir, err := result.CreateBatchDir(cfg.Results.Dir, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("Batch directory: %s\n", batchDir)

	ctx := cmd.Context()
	csvPath := filepath.Join(cfg.Results.Dir, cfg.Results.CSV)
	first := result.NextRun(batchDir)
	passed := 0
	for i := 0; i < cfg.Runs; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n := first + i
		fmt.Printf("Running %s × %s (run %d/%d)...\n", cfg.Agent.Name, cfg.Skill.Name, i+1, cfg.Runs)
		out, err := runner.Run(ctx, &runner.RunOpts{
			Config:   cfg,
			BatchID:  batchID,
			BatchDir: batchDir,
			Run:      n,
			Invoker:  runner.DockerInvoker{},
			Secrets:  secrets,
			Pricing:  opts.Pricing,
		})
		if err != nil {
			fmt.Printf("  ERROR: %v\n", err)
			continue
		}
		row := report.BuildRow(result.RunRef{BatchID: batchID, Run: n, Dir: out.Dir}, opts)
		if err := result.AppendCSV(csvPath, row); err != nil {
			log.WithError(err).Warn("appending results csv")
		}
		if out.Report.Passed() {
			passed++
		}
		fmt.Printf("  %s (duration: %ds, assertions: %d/%d)\n",
			out.Meta.ExitReason, out.Meta.DurationS, out.Meta.Assertions.Passing, out.Meta.Assertions.Total)
	}

	if flagCleanup {
		cleanupDocker(ctx)
	}

	fmt.Printf("\n%d/%d runs passed all assertions\n", passed, cfg.Runs)
	fmt.Printf("Results appended to %s\n", csvPath)
	return nil
}

func applyRunFlags(cfg *config.Config, runs int, outputFile string) {
	if runs > 0 {
		cfg.Runs = runs
	}
	if outputFile != "" {
		cfg.OutputFile = outputFile
	}
}

// loadSecrets reads the secrets env file and overlays values already set in
// the process environment for the same keys.
func loadSecrets(path string) map[string]string {
	if path == "" {
		return nil
	}
	secrets, err := envfile.Parse(path)
	if err != nil {
		log.WithError(err).Warn("could not load secrets")
		return nil
	}
	for k := range secrets {
		if v := os.Getenv(k); v != "" {
			secrets[k] = v
		}
	}
	return secrets
}

func cleanupDocker(ctx context.Context) {
	fmt.Println("Cleaning up Docker artifacts...")
	n, err := docker.PruneContainers(ctx, "skillbench=true")
	if err != nil {
		log.WithError(err).Warn("docker prune")
		return
	}
	log.WithField("containers", n).Info("docker prune")
}
