package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/signalnine/skillbench/internal/assertion"
	"github.com/signalnine/skillbench/internal/config"
	"github.com/signalnine/skillbench/internal/pricing"
	"github.com/signalnine/skillbench/internal/result"
	"github.com/signalnine/skillbench/internal/session"
	"github.com/signalnine/skillbench/internal/workspace"
)

type RunOpts struct {
	Config   *config.Config
	BatchID  string
	BatchDir string
	Run      int
	Invoker  Invoker
	Secrets  map[string]string
	Pricing  *pricing.Table
}

// Outcome is a finished run.
type Outcome struct {
	Dir    string
	Meta   *result.RunMeta
	Report *assertion.Report
}

// Run provisions, invokes and grades a single run. Provisioning and agent
// failures are recorded in the run's meta.json rather than returned, so a
// batch carries on; the returned error is reserved for failing to record
// the run at all.
func Run(ctx context.Context, opts *RunOpts) (*Outcome, error) {
	cfg := opts.Config
	runDir := result.RunDir(opts.BatchDir, opts.Run)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run dir: %w", err)
	}
	l := workspace.Layout{Root: runDir}
	logger := log.WithFields(log.Fields{"batch": opts.BatchID, "run": opts.Run})

	meta := &result.RunMeta{
		BatchID:    opts.BatchID,
		Run:        opts.Run,
		Agent:      cfg.Agent.Name,
		Model:      cfg.Agent.Model,
		Skill:      cfg.Skill.Name,
		OutputFile: cfg.OutputFile,
		StartedAt:  time.Now().UTC(),
		ExitCode:   -1,
	}

	if err := invoke(ctx, opts, l, meta); err != nil {
		meta.ExitReason = result.ExitError
		meta.Error = err.Error()
		logger.WithError(err).Warn("run failed before the agent finished")
	}

	if _, err := l.RecoverOutput(cfg.OutputFile); err != nil {
		logger.WithError(err).Warn("recovering output")
	}
	report := assertion.CheckFile(filepath.Join(l.Workspace(), cfg.OutputFile), cfg.Expectations)
	meta.Assertions = result.FromReport(report)

	tr, err := session.Load(runDir)
	switch {
	case err == nil:
		stats := tr.Stats()
		if meta.Model == "" {
			meta.Model = stats.Model
		}
		meta.TotalTokens = stats.Tokens()
		meta.TotalCostUSD = opts.Pricing.Cost(cfg.Agent.Provider, meta.Model, stats.InputTokens, stats.OutputTokens)
	default:
		logger.WithError(err).Warn("session history unavailable")
	}

	meta.FinishedAt = time.Now().UTC()
	if meta.DurationS == 0 {
		meta.DurationS = durationSeconds(meta.FinishedAt.Sub(meta.StartedAt))
	}
	if err := result.WriteRunMeta(runDir, meta); err != nil {
		return nil, fmt.Errorf("writing meta: %w", err)
	}
	logger.WithFields(log.Fields{
		"exit_reason": meta.ExitReason,
		"passed":      report.Passed(),
	}).Info("run finished")
	return &Outcome{Dir: runDir, Meta: meta, Report: report}, nil
}

func invoke(ctx context.Context, opts *RunOpts, l workspace.Layout, meta *result.RunMeta) error {
	cfg := opts.Config
	ws, err := workspace.Provision(ctx, l.Root, cfg)
	if err != nil {
		return fmt.Errorf("provisioning: %w", err)
	}
	meta.SkillCommit = ws.Commit

	prompt, err := workspace.LoadPrompt(ws.PromptPath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(ws.Task(), []byte(prompt), 0o644); err != nil {
		return fmt.Errorf("writing task: %w", err)
	}

	meta.SessionID = session.NewID()
	if _, err := session.WriteInfo(ws.SessionDir(meta.SessionID), session.Info{
		ID:    meta.SessionID,
		Agent: cfg.Agent.Name,
		Metadata: map[string]string{
			"batch_id":    opts.BatchID,
			"run_number":  strconv.Itoa(opts.Run),
			"output_file": cfg.OutputFile,
			"model":       cfg.Agent.Model,
		},
	}); err != nil {
		return err
	}

	res, err := opts.Invoker.Invoke(ctx, &Invocation{
		Agent:       cfg.Agent,
		SkillName:   cfg.Skill.Name,
		Connectors:  cfg.Connectors,
		Workspace:   ws,
		SessionID:   meta.SessionID,
		CacheVolume: cfg.Cache.Volume,
		Secrets:     opts.Secrets,
	})
	if err != nil {
		return fmt.Errorf("invoking agent: %w", err)
	}
	meta.ExitCode = res.ExitCode
	meta.ExitReason = ExitReasonFromCode(res.ExitCode, res.TimedOut)
	meta.DurationS = durationSeconds(res.Duration)
	if res.Logs != "" {
		if err := os.WriteFile(filepath.Join(l.Root, "agent.log"), []byte(res.Logs), 0o644); err != nil {
			log.WithError(err).Warn("writing agent log")
		}
	}
	return nil
}
