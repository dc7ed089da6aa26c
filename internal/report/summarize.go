package report

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/signalnine/skillbench/internal/assertion"
	"github.com/signalnine/skillbench/internal/config"
	"github.com/signalnine/skillbench/internal/pricing"
	"github.com/signalnine/skillbench/internal/result"
	"github.com/signalnine/skillbench/internal/session"
	"github.com/signalnine/skillbench/internal/workspace"
)

// ErrOutputNotFound is the row error for runs without an artifact.
const ErrOutputNotFound = "output YAML not found"

type Options struct {
	OutputFile   string
	Expectations config.Expectations
	Provider     string
	Pricing      *pricing.Table
}

// OptionsFromConfig derives summarizer options from the harness config.
// A pricing file that cannot be loaded is logged and ignored.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		OutputFile:   cfg.OutputFile,
		Expectations: cfg.Expectations,
		Provider:     cfg.Agent.Provider,
	}
	if cfg.Pricing.File != "" {
		table, err := pricing.Load(cfg.Pricing.File)
		if err != nil {
			log.WithError(err).Warn("pricing disabled")
		} else {
			opts.Pricing = table
		}
	}
	return opts
}

// Summarize builds one row per run under resultsDir. A run with missing or
// malformed history still yields a row, with unknown timing.
func Summarize(resultsDir string, opts Options) ([]*result.Row, error) {
	refs, err := result.ListRuns(resultsDir)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("no run folders found under %s", resultsDir)
	}
	rows := make([]*result.Row, 0, len(refs))
	for _, ref := range refs {
		rows = append(rows, BuildRow(ref, opts))
	}
	return rows, nil
}

// BuildRow grades one run and derives its timing from the session history.
func BuildRow(ref result.RunRef, opts Options) *result.Row {
	l := workspace.Layout{Root: ref.Dir}
	logger := log.WithFields(log.Fields{"batch": ref.BatchID, "run": ref.Run})
	row := &result.Row{
		BatchID:         ref.BatchID,
		Run:             ref.Run,
		AssertionsTotal: assertion.Total,
	}

	if meta, err := result.ReadRunMeta(l.Meta()); err == nil {
		row.Model = meta.Model
		row.SessionID = meta.SessionID
		row.Tokens = meta.TotalTokens
		row.CostUSD = meta.TotalCostUSD
		row.Timestamp = meta.StartedAt.Format(time.RFC3339)
	} else if info, statErr := os.Stat(ref.Dir); statErr == nil {
		row.Timestamp = info.ModTime().UTC().Format(time.RFC3339)
	}

	var errs []string
	if path, ok := l.LocateArtifact(opts.OutputFile); ok {
		r := assertion.CheckFile(path, opts.Expectations)
		row.Passed = r.Passed()
		row.AssertionsPassed = r.PassedCount()
		row.MetricsCount = r.MetricsCount
		row.BenchmarksFound = r.BenchmarksFound
		if msg := r.ErrorMessage(); msg != "" {
			errs = append(errs, msg)
		}
	} else {
		errs = append(errs, ErrOutputNotFound)
	}

	tr, err := session.Load(ref.Dir)
	var malformed *session.MalformedError
	switch {
	case err == nil:
		fillTiming(row, tr, opts)
	case errors.As(err, &malformed):
		row.HistorySource = result.HistoryMalformed
		row.HistoryFile = malformed.Path
		errs = append(errs, err.Error())
		logger.WithError(err).Warn("session history unreadable, timing unknown")
	default:
		row.HistorySource = result.HistoryMissing
		logger.Debug("no session history")
	}

	if !row.TimingKnown {
		fillFromSessionInfo(row, ref.Dir)
	}
	row.ErrorMessage = strings.Join(errs, "; ")
	return row
}

func fillTiming(row *result.Row, tr *session.Transcript, opts Options) {
	s := tr.Stats()
	row.TimingKnown = true
	row.HistorySource = string(tr.Source)
	row.HistoryFile = tr.Path
	if tr.SessionID != "" {
		row.SessionID = tr.SessionID
	}
	row.SpanMS = s.SpanMS
	row.LLMTimeMS = s.LLMTimeMS
	row.ToolTimeMS = s.ToolTimeMS
	row.Turns = s.Turns
	row.Entries = s.Entries
	row.ToolCalls = s.ToolCalls
	row.ToolErrors = s.ToolErrors
	row.MCPCalls = s.MCPCalls
	row.MCPErrors = s.MCPErrors
	row.ExecuteCalls = s.ExecuteCalls
	row.ExecuteErrors = s.ExecuteErrors

	if row.Model == "" && tr.Info != nil {
		row.Model = tr.Info.Metadata["model"]
	}
	if row.Model == "" {
		row.Model = s.Model
	}
	if s.Tokens() > 0 {
		row.Tokens = s.Tokens()
		if opts.Pricing != nil {
			row.CostUSD = opts.Pricing.Cost(opts.Provider, row.Model, s.InputTokens, s.OutputTokens)
		}
	}
}

// fillFromSessionInfo recovers the model and session id from session.json
// when the history itself could not be used.
func fillFromSessionInfo(row *result.Row, runDir string) {
	dir, ok := session.LatestSessionDir(runDir)
	if !ok {
		return
	}
	info, err := session.ReadInfo(dir)
	if err != nil {
		return
	}
	if row.Model == "" {
		row.Model = info.Metadata["model"]
	}
	if row.SessionID == "" {
		row.SessionID = info.ID
	}
}
