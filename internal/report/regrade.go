package report

import (
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/signalnine/skillbench/internal/assertion"
	"github.com/signalnine/skillbench/internal/result"
	"github.com/signalnine/skillbench/internal/workspace"
)

// Regraded is the outcome of regrading one run.
type Regraded struct {
	Ref        result.RunRef
	Before     result.Assertions
	After      result.Assertions
	HadMeta    bool
	ArtifactOK bool
}

// Changed reports whether the pass verdict or count moved.
func (r Regraded) Changed() bool {
	return r.Before.Passed != r.After.Passed || r.Before.Passing != r.After.Passing
}

// Regrade re-runs the assertions for every run under resultsDir and
// rewrites the assertion fields of each meta.json. Every other field is
// left as the run recorded it. Failures to rewrite a run are collected and
// the remaining runs are still regraded.
func Regrade(resultsDir string, opts Options) ([]Regraded, error) {
	refs, err := result.ListRuns(resultsDir)
	if err != nil {
		return nil, err
	}
	var (
		out  []Regraded
		errs *multierror.Error
	)
	for _, ref := range refs {
		l := workspace.Layout{Root: ref.Dir}
		meta, err := result.ReadRunMeta(l.Meta())
		rg := Regraded{Ref: ref, HadMeta: err == nil}
		if err != nil {
			meta = &result.RunMeta{BatchID: ref.BatchID, Run: ref.Run, OutputFile: opts.OutputFile}
		}
		rg.Before = meta.Assertions

		var report *assertion.Report
		if path, ok := l.LocateArtifact(opts.OutputFile); ok {
			rg.ArtifactOK = true
			report = assertion.CheckFile(path, opts.Expectations)
		} else {
			report = assertion.CheckFile(filepath.Join(l.Workspace(), opts.OutputFile), opts.Expectations)
		}
		meta.Assertions = result.FromReport(report)
		rg.After = meta.Assertions

		if err := result.WriteRunMeta(ref.Dir, meta); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s/run_%d: %w", ref.BatchID, ref.Run, err))
			continue
		}
		if rg.Changed() {
			log.WithFields(log.Fields{
				"batch":  ref.BatchID,
				"run":    ref.Run,
				"before": rg.Before.Passing,
				"after":  rg.After.Passing,
			}).Info("grade changed")
		}
		out = append(out, rg)
	}
	return out, errs.ErrorOrNil()
}
