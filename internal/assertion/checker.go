package assertion

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/signalnine/skillbench/internal/config"
)

// Check names, in the order they are evaluated.
const (
	CheckParse          = "file exists and parses"
	CheckStructure      = "valid model-index structure"
	CheckModelName      = "correct model name"
	CheckTaskType       = "results with expected task type"
	CheckBenchmarkCount = "expected benchmarks found"
	CheckAllowList      = "only expected benchmarks"
	CheckDenyList       = "no hyperparameters or baselines"
	CheckValues         = "numeric values within [0, 100]"
	CheckSource         = "source attribution"
)

// CheckNames lists every check in evaluation order.
var CheckNames = []string{
	CheckParse, CheckStructure, CheckModelName, CheckTaskType,
	CheckBenchmarkCount, CheckAllowList, CheckDenyList, CheckValues, CheckSource,
}

// Total is the number of checks in a report.
var Total = len(CheckNames)

// DefaultExpectations are the expectations for the OLMo-7B extraction task.
func DefaultExpectations() config.Expectations {
	return config.Default().Expectations
}

// CheckFile validates the artifact at path. It never panics on malformed
// input: an unreadable file or missing model-index yields a single failure
// and the dependent checks are skipped.
func CheckFile(path string, exp config.Expectations) *Report {
	r := newReport(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			r.fail(CheckParse, fmt.Sprintf("output file %q not found", path))
		} else {
			r.fail(CheckParse, fmt.Sprintf("reading %q: %v", path, err))
		}
		return r.skipRest()
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		r.fail(CheckParse, fmt.Sprintf("invalid YAML: %v", err))
		return r.skipRest()
	}
	r.pass(CheckParse, "file exists")

	entries, msg := modelIndex(&root)
	if msg != "" {
		r.fail(CheckStructure, msg)
		return r.skipRest()
	}
	r.pass(CheckStructure, fmt.Sprintf("%d model-index entries", len(entries)))

	checkDocument(r, &Document{ModelIndex: entries}, exp)
	return r
}

// CheckDocument validates an already parsed artifact.
func CheckDocument(doc *Document, exp config.Expectations) *Report {
	r := newReport("")
	r.pass(CheckParse, "in memory")
	if doc == nil || len(doc.ModelIndex) == 0 {
		r.fail(CheckStructure, "missing or empty 'model-index' key")
		return r.skipRest()
	}
	r.pass(CheckStructure, fmt.Sprintf("%d model-index entries", len(doc.ModelIndex)))
	checkDocument(r, doc, exp)
	return r
}

func modelIndex(root *yaml.Node) ([]ModelEntry, string) {
	const missing = "missing or empty 'model-index' key"
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, missing
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, missing
	}
	var seq *yaml.Node
	for i := 0; i+1 < len(top.Content); i += 2 {
		if top.Content[i].Value == "model-index" {
			seq = top.Content[i+1]
			break
		}
	}
	if seq == nil || seq.Kind != yaml.SequenceNode || len(seq.Content) == 0 {
		return nil, missing
	}
	var entries []ModelEntry
	if err := seq.Decode(&entries); err != nil {
		return nil, fmt.Sprintf("malformed 'model-index': %v", err)
	}
	return entries, ""
}

func checkDocument(r *Report, doc *Document, exp config.Expectations) {
	entry := doc.ModelIndex[0]

	if entry.Name == exp.Model {
		r.pass(CheckModelName, entry.Name)
	} else {
		r.fail(CheckModelName, fmt.Sprintf("model name is %q, expected %q", entry.Name, exp.Model))
	}

	taskType := exp.TaskType
	if taskType == "" {
		taskType = "text-generation"
	}
	switch {
	case len(entry.Results) == 0:
		r.fail(CheckTaskType, "missing or empty 'results' key")
	case lo.ContainsBy(entry.Results, func(res Result) bool { return res.Task.Type == taskType }):
		r.pass(CheckTaskType, fmt.Sprintf("%d results", len(entry.Results)))
	default:
		types := lo.Map(entry.Results, func(res Result, _ int) string { return res.Task.Type })
		r.fail(CheckTaskType, fmt.Sprintf("no result with task type %q (found %v)", taskType, types))
	}

	metrics := lo.FlatMap(entry.Results, func(res Result, _ int) []Metric { return res.Metrics })
	r.MetricsCount = len(metrics)

	names := lo.Uniq(lo.Map(metrics, func(m Metric, _ int) string { return NormalizeMetric(m) }))
	allow := lo.Map(exp.AllowList, func(s string, _ int) string { return NormalizeName(s) })
	found := lo.Intersect(allow, names)
	sort.Strings(found)
	r.BenchmarksFound = found

	if len(found) >= exp.MinBenchmarks {
		r.pass(CheckBenchmarkCount, fmt.Sprintf("found %d expected benchmark types: %s", len(found), strings.Join(found, ", ")))
	} else {
		r.fail(CheckBenchmarkCount, fmt.Sprintf("only found %d expected benchmarks (need %d): %v", len(found), exp.MinBenchmarks, found))
	}

	if len(metrics) == 0 {
		r.skip(CheckAllowList, CheckDenyList, CheckValues)
	} else {
		checkAllowList(r, metrics, allow)
		checkDenyList(r, metrics, exp.DenyList)
		checkValues(r, metrics)
	}

	checkSource(r, entry.Results, exp)
}

func checkAllowList(r *Report, metrics []Metric, allow []string) {
	var msgs []string
	for _, m := range metrics {
		if n := NormalizeMetric(m); !lo.Contains(allow, n) {
			msgs = append(msgs, fmt.Sprintf("metric %q (%s) is not an expected benchmark", m.Name, n))
		}
	}
	if len(msgs) == 0 {
		r.pass(CheckAllowList, fmt.Sprintf("%d metrics", len(metrics)))
		return
	}
	r.fail(CheckAllowList, msgs...)
}

func checkDenyList(r *Report, metrics []Metric, deny []string) {
	var msgs []string
	for _, m := range metrics {
		if d, ok := denyMatch(m, deny); ok {
			msgs = append(msgs, fmt.Sprintf("metric %q matches excluded key %q", m.Name, d))
		}
	}
	if len(msgs) == 0 {
		r.pass(CheckDenyList, "")
		return
	}
	r.fail(CheckDenyList, msgs...)
}

func checkValues(r *Report, metrics []Metric) {
	var msgs []string
	for _, m := range metrics {
		switch {
		case m.Value == nil:
			msgs = append(msgs, fmt.Sprintf("metric %q missing value", m.Name))
		case !m.Value.Numeric:
			msgs = append(msgs, fmt.Sprintf("metric %q value %s is not numeric", m.Name, m.Value))
		case !(m.Value.Number >= 0 && m.Value.Number <= 100):
			msgs = append(msgs, fmt.Sprintf("metric %q value %s is outside [0, 100]", m.Name, m.Value))
		}
	}
	if len(msgs) == 0 {
		r.pass(CheckValues, "")
		return
	}
	r.fail(CheckValues, msgs...)
}

func checkSource(r *Report, results []Result, exp config.Expectations) {
	ref := exp.SourceRef
	if ref == "" {
		ref = exp.Model
	}
	var urls []string
	for _, res := range results {
		if res.Source != nil && res.Source.URL != "" {
			urls = append(urls, res.Source.URL)
		}
	}
	if len(urls) == 0 {
		r.fail(CheckSource, "missing source or source URL")
		return
	}
	if url, ok := lo.Find(urls, func(u string) bool { return strings.Contains(u, ref) }); ok {
		r.pass(CheckSource, url)
		return
	}
	r.fail(CheckSource, fmt.Sprintf("source URL %q does not reference %q", urls[0], ref))
}
