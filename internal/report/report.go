package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"

	"github.com/signalnine/skillbench/internal/result"
)

// Summary aggregates the runs of one model within one batch.
type Summary struct {
	Model          string  `json:"model"`
	BatchID        string  `json:"batch_id"`
	Trials         int     `json:"trials"`
	Passed         int     `json:"passed"`
	PassRate       float64 `json:"pass_rate"`
	MeanAssertions float64 `json:"mean_assertions_passed"`
	MeanSpanMS     float64 `json:"mean_conversation_span_ms"`
	MeanTurns      float64 `json:"mean_turns"`
	MeanTokens     float64 `json:"mean_tokens"`
	MeanCostUSD    float64 `json:"mean_cost_usd"`
	UnknownTiming  int     `json:"unknown_timing"`
}

// ModelRate is the pass rate of one model across every batch.
type ModelRate struct {
	Model    string  `json:"model"`
	Trials   int     `json:"trials"`
	PassRate float64 `json:"pass_rate"`
}

const unknownModel = "unknown"

func modelOf(r *result.Row) string {
	if r.Model == "" {
		return unknownModel
	}
	return r.Model
}

// Generate summarizes resultsDir and writes the grouped table in format.
func Generate(resultsDir, format string, w io.Writer, opts Options) error {
	rows, err := Summarize(resultsDir, opts)
	if err != nil {
		return err
	}
	return Write(Aggregate(rows), format, w)
}

// Aggregate groups rows by model and batch. Timing means only include runs
// whose timing is known.
func Aggregate(rows []*result.Row) []Summary {
	type key struct{ model, batch string }
	type accum struct {
		count, passed, timed int
		assertions, tokens   float64
		cost, span, turns    float64
	}
	groups := map[key]*accum{}
	for _, r := range rows {
		k := key{modelOf(r), r.BatchID}
		a, ok := groups[k]
		if !ok {
			a = &accum{}
			groups[k] = a
		}
		a.count++
		a.assertions += float64(r.AssertionsPassed)
		a.tokens += float64(r.Tokens)
		a.cost += r.CostUSD
		if r.Passed {
			a.passed++
		}
		if r.TimingKnown {
			a.timed++
			a.span += r.SpanMS
			a.turns += float64(r.Turns)
		}
	}

	var summaries []Summary
	for k, a := range groups {
		s := Summary{
			Model:          k.model,
			BatchID:        k.batch,
			Trials:         a.count,
			Passed:         a.passed,
			PassRate:       float64(a.passed) / float64(a.count),
			MeanAssertions: a.assertions / float64(a.count),
			MeanTokens:     a.tokens / float64(a.count),
			MeanCostUSD:    a.cost / float64(a.count),
			UnknownTiming:  a.count - a.timed,
		}
		if a.timed > 0 {
			s.MeanSpanMS = a.span / float64(a.timed)
			s.MeanTurns = a.turns / float64(a.timed)
		}
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Model != summaries[j].Model {
			return summaries[i].Model < summaries[j].Model
		}
		return summaries[i].BatchID < summaries[j].BatchID
	})
	return summaries
}

// PassRateByModel folds every batch together, sorted by model.
func PassRateByModel(rows []*result.Row) []ModelRate {
	grouped := lo.GroupBy(rows, modelOf)
	rates := make([]ModelRate, 0, len(grouped))
	for model, rs := range grouped {
		passed := lo.CountBy(rs, func(r *result.Row) bool { return r.Passed })
		rates = append(rates, ModelRate{
			Model:    model,
			Trials:   len(rs),
			PassRate: float64(passed) / float64(len(rs)),
		})
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i].Model < rates[j].Model })
	return rates
}

// Write renders summaries as "table", "markdown" or "json".
func Write(summaries []Summary, format string, w io.Writer) error {
	switch format {
	case "markdown":
		return writeMarkdown(summaries, w)
	case "json":
		return writeJSON(summaries, w)
	case "table", "":
		return writeTable(summaries, w)
	default:
		return fmt.Errorf("unknown format %q (want table, markdown or json)", format)
	}
}

func writeTable(summaries []Summary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tBATCH\tTRIALS\tPASS RATE\tMEAN ASSERTIONS\tMEAN SPAN\tMEAN TURNS\tMEAN TOKENS\tMEAN COST")
	fmt.Fprintln(tw, strings.Repeat("-", 110))
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.0f%%\t%.1f\t%s\t%s\t%.0f\t$%.2f\n",
			s.Model, s.BatchID, s.Trials, s.PassRate*100, s.MeanAssertions,
			span(s), turns(s), s.MeanTokens, s.MeanCostUSD)
	}
	return tw.Flush()
}

func writeMarkdown(summaries []Summary, w io.Writer) error {
	fmt.Fprintln(w, "| Model | Batch | Trials | Pass Rate | Mean Assertions | Mean Span | Mean Turns | Mean Tokens | Mean Cost |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|---|---|")
	for _, s := range summaries {
		fmt.Fprintf(w, "| %s | %s | %d | %.0f%% | %.1f | %s | %s | %.0f | $%.2f |\n",
			s.Model, s.BatchID, s.Trials, s.PassRate*100, s.MeanAssertions,
			span(s), turns(s), s.MeanTokens, s.MeanCostUSD)
	}
	return nil
}

func writeJSON(summaries []Summary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}

// span and turns print "unknown" when no run in the group had usable timing.
func span(s Summary) string {
	if s.UnknownTiming == s.Trials {
		return result.Unknown
	}
	return fmt.Sprintf("%.1fs", s.MeanSpanMS/1000)
}

func turns(s Summary) string {
	if s.UnknownTiming == s.Trials {
		return result.Unknown
	}
	return fmt.Sprintf("%.1f", s.MeanTurns)
}
