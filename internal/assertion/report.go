package assertion

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hashicorp/go-multierror"
)

type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	default:
		return "skipped"
	}
}

type CheckResult struct {
	Name     string
	Status   Status
	Detail   string
	Failures []string
}

// Report is the outcome of every check against one artifact.
type Report struct {
	Path            string
	Checks          []CheckResult
	MetricsCount    int
	BenchmarksFound []string
}

func newReport(path string) *Report {
	return &Report{Path: path}
}

func (r *Report) pass(name, detail string) {
	r.Checks = append(r.Checks, CheckResult{Name: name, Status: StatusPassed, Detail: detail})
}

func (r *Report) fail(name string, msgs ...string) {
	r.Checks = append(r.Checks, CheckResult{Name: name, Status: StatusFailed, Failures: msgs})
}

func (r *Report) skip(names ...string) {
	for _, n := range names {
		r.Checks = append(r.Checks, CheckResult{Name: n, Status: StatusSkipped})
	}
}

// skipRest marks every check not yet recorded as skipped.
func (r *Report) skipRest() *Report {
	for _, n := range CheckNames[len(r.Checks):] {
		r.skip(n)
	}
	return r
}

// Check returns the result for the named check.
func (r *Report) Check(name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

func (r *Report) Passed() bool {
	return r.PassedCount() == Total
}

func (r *Report) PassedCount() int {
	n := 0
	for _, c := range r.Checks {
		if c.Status == StatusPassed {
			n++
		}
	}
	return n
}

// Failed returns the names of the failed checks.
func (r *Report) Failed() []string {
	var names []string
	for _, c := range r.Checks {
		if c.Status == StatusFailed {
			names = append(names, c.Name)
		}
	}
	return names
}

// Err aggregates every failure message, or returns nil when all checks passed.
func (r *Report) Err() error {
	var result *multierror.Error
	for _, c := range r.Checks {
		for _, msg := range c.Failures {
			result = multierror.Append(result, fmt.Errorf("%s: %s", c.Name, msg))
		}
	}
	return result.ErrorOrNil()
}

// ErrorMessage flattens the failures into a single line for CSV output.
func (r *Report) ErrorMessage() string {
	var parts []string
	for _, c := range r.Checks {
		parts = append(parts, c.Failures...)
	}
	return strings.Join(parts, "; ")
}

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	skipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	boldStyle = lipgloss.NewStyle().Bold(true)
)

// Print writes a checklist with one line per check and a closing count.
func (r *Report) Print(w io.Writer) {
	for _, c := range r.Checks {
		switch c.Status {
		case StatusPassed:
			line := passStyle.Render("✓") + " " + c.Name
			if c.Detail != "" {
				line += " (" + c.Detail + ")"
			}
			fmt.Fprintln(w, line)
		case StatusFailed:
			fmt.Fprintln(w, failStyle.Render("✗")+" "+c.Name)
			for _, msg := range c.Failures {
				fmt.Fprintln(w, "    - "+msg)
			}
		default:
			fmt.Fprintln(w, skipStyle.Render("-")+" "+c.Name+" (skipped)")
		}
	}
	fmt.Fprintln(w, strings.Repeat("=", 50))
	verdict := "ALL ASSERTIONS PASSED"
	if !r.Passed() {
		verdict = fmt.Sprintf("%d ASSERTION(S) FAILED", len(r.Failed()))
	}
	fmt.Fprintln(w, boldStyle.Render(verdict))
	fmt.Fprintf(w, "Checks passed: %d/%d\n", r.PassedCount(), Total)
	fmt.Fprintf(w, "Total metrics: %d\n", r.MetricsCount)
	fmt.Fprintf(w, "Expected benchmarks found: %d\n", len(r.BenchmarksFound))
	fmt.Fprintln(w, strings.Repeat("=", 50))
}
