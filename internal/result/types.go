package result

import (
	"time"

	"github.com/signalnine/skillbench/internal/assertion"
)

// Exit reasons recorded for an agent invocation.
const (
	ExitCompleted = "completed"
	ExitGaveUp    = "gave_up"
	ExitCrashed   = "crashed"
	ExitTimeout   = "timeout"
	ExitError     = "error"
)

// RunMeta is written to meta.json when a run finishes.
type RunMeta struct {
	BatchID      string     `json:"batch_id"`
	Run          int        `json:"run"`
	Agent        string     `json:"agent"`
	Model        string     `json:"model"`
	Skill        string     `json:"skill"`
	SkillCommit  string     `json:"skill_commit,omitempty"`
	SessionID    string     `json:"session_id"`
	OutputFile   string     `json:"output_file"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   time.Time  `json:"finished_at"`
	DurationS    int        `json:"duration_s"`
	ExitCode     int        `json:"exit_code"`
	ExitReason   string     `json:"exit_reason"`
	Error        string     `json:"error,omitempty"`
	TotalTokens  int        `json:"total_tokens"`
	TotalCostUSD float64    `json:"total_cost_usd"`
	Assertions   Assertions `json:"assertions"`
}

// Assertions is the last grading outcome of a run.
type Assertions struct {
	Passed          bool      `json:"passed"`
	Passing         int       `json:"assertions_passed"`
	Total           int       `json:"assertions_total"`
	MetricsCount    int       `json:"metrics_count"`
	BenchmarksFound []string  `json:"benchmarks_found"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	GradedAt        time.Time `json:"graded_at"`
}

// FromReport converts a checker report into the stored grading outcome.
func FromReport(r *assertion.Report) Assertions {
	return Assertions{
		Passed:          r.Passed(),
		Passing:         r.PassedCount(),
		Total:           assertion.Total,
		MetricsCount:    r.MetricsCount,
		BenchmarksFound: append([]string{}, r.BenchmarksFound...),
		ErrorMessage:    r.ErrorMessage(),
		GradedAt:        time.Now().UTC(),
	}
}
