package result

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Unknown is written in place of timing fields whose history could not be read.
const Unknown = "unknown"

// History markers for runs without a usable transcript.
const (
	HistoryMissing   = "missing"
	HistoryMalformed = "malformed"
)

// Header lists the CSV columns in order.
var Header = []string{
	"batch_id", "run_number", "model", "timestamp", "passed",
	"assertions_passed", "assertions_total", "metrics_count", "benchmarks_found",
	"tokens", "cost_usd", "conversation_span_ms", "llm_time_ms", "tool_time_ms",
	"turns", "entries", "tool_calls", "tool_errors", "mcp_calls",
	"mcp_errors", "execute_calls", "execute_errors", "history_source",
	"session_id", "session_history_file", "error_message",
}

// Row is one run's summary line.
type Row struct {
	BatchID          string   `json:"batch_id"`
	Run              int      `json:"run_number"`
	Model            string   `json:"model"`
	Timestamp        string   `json:"timestamp"`
	Passed           bool     `json:"passed"`
	AssertionsPassed int      `json:"assertions_passed"`
	AssertionsTotal  int      `json:"assertions_total"`
	MetricsCount     int      `json:"metrics_count"`
	BenchmarksFound  []string `json:"benchmarks_found"`
	Tokens           int      `json:"tokens"`
	CostUSD          float64  `json:"cost_usd"`
	// TimingKnown is false when the run's history was missing or malformed.
	TimingKnown   bool    `json:"timing_known"`
	SpanMS        float64 `json:"conversation_span_ms"`
	LLMTimeMS     float64 `json:"llm_time_ms"`
	ToolTimeMS    float64 `json:"tool_time_ms"`
	Turns         int     `json:"turns"`
	Entries       int     `json:"entries"`
	ToolCalls     int     `json:"tool_calls"`
	ToolErrors    int     `json:"tool_errors"`
	MCPCalls      int     `json:"mcp_calls"`
	MCPErrors     int     `json:"mcp_errors"`
	ExecuteCalls  int     `json:"execute_calls"`
	ExecuteErrors int     `json:"execute_errors"`
	HistorySource string  `json:"history_source"`
	SessionID     string  `json:"session_id"`
	HistoryFile   string  `json:"session_history_file"`
	ErrorMessage  string  `json:"error_message"`
}

// Record renders the row in Header order.
func (r *Row) Record() []string {
	timing := func(v string) string {
		if !r.TimingKnown {
			return Unknown
		}
		return v
	}
	return []string{
		r.BatchID,
		strconv.Itoa(r.Run),
		r.Model,
		r.Timestamp,
		strconv.FormatBool(r.Passed),
		strconv.Itoa(r.AssertionsPassed),
		strconv.Itoa(r.AssertionsTotal),
		strconv.Itoa(r.MetricsCount),
		strings.Join(r.BenchmarksFound, ","),
		strconv.Itoa(r.Tokens),
		strconv.FormatFloat(r.CostUSD, 'f', 4, 64),
		timing(formatMS(r.SpanMS)),
		timing(formatMS(r.LLMTimeMS)),
		timing(formatMS(r.ToolTimeMS)),
		timing(strconv.Itoa(r.Turns)),
		timing(strconv.Itoa(r.Entries)),
		strconv.Itoa(r.ToolCalls),
		strconv.Itoa(r.ToolErrors),
		strconv.Itoa(r.MCPCalls),
		strconv.Itoa(r.MCPErrors),
		strconv.Itoa(r.ExecuteCalls),
		strconv.Itoa(r.ExecuteErrors),
		r.HistorySource,
		r.SessionID,
		r.HistoryFile,
		r.ErrorMessage,
	}
}

func formatMS(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// WriteCSV writes the header and rows to w.
func WriteCSV(w io.Writer, rows []*Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile replaces path with a CSV of rows.
func WriteCSVFile(path string, rows []*Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating csv dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv: %w", err)
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("writing csv: %w", err)
	}
	return f.Close()
}

// AppendCSV appends row to path, writing the header first if the file is new.
func AppendCSV(path string, row *Row) error {
	_, err := os.Stat(path)
	isNew := errors.Is(err, os.ErrNotExist)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating csv dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening csv: %w", err)
	}
	cw := csv.NewWriter(f)
	if isNew {
		cw.Write(Header)
	}
	cw.Write(row.Record())
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("appending csv: %w", err)
	}
	return f.Close()
}

// ReadCSV parses a file written by WriteCSV or AppendCSV back into records
// keyed by column name.
func ReadCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening csv: %w", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]
	out := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		m := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				m[col] = rec[i]
			}
		}
		out = append(out, m)
	}
	return out, nil
}
