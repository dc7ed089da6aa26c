package result_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/skillbench/internal/result"
)

func sampleRow() *result.Row {
	return &result.Row{
		BatchID:          "2025_11_20_10_00",
		Run:              1,
		Model:            "claude-sonnet-4-5",
		Passed:           true,
		AssertionsPassed: 9,
		AssertionsTotal:  9,
		MetricsCount:     11,
		BenchmarksFound:  []string{"arc_easy", "boolq"},
		Tokens:           2800,
		TimingKnown:      true,
		SpanMS:           8000,
		LLMTimeMS:        4000,
		ToolTimeMS:       4000,
		Turns:            2,
		Entries:          4,
		HistorySource:    "session",
		ErrorMessage:     "a, b; c",
	}
}

func TestRecordMatchesHeader(t *testing.T) {
	rec := sampleRow().Record()
	require.Len(t, rec, len(result.Header))
	assert.Equal(t, "arc_easy,boolq", rec[8])
	assert.Equal(t, "8000.00", rec[11])
	assert.Equal(t, "2", rec[indexOf(result.Header, "turns")])
	assert.Equal(t, "4", rec[indexOf(result.Header, "entries")])
}

func TestRecordUnknownTiming(t *testing.T) {
	row := sampleRow()
	row.TimingKnown = false
	row.HistorySource = result.HistoryMalformed
	rec := row.Record()
	for _, col := range []string{"conversation_span_ms", "llm_time_ms", "tool_time_ms", "turns", "entries"} {
		i := indexOf(result.Header, col)
		assert.Equal(t, result.Unknown, rec[i], col)
	}
	assert.Equal(t, "malformed", rec[indexOf(result.Header, "history_source")])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, result.WriteCSV(&buf, []*result.Row{sampleRow()}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(result.Header, ","), lines[0])
	assert.Contains(t, lines[1], `"arc_easy,boolq"`)
}

func TestAppendCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "results.csv")
	require.NoError(t, result.AppendCSV(path, sampleRow()))
	second := sampleRow()
	second.Run = 2
	second.Passed = false
	require.NoError(t, result.AppendCSV(path, second))

	records, err := result.ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, records, 2, "header must be written once")
	assert.Equal(t, "1", records[0]["run_number"])
	assert.Equal(t, "false", records[1]["passed"])
	assert.Equal(t, "a, b; c", records[1]["error_message"])
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
