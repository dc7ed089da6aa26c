package result_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalnine/skillbench/internal/result"
)

func TestWriteAndReadRunMeta(t *testing.T) {
	dir := t.TempDir()
	started := time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)
	meta := &result.RunMeta{
		BatchID:    "2025_11_20_10_00",
		Run:        1,
		Agent:      "eval_skill",
		Model:      "claude-sonnet-4-5",
		SessionID:  "0b6c",
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
		DurationS:  42,
		ExitReason: result.ExitCompleted,
		Assertions: result.Assertions{
			Passed:          true,
			Passing:         9,
			Total:           9,
			MetricsCount:    11,
			BenchmarksFound: []string{"arc_easy", "boolq"},
		},
	}
	if err := result.WriteRunMeta(dir, meta); err != nil {
		t.Fatalf("WriteRunMeta: %v", err)
	}
	got, err := result.ReadRunMeta(filepath.Join(dir, "meta.json"))
	if err != nil {
		t.Fatalf("ReadRunMeta: %v", err)
	}
	if got.Model != meta.Model {
		t.Errorf("model: got %q, want %q", got.Model, meta.Model)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("started_at: got %v, want %v", got.StartedAt, started)
	}
	if !got.Assertions.Passed || got.Assertions.Passing != 9 {
		t.Errorf("assertions: got %+v", got.Assertions)
	}
}

func TestReadRunMetaMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	os.WriteFile(path, []byte("{"), 0o644)
	if _, err := result.ReadRunMeta(path); err == nil {
		t.Error("expected error for malformed meta")
	}
}

func TestCreateBatchDir(t *testing.T) {
	base := t.TempDir()
	now := time.Date(2025, 11, 20, 9, 5, 0, 0, time.Local)
	id, batchDir, err := result.CreateBatchDir(base, now)
	if err != nil {
		t.Fatalf("CreateBatchDir: %v", err)
	}
	if id != "2025_11_20_09_05" {
		t.Errorf("batch id: got %q", id)
	}
	if _, err := os.Stat(batchDir); os.IsNotExist(err) {
		t.Errorf("batch directory not created: %s", batchDir)
	}
	target, err := os.Readlink(filepath.Join(base, "latest"))
	if err != nil {
		t.Fatalf("reading latest symlink: %v", err)
	}
	if target != batchDir {
		t.Errorf("latest symlink: got %q, want %q", target, batchDir)
	}
}

func TestRunDir(t *testing.T) {
	base := t.TempDir()
	dir := result.RunDir(base, 3)
	if want := filepath.Join(base, "run_3"); dir != want {
		t.Errorf("got %q, want %q", dir, want)
	}
}

func TestRunNumber(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"run_1", 1, true},
		{"run_12", 12, true},
		{"run_0", 0, false},
		{"run_x", 0, false},
		{"workspace", 0, false},
	}
	for _, tt := range tests {
		got, ok := result.RunNumber(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("RunNumber(%q) = %d, %v; want %d, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestListRunsOrdering(t *testing.T) {
	base := t.TempDir()
	for _, d := range []string{
		"2025_11_21_08_00/run_2",
		"2025_11_21_08_00/run_10",
		"2025_11_20_10_00/run_1",
		"2025_11_21_08_00/run_1",
		"scratch/notes",
	} {
		os.MkdirAll(filepath.Join(base, d), 0o755)
	}
	os.WriteFile(filepath.Join(base, "results.csv"), nil, 0o644)

	refs, err := result.ListRuns(base)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	var got []string
	for _, r := range refs {
		got = append(got, filepath.Join(r.BatchID, filepath.Base(r.Dir)))
	}
	want := []string{
		"2025_11_20_10_00/run_1",
		"2025_11_21_08_00/run_1",
		"2025_11_21_08_00/run_2",
		"2025_11_21_08_00/run_10",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ref %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNextRun(t *testing.T) {
	batch := t.TempDir()
	if n := result.NextRun(batch); n != 1 {
		t.Errorf("empty batch: got %d, want 1", n)
	}
	os.MkdirAll(result.RunDir(batch, 1), 0o755)
	os.MkdirAll(result.RunDir(batch, 4), 0o755)
	if n := result.NextRun(batch); n != 5 {
		t.Errorf("got %d, want 5", n)
	}
}
