package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BatchIDLayout formats a batch start time into its id.
const BatchIDLayout = "2006_01_02_15_04"

const runPrefix = "run_"

func NewBatchID(t time.Time) string {
	return t.Format(BatchIDLayout)
}

// CreateBatchDir creates <resultsDir>/<batch id> and points
// <resultsDir>/latest at it.
func CreateBatchDir(resultsDir string, now time.Time) (string, string, error) {
	id := NewBatchID(now)
	batchDir, err := filepath.Abs(filepath.Join(resultsDir, id))
	if err != nil {
		return "", "", fmt.Errorf("resolving batch dir: %w", err)
	}
	if err := os.MkdirAll(batchDir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating batch dir: %w", err)
	}
	latest := filepath.Join(resultsDir, "latest")
	os.Remove(latest)
	if err := os.Symlink(batchDir, latest); err != nil {
		return "", "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return id, batchDir, nil
}

func RunDir(batchDir string, run int) string {
	return filepath.Join(batchDir, fmt.Sprintf("%s%d", runPrefix, run))
}

// RunNumber parses the index out of a run_<n> directory name.
func RunNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, runPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, runPrefix))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// NextRun returns the first run index not yet used in batchDir.
func NextRun(batchDir string) int {
	refs, _ := listBatch(batchDir, filepath.Base(batchDir))
	next := 1
	for _, r := range refs {
		if r.Run >= next {
			next = r.Run + 1
		}
	}
	return next
}

// RunRef locates one run on disk.
type RunRef struct {
	BatchID string
	Run     int
	Dir     string
}

// ListRuns returns every run under resultsDir, batches sorted by name and
// runs by index. Directories without run_<n> children are ignored.
func ListRuns(resultsDir string) ([]RunRef, error) {
	entries, err := os.ReadDir(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("reading results dir: %w", err)
	}
	var refs []RunRef
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		batch, err := listBatch(filepath.Join(resultsDir, e.Name()), e.Name())
		if err != nil {
			continue
		}
		refs = append(refs, batch...)
	}
	return refs, nil
}

func listBatch(batchDir, batchID string) ([]RunRef, error) {
	entries, err := os.ReadDir(batchDir)
	if err != nil {
		return nil, err
	}
	var refs []RunRef
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if n, ok := RunNumber(e.Name()); ok {
			refs = append(refs, RunRef{BatchID: batchID, Run: n, Dir: filepath.Join(batchDir, e.Name())})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Run < refs[j].Run })
	return refs, nil
}

func WriteRunMeta(runDir string, meta *RunMeta) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("creating run dir: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling meta: %w", err)
	}
	return os.WriteFile(filepath.Join(runDir, "meta.json"), data, 0o644)
}

func ReadRunMeta(path string) (*RunMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading meta: %w", err)
	}
	var meta RunMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing meta: %w", err)
	}
	return &meta, nil
}
