package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const InfoFile = "session.json"

// Turn is one entry of a session history file.
type Turn struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	Model       string       `json:"model,omitempty"`
	ElapsedMS   float64      `json:"elapsed_ms,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	Usage       *Usage       `json:"usage,omitempty"`
}

type ToolCall struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Name      string `json:"name,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Info is the content of session.json.
type Info struct {
	ID        string            `json:"id"`
	Agent     string            `json:"agent"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// HistoryFileName is the history file an agent's turns are recorded in.
func HistoryFileName(agent string) string {
	return "history_" + agent + ".json"
}

// Recorder persists turns to a session directory. The history file is
// rewritten atomically after every append so a reader never sees a
// partially written array.
type Recorder struct {
	mu    sync.Mutex
	info  Info
	path  string
	turns []Turn
	now   func() time.Time
}

// WriteInfo creates dir and writes session.json.
func WriteInfo(dir string, info Info) (Info, error) {
	if info.ID == "" {
		info.ID = filepath.Base(dir)
	}
	if info.CreatedAt.IsZero() {
		info.CreatedAt = time.Now().UTC()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return info, fmt.Errorf("creating session dir: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, InfoFile), info); err != nil {
		return info, fmt.Errorf("writing session info: %w", err)
	}
	return info, nil
}

// NewRecorder opens a session directory for recording. A session.json the
// harness already wrote is kept; otherwise info is written. The history file
// starts out as an empty array.
func NewRecorder(dir string, info Info) (*Recorder, error) {
	if existing, err := ReadInfo(dir); err == nil {
		if existing.Agent == "" {
			existing.Agent = info.Agent
		}
		info = *existing
	} else {
		written, err := WriteInfo(dir, info)
		if err != nil {
			return nil, err
		}
		info = written
	}
	r := &Recorder{
		info:  info,
		path:  filepath.Join(dir, HistoryFileName(info.Agent)),
		turns: []Turn{},
		now:   func() time.Time { return time.Now().UTC() },
	}
	if err := writeJSON(r.path, r.turns); err != nil {
		return nil, fmt.Errorf("writing session history: %w", err)
	}
	return r, nil
}

// Append records t, stamping it with the current time if it has none.
func (r *Recorder) Append(t Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Timestamp.IsZero() {
		t.Timestamp = r.now()
	}
	r.turns = append(r.turns, t)
	if err := writeJSON(r.path, r.turns); err != nil {
		return fmt.Errorf("writing session history: %w", err)
	}
	return nil
}

// SetMetadata merges kv into the metadata of session.json.
func (r *Recorder) SetMetadata(kv map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.info.Metadata == nil {
		r.info.Metadata = make(map[string]string, len(kv))
	}
	for k, v := range kv {
		r.info.Metadata[k] = v
	}
	if err := writeJSON(filepath.Join(filepath.Dir(r.path), InfoFile), r.info); err != nil {
		return fmt.Errorf("writing session info: %w", err)
	}
	return nil
}

func (r *Recorder) Path() string { return r.path }

func (r *Recorder) Info() Info { return r.info }

func (r *Recorder) Turns() []Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Turn(nil), r.turns...)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
