package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type SourceKind string

const (
	SourceSession SourceKind = "session"
	SourceLegacy  SourceKind = "legacy"
)

// ErrMissing is returned by Load when no source has a file for the run.
var ErrMissing = errors.New("no session history")

// MalformedError reports a history file that exists but could not be parsed.
type MalformedError struct {
	Source SourceKind
	Path   string
	Err    error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s history %s: %v", e.Source, e.Path, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Transcript is the uniform record every source produces.
type Transcript struct {
	Source    SourceKind
	Path      string
	SessionID string
	Info      *Info
	Turns     []Turn
}

// Source is one way of finding and reading a run's history.
type Source struct {
	Kind SourceKind
	// Locate returns the history file for the run, if there is one.
	Locate func(runDir string) (string, bool)
	Read   func(path string) (*Transcript, error)
}

// Sources lists the history sources in priority order.
var Sources = []Source{
	{Kind: SourceSession, Locate: locateSessionHistory, Read: readSessionHistory},
	{Kind: SourceLegacy, Locate: locateLegacy, Read: readLegacy},
}

// Load reads the run's history from the first source whose file exists.
// A file that exists but does not parse is reported as a *MalformedError
// and later sources are not consulted.
func Load(runDir string, sources ...Source) (*Transcript, error) {
	if len(sources) == 0 {
		sources = Sources
	}
	for _, src := range sources {
		path, ok := src.Locate(runDir)
		if !ok {
			continue
		}
		t, err := src.Read(path)
		if err != nil {
			return &Transcript{Source: src.Kind, Path: path}, &MalformedError{Source: src.Kind, Path: path, Err: err}
		}
		t.Source = src.Kind
		t.Path = path
		return t, nil
	}
	return nil, ErrMissing
}

// LatestSessionDir returns the most recently modified session directory of a run.
func LatestSessionDir(runDir string) (string, bool) {
	return latest(filepath.Join(runDir, "session"), func(e os.DirEntry) bool { return e.IsDir() })
}

func locateSessionHistory(runDir string) (string, bool) {
	dir, ok := LatestSessionDir(runDir)
	if !ok {
		return "", false
	}
	return latest(dir, func(e os.DirEntry) bool {
		name := e.Name()
		return !e.IsDir() && strings.HasPrefix(name, "history_") && strings.HasSuffix(name, ".json")
	})
}

// latest returns the entry of dir matching keep with the newest mtime.
func latest(dir string, keep func(os.DirEntry) bool) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	type candidate struct {
		path string
		mod  time.Time
	}
	var found []candidate
	for _, e := range entries {
		if !keep(e) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, candidate{filepath.Join(dir, e.Name()), info.ModTime()})
	}
	if len(found) == 0 {
		return "", false
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].mod.Equal(found[j].mod) {
			return found[i].path > found[j].path
		}
		return found[i].mod.After(found[j].mod)
	})
	return found[0].path, true
}

func readSessionHistory(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	t := &Transcript{SessionID: filepath.Base(dir), Turns: turns}
	if info, err := ReadInfo(dir); err == nil {
		t.Info = info
		if info.ID != "" {
			t.SessionID = info.ID
		}
	}
	return t, nil
}

// ReadInfo reads session.json from a session directory.
func ReadInfo(dir string) (*Info, error) {
	data, err := os.ReadFile(filepath.Join(dir, InfoFile))
	if err != nil {
		return nil, fmt.Errorf("reading session info: %w", err)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parsing session info: %w", err)
	}
	return &info, nil
}
