package gitops_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalnine/skillbench/internal/gitops"
)

func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	c := exec.Command("git", args...)
	c.Dir = dir
	out, err := c.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %s: %v", args, out, err)
	}
	return strings.TrimSpace(string(out))
}

// createTestRepo returns a repo with two commits and the hash of the first.
func createTestRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	git(t, dir, "init")
	git(t, dir, "config", "user.email", "test@test.com")
	git(t, dir, "config", "user.name", "Test")
	os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello"), 0o644)
	git(t, dir, "add", ".")
	git(t, dir, "commit", "-m", "initial")
	first := git(t, dir, "rev-parse", "HEAD")
	os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("goodbye"), 0o644)
	git(t, dir, "commit", "-am", "second")
	git(t, dir, "tag", "v2")
	return dir, first
}

func TestCloneAtCommit(t *testing.T) {
	repo, first := createTestRepo(t)
	dest := filepath.Join(t.TempDir(), "clone")
	if err := gitops.CloneAtRef(context.Background(), repo, first, dest); err != nil {
		t.Fatalf("CloneAtRef: %v", err)
	}
	content, err := os.ReadFile(filepath.Join(dest, "hello.txt"))
	if err != nil {
		t.Fatalf("reading cloned file: %v", err)
	}
	if string(content) != "hello" {
		t.Errorf("content: got %q, want %q", content, "hello")
	}
	head, err := gitops.HeadCommit(context.Background(), dest)
	if err != nil {
		t.Fatalf("HeadCommit: %v", err)
	}
	if head != first {
		t.Errorf("head: got %s, want %s", head, first)
	}
}

func TestCloneReplacesExistingDest(t *testing.T) {
	repo, _ := createTestRepo(t)
	dest := t.TempDir()
	os.WriteFile(filepath.Join(dest, "stale.txt"), []byte("left over"), 0o644)
	if err := gitops.CloneAtRef(context.Background(), repo, "v2", dest); err != nil {
		t.Fatalf("CloneAtRef: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "stale.txt")); !os.IsNotExist(err) {
		t.Error("expected stale file to be removed")
	}
	content, _ := os.ReadFile(filepath.Join(dest, "hello.txt"))
	if string(content) != "goodbye" {
		t.Errorf("content: got %q, want %q", content, "goodbye")
	}
}

func TestCloneRejectsOptionLikeRepo(t *testing.T) {
	err := gitops.CloneAtRef(context.Background(), "--upload-pack=evil", "v1", t.TempDir())
	if err == nil {
		t.Fatal("expected error for option-like repo")
	}
}

func TestCloneRejectsInvalidRef(t *testing.T) {
	for _, ref := range []string{"--option", "", " spaces", "../escape"} {
		err := gitops.CloneAtRef(context.Background(), "/tmp/repo", ref, t.TempDir())
		if err == nil {
			t.Errorf("expected error for ref %q", ref)
		}
	}
}
