package gitops

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

var refPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]*$`)

// CloneAtRef clones repo into dest and checks out ref (a commit, tag or
// branch). Any existing dest is removed first so every clone starts fresh.
func CloneAtRef(ctx context.Context, repo, ref, dest string) error {
	if err := validate(repo, ref); err != nil {
		return err
	}
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("clearing %s: %w", dest, err)
	}
	clone := exec.CommandContext(ctx, "git", "clone", "--no-checkout", "--", repo, dest)
	if out, err := clone.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone: %s: %w", out, err)
	}
	checkout := exec.CommandContext(ctx, "git", "-C", dest, "checkout", "--quiet", ref)
	if out, err := checkout.CombinedOutput(); err != nil {
		return fmt.Errorf("git checkout %s: %s: %w", ref, out, err)
	}
	return nil
}

// HeadCommit returns the commit checked out in repoDir.
func HeadCommit(ctx context.Context, repoDir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", repoDir, "rev-parse", "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse HEAD: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func validate(repo, ref string) error {
	if repo == "" || strings.HasPrefix(repo, "-") {
		return fmt.Errorf("invalid repo %q", repo)
	}
	if !refPattern.MatchString(ref) || strings.Contains(ref, "..") {
		return fmt.Errorf("invalid ref %q", ref)
	}
	return nil
}
