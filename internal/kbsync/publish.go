// Package kbsync publishes KB entries into a shared repository directory.
package kbsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/aidanlsb/kb/internal/atomicfile"
	"github.com/aidanlsb/kb/internal/paths"
)

// ErrTargetInsideKB is returned when the sync target would live inside the KB itself.
var ErrTargetInsideKB = errors.New("sync target is inside the knowledge base")

// CheckTarget rejects sync targets that are empty or nested inside root.
func CheckTarget(root, target string) error {
	if strings.TrimSpace(target) == "" {
		return fmt.Errorf("no sync target configured")
	}
	if paths.ValidateWithinKB(root, target) == nil {
		return fmt.Errorf("%w: %s", ErrTargetInsideKB, target)
	}
	return nil
}

// Destination returns where relPath is published under target.
func Destination(target, relPath string) string {
	return filepath.Join(target, filepath.FromSlash(relPath))
}

// Copy atomically writes the content of src to target/relPath, creating
// parent directories as needed.
func Copy(src, target, relPath string) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	dest := Destination(target, relPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	if err := atomicfile.WriteFile(dest, data, 0); err != nil {
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	return dest, nil
}

// IsGitWorkTree reports whether dir is inside a git work tree.
func IsGitWorkTree(ctx context.Context, dir string) bool {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--is-inside-work-tree")
	out, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

// CommitFile stages relPath in the work tree at dir and commits it.
// It returns the new HEAD, or "" when the file had no staged changes.
func CommitFile(ctx context.Context, dir, relPath, message string) (string, error) {
	rel := filepath.FromSlash(relPath)
	if _, err := git(ctx, dir, "add", "--", rel); err != nil {
		return "", err
	}

	staged, err := hasStagedChanges(ctx, dir, rel)
	if err != nil || !staged {
		return "", err
	}

	if _, err := git(ctx, dir, "commit", "-m", message, "--", rel); err != nil {
		return "", err
	}
	head, err := git(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return head, nil
}

// hasStagedChanges runs `git diff --cached --quiet`, which exits 1 when rel has staged changes.
func hasStagedChanges(ctx context.Context, dir, rel string) (bool, error) {
	err := exec.CommandContext(ctx, "git", "-C", dir, "diff", "--cached", "--quiet", "--", rel).Run()
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, fmt.Errorf("git diff --cached failed: %w", err)
}

func git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %s", args[0], strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}
