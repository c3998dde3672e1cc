// SPDX-License-Identifier: Apache-2.0

package gitexec

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestRepository creates a throwaway non-bare Git repository in a t.TempDir()
// and returns a Repository anchored to its GIT_DIR, mirroring the teacher's
// own CreateTestGitRepository helper (internal/gitinterface/common.go) minus
// the signing-key setup this domain doesn't need.
func newTestRepository(t *testing.T) (*Repository, string) {
	t.Helper()

	dir := t.TempDir()
	runGit(t, dir, "init", "-q", "-b", "main")
	runGit(t, dir, "config", "user.name", "Jane Doe")
	runGit(t, dir, "config", "user.email", "jane.doe@example.com")

	repo, err := NewRepository(filepath.Join(dir, ".git"))
	require.NoError(t, err)

	return repo, dir
}

// commitFile writes name=contents, stages it, commits, and returns the new
// commit id.
func commitFile(t *testing.T, dir, name, contents, message string) CommitID {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
	runGit(t, dir, "add", name)
	runGit(t, dir, "commit", "-q", "-m", message)

	out := runGit(t, dir, "rev-parse", "HEAD")
	id, err := NewCommitID(out)
	require.NoError(t, err)
	return id
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	out, err := cmd.Output()
	require.NoError(t, err)
	return trimNewline(string(out))
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
