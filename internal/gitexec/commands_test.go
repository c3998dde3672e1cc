// SPDX-License-Identifier: Apache-2.0

package gitexec

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevParse(t *testing.T) {
	repo, dir := newTestRepository(t)
	a := commitFile(t, dir, "a.txt", "hello", "first")

	got, err := repo.RevParse("main")
	require.NoError(t, err)
	assert.Equal(t, a, got)

	got, err = repo.RevParse("HEAD")
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestIsAncestor(t *testing.T) {
	repo, dir := newTestRepository(t)
	a := commitFile(t, dir, "a.txt", "hello", "first")
	b := commitFile(t, dir, "b.txt", "world", "second")

	isAncestor, err := repo.IsAncestor(a, b)
	require.NoError(t, err)
	assert.True(t, isAncestor)

	isAncestor, err = repo.IsAncestor(b, a)
	require.NoError(t, err)
	assert.False(t, isAncestor)

	isAncestor, err = repo.IsAncestor(a, a)
	require.NoError(t, err)
	assert.True(t, isAncestor)
}

func TestCommitTimestamp(t *testing.T) {
	repo, dir := newTestRepository(t)
	a := commitFile(t, dir, "a.txt", "hello", "first")

	ts, err := repo.CommitTimestamp(a)
	require.NoError(t, err)
	assert.Positive(t, ts)
}

func TestSymbolicRefHEAD(t *testing.T) {
	repo, dir := newTestRepository(t)
	commitFile(t, dir, "a.txt", "hello", "first")

	ref, err := repo.SymbolicRefHEAD()
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/main", ref)
}

func TestConfigGet(t *testing.T) {
	repo, _ := newTestRepository(t)

	value, ok, err := repo.ConfigGet("user.email")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "jane.doe@example.com", value)

	_, ok, err = repo.ConfigGet("remote.origin.gpgrecipients")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBundleCreateAndUnbundle(t *testing.T) {
	repo, dir := newTestRepository(t)
	a := commitFile(t, dir, "a.txt", "hello", "first")

	bundlePath := filepath.Join(t.TempDir(), "out.bundle")
	require.NoError(t, repo.BundleCreate(bundlePath, a))
	assert.FileExists(t, bundlePath)

	otherDir := t.TempDir()
	runGit(t, otherDir, "init", "-q", "-b", "main")
	otherRepo, err := NewRepository(filepath.Join(otherDir, ".git"))
	require.NoError(t, err)

	require.NoError(t, otherRepo.BundleUnbundle(bundlePath))

	got, err := otherRepo.RevParse(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, got)
}
