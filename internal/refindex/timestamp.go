// SPDX-License-Identifier: Apache-2.0

package refindex

import (
	"errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/s3git/git-remote-s3/internal/gitexec"
)

// GoGitTimestampResolver builds a TimestampResolver backed by go-git,
// grounded on the teacher's gitinterface.(*Repository).GetGoGitRepository:
// reading a commit's timestamp is a pure object-database read, so it is
// done through the go-git library rather than shelling out to git for
// every candidate head in a ref's set.
func GoGitTimestampResolver(gitDir string) TimestampResolver {
	repo, err := git.PlainOpenWithOptions(gitDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		// The local repository may not be opened yet (e.g. during `git
		// clone`'s first invocation of the helper). Every candidate is
		// then unresolvable, which is exactly the -∞ treatment spec §4.2
		// calls for.
		return func(gitexec.CommitID) (int64, bool) { return 0, false }
	}

	return func(id gitexec.CommitID) (int64, bool) {
		commit, err := repo.CommitObject(plumbing.NewHash(id.String()))
		if err != nil {
			if errors.Is(err, plumbing.ErrObjectNotFound) {
				return 0, false
			}
			return 0, false
		}
		return commit.Committer.When.Unix(), true
	}
}
