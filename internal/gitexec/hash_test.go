// SPDX-License-Identifier: Apache-2.0

package gitexec

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCommitID(t *testing.T) {
	tests := map[string]struct {
		id            string
		expectedError error
	}{
		"valid commit id": {
			id: "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391",
		},
		"all-zero commit id": {
			id: "0000000000000000000000000000000000000000",
		},
		"too short": {
			id:            "e69de29bb2d1d6434b8",
			expectedError: ErrInvalidCommitIDLength,
		},
		"too long": {
			id:            "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391ab",
			expectedError: ErrInvalidCommitIDLength,
		},
		"not hex": {
			id:            "e69de29bb2d1d6434b8b29ae775ad8c2e48c539g",
			expectedError: ErrInvalidCommitIDEncoding,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			commitID, err := NewCommitID(test.id)
			if test.expectedError == nil {
				assert.NoError(t, err, fmt.Sprintf("case %q", name))
				assert.Equal(t, test.id, commitID.String())
				assert.False(t, commitID.IsZero())
			} else {
				assert.ErrorIs(t, err, test.expectedError)
			}
		})
	}
}

func TestCommitIDIsZero(t *testing.T) {
	var c CommitID
	assert.True(t, c.IsZero())

	c, err := NewCommitID("0000000000000000000000000000000000000000")
	assert.NoError(t, err)
	assert.False(t, c.IsZero())
}
