// SPDX-License-Identifier: Apache-2.0

package refindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKey(t *testing.T) {
	sha := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

	tests := map[string]struct {
		prefix    string
		key       string
		wantOK    bool
		wantRef   string
		wantSHA   string
		wantEnc   bool
	}{
		"plain bundle": {
			prefix:  "myprefix",
			key:     "myprefix/refs/heads/main/" + sha + ".bundle",
			wantOK:  true,
			wantRef: "refs/heads/main",
			wantSHA: sha,
		},
		"encrypted bundle": {
			prefix:  "myprefix",
			key:     "myprefix/refs/heads/main/" + sha + ".bundle.enc",
			wantOK:  true,
			wantRef: "refs/heads/main",
			wantSHA: sha,
			wantEnc: true,
		},
		"empty prefix": {
			prefix:  "",
			key:     "refs/heads/main/" + sha + ".bundle",
			wantOK:  true,
			wantRef: "refs/heads/main",
			wantSHA: sha,
		},
		"malformed stem": {
			prefix: "myprefix",
			key:    "myprefix/refs/heads/main/not-a-sha.bundle",
			wantOK: false,
		},
		"unrelated suffix": {
			prefix: "myprefix",
			key:    "myprefix/refs/heads/main/" + sha + ".txt",
			wantOK: false,
		},
		"missing ref component": {
			prefix: "myprefix",
			key:    "myprefix/" + sha + ".bundle",
			wantOK: false,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			parsed, ok := parseKey(test.prefix, test.key)
			assert.Equal(t, test.wantOK, ok)
			if test.wantOK {
				assert.Equal(t, test.wantRef, parsed.refName)
				assert.Equal(t, test.wantSHA, parsed.sha)
				assert.Equal(t, test.wantEnc, parsed.encrypted)
			}
		})
	}
}

func TestBundleKeyRoundTrip(t *testing.T) {
	sha := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	key := BundleKey("myprefix", "refs/heads/main", sha, false)
	parsed, ok := parseKey("myprefix", key)
	assert.True(t, ok)
	assert.Equal(t, "refs/heads/main", parsed.refName)
	assert.Equal(t, sha, parsed.sha)
	assert.False(t, parsed.encrypted)

	encKey := BundleKey("myprefix", "refs/heads/main", sha, true)
	parsed, ok = parseKey("myprefix", encKey)
	assert.True(t, ok)
	assert.True(t, parsed.encrypted)
}

func TestIsSyntheticStaleName(t *testing.T) {
	sha := "cccccccccccccccccccccccccccccccccccccccc"
	assert.True(t, IsSyntheticStaleName("refs/heads/main__"+sha))
	assert.False(t, IsSyntheticStaleName("refs/heads/main"))
	assert.False(t, IsSyntheticStaleName("refs/heads/weird__name"))
}
