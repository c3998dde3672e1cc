// SPDX-License-Identifier: Apache-2.0

// Package refindex is the Ref Index (spec §4.2): it parses a bucket listing
// into {ref -> {sha -> stored-bundle-key}}, classifies the latest vs stale
// heads per ref, and answers ancestry queries on the Git Gateway's behalf.
package refindex

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	plainSuffix     = ".bundle"
	encryptedSuffix = ".bundle.enc"
	// StaleSeparator joins a ref name and a stale head's sha into the
	// synthetic advertised name, e.g. "refs/heads/main__<sha>" (spec §3).
	StaleSeparator = "__"
)

var shaPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// staleNamePattern matches the synthetic "<anything>__<40 hex>" shape a real
// ref name must never collide with (spec §9, second Open Question).
var staleNamePattern = regexp.MustCompile(`__[0-9a-f]{40}$`)

// IsSyntheticStaleName reports whether name has the shape of a stale-head
// advertisement ("<ref>__<sha>"). The driver never creates real refs of
// this shape (spec §3 invariant); this implementation additionally rejects
// any push destination matching it, resolving spec §9's second Open
// Question in favor of the stricter, collision-proof behavior.
func IsSyntheticStaleName(name string) bool {
	return staleNamePattern.MatchString(name)
}

// parsedKey is a bucket key broken into its three components.
type parsedKey struct {
	refName   string
	sha       string
	encrypted bool
}

// parseKey parses a key of the form "<prefix>/<ref_name>/<sha>.bundle[.enc]"
// relative to prefix. It returns ok=false (not an error) for a malformed
// stem, per spec §4.2 ("a key with a malformed stem is logged and skipped,
// not fatal").
func parseKey(prefix, key string) (parsedKey, bool) {
	rel := strings.TrimPrefix(key, prefix)
	rel = strings.TrimPrefix(rel, "/")

	var suffix string
	var encrypted bool
	switch {
	case strings.HasSuffix(rel, encryptedSuffix):
		suffix = encryptedSuffix
		encrypted = true
	case strings.HasSuffix(rel, plainSuffix):
		suffix = plainSuffix
	default:
		return parsedKey{}, false
	}

	body := strings.TrimSuffix(rel, suffix)
	idx := strings.LastIndex(body, "/")
	if idx < 0 {
		return parsedKey{}, false
	}

	refName := body[:idx]
	sha := body[idx+1:]
	if refName == "" || !shaPattern.MatchString(sha) {
		return parsedKey{}, false
	}

	return parsedKey{refName: refName, sha: sha, encrypted: encrypted}, true
}

// BundleKey returns the bucket key for a given ref/sha/encrypted triple,
// relative to prefix.
func BundleKey(prefix, refName, sha string, encrypted bool) string {
	suffix := plainSuffix
	if encrypted {
		suffix = encryptedSuffix
	}
	return fmt.Sprintf("%s/%s/%s%s", prefix, refName, sha, suffix)
}

// RefPrefix returns the listing prefix under which every bundle key for
// every ref lives.
func RefPrefix(prefix string) string {
	return prefix + "/refs/"
}

// HeadMarkerPrefix returns the listing prefix for the HEAD pointer marker.
func HeadMarkerPrefix(prefix string) string {
	return prefix + "/HEAD/"
}

// HeadMarkerKey returns the key used to record that HEAD points to target.
func HeadMarkerKey(prefix, target string) string {
	return HeadMarkerPrefix(prefix) + target
}
