// SPDX-License-Identifier: Apache-2.0

// Package pipeline is the Push/Fetch Pipeline (spec §4.3): it orchestrates a
// transfer end to end — packaging via the Git Gateway, optional encryption,
// object-store transfer, fast-forward enforcement, and pruning of
// superseded heads — the way the teacher's higher-level RSL/policy code
// orchestrates gitinterface + signerverifier calls without owning either.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/s3git/git-remote-s3/internal/config"
	"github.com/s3git/git-remote-s3/internal/encrypt"
	"github.com/s3git/git-remote-s3/internal/gitexec"
	"github.com/s3git/git-remote-s3/internal/objectstore"
	"github.com/s3git/git-remote-s3/internal/refindex"
)

var (
	ErrBundleMissing          = errors.New("cannot find bundle")
	ErrNonFastForward         = errors.New("non-fast-forward")
	ErrBundleCreateFailed     = errors.New("bundle create failed")
	ErrBundleUnbundleFailed   = errors.New("bundle unbundle failed")
	ErrEncryptFailed          = errors.New("encrypt failed")
	ErrDecryptFailed          = errors.New("decrypt failed")
	ErrUploadFailed           = errors.New("upload failed")
	ErrDownloadFailed         = errors.New("download failed")
	ErrSyntheticDestination   = errors.New("destination looks like a synthetic stale-head ref name")
)

// Pipeline wires together every collaborator a push or fetch needs.
type Pipeline struct {
	Repo     *gitexec.Repository
	Store    objectstore.Store
	Prefix   string
	Gateway  *encrypt.Gateway
	Policy   config.EncryptionPolicy
	TempDir  string
}

// Fetch executes spec §4.3's fetch algorithm for one (sha, refName) pair.
func (p *Pipeline) Fetch(ctx context.Context, idx *refindex.Index, sha gitexec.CommitID, refName string) error {
	head, ok := findHead(idx, refName, sha)
	if !ok {
		return fmt.Errorf("%w for %s", ErrBundleMissing, sha.String())
	}

	downloaded, err := os.CreateTemp(p.tempDir(), "fetch-*.download")
	if err != nil {
		return err
	}
	downloadedPath := downloaded.Name()
	downloaded.Close()
	defer os.Remove(downloadedPath)

	if err := p.Store.Get(ctx, head.Key, downloadedPath); err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	bundlePath := downloadedPath
	if head.Encrypted {
		// Decryption is unconditional on the downloaded key's .enc suffix
		// (spec §4.3), regardless of whether this collaborator's own push
		// policy has encryption enabled: a bundle pushed .enc by someone
		// else must still be fetchable.
		if p.Gateway == nil {
			return fmt.Errorf("%w: %v", ErrDecryptFailed, encrypt.ErrGPGNotFound)
		}

		decrypted, err := os.CreateTemp(p.tempDir(), "fetch-*.bundle")
		if err != nil {
			return err
		}
		decryptedPath := decrypted.Name()
		decrypted.Close()
		defer os.Remove(decryptedPath)

		if err := p.Gateway.Decrypt(downloadedPath, decryptedPath); err != nil {
			return fmt.Errorf("%w: %v", ErrDecryptFailed, err)
		}
		bundlePath = decryptedPath
	}

	if err := p.Repo.BundleUnbundle(bundlePath); err != nil {
		return fmt.Errorf("%w: %v", ErrBundleUnbundleFailed, err)
	}
	return nil
}

// PushResult is one push batch entry's outcome: either ok or a reason.
type PushResult struct {
	Dst    string
	OK     bool
	Reason string
}

// Push executes spec §4.3's push algorithm for one "[+]<src>:<dst>" entry.
func (p *Pipeline) Push(ctx context.Context, idx *refindex.Index, src, dst string, force, dryRun bool) PushResult {
	if refindex.IsSyntheticStaleName(dst) {
		return PushResult{Dst: dst, Reason: ErrSyntheticDestination.Error()}
	}

	if src == "" {
		return p.pushDeletion(ctx, dst)
	}

	shaNew, err := p.Repo.RevParse(src)
	if err != nil {
		return PushResult{Dst: dst, Reason: err.Error()}
	}

	heads := idx.Heads(dst)
	latest, hasLatest := idx.Latest(dst)

	if !force && len(heads) > 0 {
		if hasLatest && latest.SHA.String() == shaNew.String() {
			return PushResult{Dst: dst, OK: true}
		}
		if hasLatest {
			isAncestor, err := idx.IsAncestor(latest.SHA, shaNew)
			if err != nil {
				return PushResult{Dst: dst, Reason: err.Error()}
			}
			if !isAncestor {
				return PushResult{Dst: dst, Reason: ErrNonFastForward.Error()}
			}
		}
	}

	if dryRun {
		return PushResult{Dst: dst, OK: true}
	}

	bundlePath, cleanup, err := p.packageBundle(shaNew)
	if err != nil {
		return PushResult{Dst: dst, Reason: err.Error()}
	}
	defer cleanup()

	uploadPath := bundlePath
	encrypted := false
	if p.Policy.Enabled {
		encPath, encCleanup, err := p.encryptBundle(bundlePath)
		if err != nil {
			return PushResult{Dst: dst, Reason: err.Error()}
		}
		defer encCleanup()
		uploadPath = encPath
		encrypted = true
	}

	key := refindex.BundleKey(p.Prefix, dst, shaNew.String(), encrypted)
	if err := p.Store.Put(ctx, key, uploadPath); err != nil {
		return PushResult{Dst: dst, Reason: fmt.Sprintf("%v: %v", ErrUploadFailed, err)}
	}

	p.prune(ctx, idx, dst, heads, shaNew)

	return PushResult{Dst: dst, OK: true}
}

func (p *Pipeline) pushDeletion(ctx context.Context, dst string) PushResult {
	heads := make([]refindex.Head, 0)
	// The Ref Index is not reliably built for every destination the driver
	// might delete (e.g. a destination never resolved by Build's one
	// listing pass), so deletion relists directly under the destination.
	prefix := fmt.Sprintf("%s/%s/", p.Prefix, dst)
	if err := p.Store.List(ctx, prefix, func(obj objectstore.ObjectInfo) error {
		heads = append(heads, refindex.Head{Key: obj.Key})
		return nil
	}); err != nil {
		return PushResult{Dst: dst, Reason: err.Error()}
	}

	for _, h := range heads {
		if err := p.Store.Delete(ctx, h.Key); err != nil {
			return PushResult{Dst: dst, Reason: fmt.Sprintf("%v: %v", ErrUploadFailed, err)}
		}
	}
	return PushResult{Dst: dst, OK: true}
}

func (p *Pipeline) packageBundle(sha gitexec.CommitID) (string, func(), error) {
	f, err := os.CreateTemp(p.tempDir(), "push-*.bundle")
	if err != nil {
		return "", func() {}, err
	}
	path := f.Name()
	f.Close()
	cleanup := func() { os.Remove(path) }

	if err := p.Repo.BundleCreate(path, sha); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("%w: %v", ErrBundleCreateFailed, err)
	}
	return path, cleanup, nil
}

func (p *Pipeline) encryptBundle(bundlePath string) (string, func(), error) {
	f, err := os.CreateTemp(p.tempDir(), "push-*.bundle.enc")
	if err != nil {
		return "", func() {}, err
	}
	path := f.Name()
	f.Close()
	cleanup := func() { os.Remove(path) }

	if err := p.Gateway.Encrypt(bundlePath, path, p.Policy.Recipients); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("%w: %v", ErrEncryptFailed, err)
	}
	return path, cleanup, nil
}

// prune deletes every prior head that is now an ancestor of shaNew (spec
// §4.3 step 7). Failures are best-effort: an orphaned prior head is simply
// a stale head surfaced on the next list, never data loss.
func (p *Pipeline) prune(ctx context.Context, idx *refindex.Index, refName string, heads []refindex.Head, shaNew gitexec.CommitID) {
	for _, h := range heads {
		if h.SHA.String() == shaNew.String() {
			continue
		}
		isAncestor, err := idx.IsAncestor(h.SHA, shaNew)
		if err != nil || !isAncestor {
			continue
		}
		for _, encrypted := range []bool{false, true} {
			key := refindex.BundleKey(p.Prefix, refName, h.SHA.String(), encrypted)
			_ = p.Store.Delete(ctx, key)
		}
	}
}

func findHead(idx *refindex.Index, refName string, sha gitexec.CommitID) (refindex.Head, bool) {
	for _, h := range idx.Heads(refName) {
		if h.SHA.String() == sha.String() {
			return h, true
		}
	}
	return refindex.Head{}, false
}

func (p *Pipeline) tempDir() string {
	if p.TempDir != "" {
		return p.TempDir
	}
	return os.TempDir()
}
