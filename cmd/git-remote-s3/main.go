// SPDX-License-Identifier: Apache-2.0

// Command git-remote-s3 is the Git remote helper invoked by Git as
// `git-remote-s3 <remote-name> <url>` whenever a remote URL starts with
// `s3::` (spec §6). It wires the Object-Store Adapter, Git Subprocess
// Gateway, Encryption Gateway and Push/Fetch Pipeline together and drives
// them from the Remote Protocol Driver's stdin/stdout command loop.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/s3git/git-remote-s3/internal/config"
	"github.com/s3git/git-remote-s3/internal/encrypt"
	"github.com/s3git/git-remote-s3/internal/gitexec"
	"github.com/s3git/git-remote-s3/internal/objectstore"
	"github.com/s3git/git-remote-s3/internal/pipeline"
	"github.com/s3git/git-remote-s3/internal/protocol"
)

func run(ctx context.Context) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: %s <remote-name> <url>", os.Args[0])
	}
	remoteName := os.Args[1]
	url := os.Args[2]

	gitDir := os.Getenv("GIT_DIR")
	if gitDir == "" {
		return fmt.Errorf("GIT_DIR not set; git-remote-s3 must be invoked by git")
	}

	repo, err := gitexec.NewRepository(gitDir)
	if err != nil {
		return err
	}

	target, err := config.ParseURL(url)
	if err != nil {
		return err
	}
	storeCfg := config.ResolveStoreConfig(target)

	store, err := objectstore.NewS3Store(ctx, objectstore.Options{
		Bucket:          storeCfg.Bucket,
		Region:          storeCfg.Region,
		Endpoint:        storeCfg.Endpoint,
		AccessKeyID:     storeCfg.AccessKeyID,
		SecretAccessKey: storeCfg.SecretAccessKey,
		PathStyle:       storeCfg.PathStyle,
	})
	if err != nil {
		return fmt.Errorf("connecting to object store: %w", err)
	}

	policy, err := config.ResolveEncryptionPolicy(repo, remoteName)
	if err != nil {
		return err
	}

	// The gateway is constructed regardless of this collaborator's own
	// push-encryption policy: fetching a ref pushed encrypted by someone
	// else must work even when GIT_S3_ENCRYPT=0 locally. Only fail run()
	// outright when gpg is missing and this collaborator's policy actually
	// needs it for pushing; otherwise proceed with a nil gateway and let
	// Pipeline.Fetch/Push report a typed error if an encrypted bundle is
	// ever actually encountered.
	gateway, gwErr := encrypt.NewGateway("")
	if gwErr != nil {
		if policy.Enabled {
			return gwErr
		}
		slog.Warn("gpg not available; fetching encrypted bundles will fail", "err", gwErr)
		gateway = nil
	}

	pipe := &pipeline.Pipeline{
		Repo:    repo,
		Store:   store,
		Prefix:  storeCfg.Prefix,
		Gateway: gateway,
		Policy:  policy,
	}

	driver := protocol.NewDriver(os.Stdin, os.Stdout, repo, store, storeCfg.Prefix, pipe)
	return driver.Run(ctx)
}

func main() {
	if logPath := os.Getenv("GIT_S3_LOG_FILE"); logPath != "" {
		f, err := os.Create(logPath)
		if err == nil {
			defer f.Close()
			slog.SetDefault(slog.New(slog.NewTextHandler(f, nil)))
		}
	}

	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "git-remote-s3: %v\n", err)
		os.Exit(1)
	}
}
