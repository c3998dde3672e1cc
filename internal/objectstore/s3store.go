// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithy "github.com/aws/smithy-go"
)

// DefaultRegion is used when Options.Region is empty, per spec §4.4.
const DefaultRegion = "us-east-1"

// Options configures the S3-backed Store, mirroring the config table in
// spec §4.4.
type Options struct {
	// Bucket is the S3 bucket name.
	Bucket string
	// Region selects the signing region; default DefaultRegion.
	Region string
	// Endpoint overrides the service endpoint URL (on-prem / MinIO).
	Endpoint string
	// AccessKeyID and SecretAccessKey are static credentials; when either
	// is empty, the client's standard credential chain is used instead.
	AccessKeyID     string
	SecretAccessKey string
	// PathStyle forces path-style addressing. Implied true when Endpoint
	// is set.
	PathStyle bool
}

// S3Store is the Store implementation backed by an S3-compatible endpoint.
// Client construction is grounded on the yesiscan project's s3.Store
// helper (config.LoadDefaultConfig + s3.NewFromConfig), extended here with
// a list paginator and get/delete, which that write-only helper never
// needed.
type S3Store struct {
	client *s3.Client
	bucket string
}

// resolveRegion applies the DefaultRegion fallback documented in spec §4.4.
func resolveRegion(opts Options) string {
	if opts.Region == "" {
		return DefaultRegion
	}
	return opts.Region
}

// resolvePathStyle implements spec §4.4's "path_style ... implied true when
// an endpoint override is set".
func resolvePathStyle(opts Options) bool {
	return opts.PathStyle || opts.Endpoint != ""
}

// NewS3Store builds an S3Store from the given options.
func NewS3Store(ctx context.Context, opts Options) (*S3Store, error) {
	region := resolveRegion(opts)

	var loadOpts []func(*awsconfig.LoadOptions) error
	loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	pathStyle := resolvePathStyle(opts)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = pathStyle
	})

	return &S3Store{client: client, bucket: opts.Bucket}, nil
}

// List paginates transparently via s3.NewListObjectsV2Paginator and invokes
// fn once per key under prefix.
func (s *S3Store) List(ctx context.Context, prefix string, fn func(ObjectInfo) error) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("listing %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			info := ObjectInfo{Key: aws.ToString(obj.Key)}
			if obj.Size != nil {
				info.Size = *obj.Size
			}
			if err := fn(info); err != nil {
				return err
			}
		}
	}

	return nil
}

// Get downloads key to outPath atomically: it writes to a sibling temp file
// and renames it into place on success.
func (s *S3Store) Get(ctx context.Context, key, outPath string) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		var apiErr smithy.APIError
		if errors.As(err, &noSuchKey) || (errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound") {
			return ErrNotFound
		}
		return fmt.Errorf("getting %q: %w", key, err)
	}
	defer out.Body.Close() //nolint:errcheck

	tmp, err := os.CreateTemp(filepath.Dir(outPath), "objectstore-get-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %q: %w", key, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	if _, err := io.Copy(tmp, out.Body); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("downloading %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file for %q: %w", key, err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("renaming into place for %q: %w", key, err)
	}
	return nil
}

// Put uploads the contents of inPath to key, overwriting any prior object.
func (s *S3Store) Put(ctx context.Context, key, inPath string) error {
	f, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("opening %q for upload: %w", inPath, err)
	}
	defer f.Close() //nolint:errcheck

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("putting %q: %w", key, err)
	}
	return nil
}

// Delete removes key. A missing key is not an error.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}
