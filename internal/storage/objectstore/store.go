// Package objectstore implements a provenance-keyed storage.ProvenanceReader
// and storage.ProvenanceWriter over minio-go/v7, grounded on the teacher's
// internal/infra/storage/minio.go.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bryanwahyu/scanorch/internal/provenance"
	"github.com/bryanwahyu/scanorch/internal/scanner"
)

type Store struct {
	client *minio.Client
	bucket string
	region string
}

// New connects to an S3-compatible endpoint and ensures the target bucket
// exists, mirroring the teacher's storage.New.
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &Store{client: cli, bucket: bucket, region: region}, nil
}

// objectKey encodes a cache key into an object-safe key. Cache keys carry
// '|' and ':' which are legal in S3 keys but awkward to browse, so slashes
// stand in for the pipe separators to give a directory-like listing.
func objectKey(cacheKey string) string {
	segments := strings.Split(cacheKey, "|")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "scan-results/" + strings.Join(segments, "/")
}

type manifest struct {
	Results []scanner.ScanResult `json:"results"`
}

// Read implements storage.ProvenanceReader. A missing object is a cache
// miss, not an error.
func (s *Store) Read(ctx context.Context, known provenance.Provenance, criteria scanner.ScannerCriteria) ([]scanner.ScanResult, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(known.CacheKey()), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read object: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		if len(data) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("decode manifest for %s: %w", known.CacheKey(), err)
	}

	var out []scanner.ScanResult
	for _, r := range m.Results {
		if criteria.Satisfies(r.Scanner) {
			out = append(out, scanner.ScanResult{Provenance: known, Scanner: r.Scanner, Summary: r.Summary})
		}
	}
	return out, nil
}

func isNoSuchKey(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey"
	}
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

// Write implements storage.ProvenanceWriter. It merges into the existing
// manifest for the provenance, replacing any prior entry from the same
// scanner name+version, so repeated writes stay idempotent.
func (s *Store) Write(ctx context.Context, known provenance.Provenance, result scanner.ScanResult) error {
	existing, err := s.readManifest(ctx, known)
	if err != nil {
		return err
	}

	merged := make([]scanner.ScanResult, 0, len(existing)+1)
	for _, r := range existing {
		if r.Scanner.Name == result.Scanner.Name && r.Scanner.Version == result.Scanner.Version {
			continue
		}
		merged = append(merged, r)
	}
	merged = append(merged, result)

	data, err := json.Marshal(manifest{Results: merged})
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, objectKey(known.CacheKey()), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

func (s *Store) readManifest(ctx context.Context, known provenance.Provenance) ([]scanner.ScanResult, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(known.CacheKey()), minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest for %s: %w", known.CacheKey(), err)
	}
	return m.Results, nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
