// Package s3 provides the S3-compatible archive driver (AWS S3 or MinIO).
// One bucket, snapshot keys mapped to object keys directly.
package s3

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"tripcore/internal/archive"
)

// Store archives snapshots in a single S3 bucket.
type Store struct {
	client *awss3.Client
	bucket string
}

// Config holds explicit construction parameters, mostly for tests; production
// deployments configure through the environment.
type Config struct {
	Region    string
	Bucket    string
	Endpoint  string // optional, enables MinIO-style custom endpoints
	PathStyle bool
}

// New creates an S3 archive from Config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// OpenFromEnv constructs an S3 archive from process environment:
//
//	TRIPCORE_ARCHIVE_S3_BUCKET=<bucket> (required)
//	TRIPCORE_ARCHIVE_S3_REGION=<region> (default us-east-1)
//	TRIPCORE_ARCHIVE_S3_ENDPOINT=<url> (optional, for MinIO)
//	TRIPCORE_ARCHIVE_S3_PATH_STYLE=true|false (default false)
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)
func OpenFromEnv(ctx context.Context) (*Store, error) {
	bucket := os.Getenv("TRIPCORE_ARCHIVE_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("TRIPCORE_ARCHIVE_S3_BUCKET required for s3 driver")
	}
	return New(ctx, Config{
		Bucket:    bucket,
		Region:    os.Getenv("TRIPCORE_ARCHIVE_S3_REGION"),
		Endpoint:  os.Getenv("TRIPCORE_ARCHIVE_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("TRIPCORE_ARCHIVE_S3_PATH_STYLE"), "true"),
	})
}

func (s *Store) Driver() string { return "s3" }

func (s *Store) Put(ctx context.Context, key string, r io.Reader) (archive.Info, error) {
	// Create-only is emulated via Head; S3 Put would silently overwrite.
	if _, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{Bucket: &s.bucket, Key: &key}); err == nil {
		return archive.Info{}, archive.ErrKeyExists
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return archive.Info{}, err
	}
	sum := sha256.Sum256(data)
	contentType := "application/json"
	input := &awss3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return archive.Info{}, err
	}
	return archive.Info{
		Key:         key,
		Size:        int64(len(data)),
		Checksum:    hex.EncodeToString(sum[:]),
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, archive.Info, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return nil, archive.Info{}, mapNotFound(err)
	}
	var size int64
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return out.Body, s.objectInfo(key, size, out.ContentType, out.ETag, out.LastModified), nil
}

func (s *Store) Head(ctx context.Context, key string) (archive.Info, error) {
	out, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return archive.Info{}, mapNotFound(err)
	}
	var size int64
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return s.objectInfo(key, size, out.ContentType, out.ETag, out.LastModified), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{Bucket: &s.bucket, Key: &key})
	return err
}

func (s *Store) List(ctx context.Context, prefix string) ([]archive.Info, error) {
	var infos []archive.Info
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range out.Contents {
			var size int64
			if obj.Size != nil {
				size = *obj.Size
			}
			infos = append(infos, archive.Info{
				Key:       aws.ToString(obj.Key),
				Size:      size,
				CreatedAt: aws.ToTime(obj.LastModified),
			})
		}
		if out.IsTruncated != nil && *out.IsTruncated && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// objectInfo maps S3 response headers onto Info. The checksum here is the
// object ETag, best effort; authoritative checksums live in the catalog,
// computed at Put time.
func (s *Store) objectInfo(key string, size int64, contentType, etag *string, lastModified *time.Time) archive.Info {
	info := archive.Info{Key: key, Size: size, CreatedAt: time.Now().UTC()}
	if contentType != nil {
		info.ContentType = *contentType
	}
	if etag != nil {
		info.Checksum = strings.Trim(*etag, "\"")
	}
	if lastModified != nil {
		info.CreatedAt = lastModified.UTC()
	}
	return info
}

func mapNotFound(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "StatusCode: 404") || strings.Contains(msg, "NotFound") || strings.Contains(msg, "NoSuchKey") {
		return archive.ErrNotFound
	}
	return err
}
