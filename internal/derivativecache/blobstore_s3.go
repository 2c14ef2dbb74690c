package derivativecache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"
)

// S3BlobStore backs the persistent cache tier with an S3-compatible bucket
// (e.g. Cloudflare R2), generalized from the teacher's R2Client: here the
// object store holds derivative cache entries, not original uploads, under
// a single prefix per cache kind.
type S3BlobStore struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3Config carries the connection details for an S3-compatible endpoint.
type S3Config struct {
	Endpoint  string // e.g. https://<account>.r2.cloudflarestorage.com
	Region    string // "auto" for R2
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string // e.g. "thumbnails/" or "previews/"
}

// NewS3BlobStore constructs a blob store backed by the given S3-compatible
// bucket.
func NewS3BlobStore(cfg S3Config) *S3BlobStore {
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(cfg.Endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	})
	return &S3BlobStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}
}

func (s *S3BlobStore) key(id string) string {
	return s.prefix + id
}

func (s *S3BlobStore) Get(ctx context.Context, id string) ([]byte, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return nil, false, nil
		}
		return nil, false, nil // treat any fetch failure as a miss, per §4.1
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, nil
	}
	return data, true, nil
}

func (s *S3BlobStore) Put(ctx context.Context, id string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("put cache object: %w", err)
	}
	return nil
}

func (s *S3BlobStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return fmt.Errorf("delete cache object: %w", err)
	}
	return nil
}

// Clear is a best-effort bulk delete; used mainly in tests and by the
// coordinator's Destroy() memory-only clear path (which never calls it —
// §4.6 only clears memory tiers on Destroy). Listing + deleting every
// object under the prefix.
func (s *S3BlobStore) Clear(ctx context.Context) error {
	var continuationToken *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return fmt.Errorf("list cache objects: %w", err)
		}
		for _, obj := range out.Contents {
			if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			}); err != nil {
				return fmt.Errorf("delete cache object %s: %w", aws.ToString(obj.Key), err)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			return nil
		}
		continuationToken = out.NextContinuationToken
	}
}
