package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// s3API is the subset of the S3 client the store uses.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Store persists objects in an S3 bucket, optionally under a key prefix.
type S3Store struct {
	// client is the S3 API surface.
	client s3API
	// bucket is the target bucket name.
	bucket string
	// prefix is prepended to every key, empty for bucket-rooted layouts.
	prefix string
	// baseURL is returned by PublicBaseURL.
	baseURL string
}

// deleteBatchSize is the S3 DeleteObjects request limit.
const deleteBatchSize = 1000

// NewS3Store creates an S3-backed store.
func NewS3Store(client *s3.Client, bucket, prefix, baseURL string) *S3Store {
	return newS3Store(client, bucket, prefix, baseURL)
}

// newS3Store accepts the narrow API interface so tests can stub the client.
func newS3Store(client s3API, bucket, prefix, baseURL string) *S3Store {
	return &S3Store{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		baseURL: baseURL,
	}
}

// objectKey prepends the configured prefix to a key.
func (s *S3Store) objectKey(key string) string {
	key = strings.TrimPrefix(key, "/")
	if s.prefix == "" {
		return key
	}

	return s.prefix + "/" + key
}

// storeKey strips the configured prefix from an object key.
func (s *S3Store) storeKey(objectKey string) string {
	if s.prefix == "" {
		return objectKey
	}

	return strings.TrimPrefix(objectKey, s.prefix+"/")
}

// Put stores data at key. A no-overwrite put uses a conditional write
// (If-None-Match: *) so the existence check and the write are one atomic
// operation on the S3 side.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, overwrite bool) (bool, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   bytes.NewReader(data),
	}
	if !overwrite {
		input.IfNoneMatch = aws.String("*")
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		if !overwrite && isKeyExists(err) {
			return false, nil
		}

		return false, fmt.Errorf("put s3 object %s: %w", key, err)
	}

	return true, nil
}

// isKeyExists reports whether a conditional put failed because the key is
// already present. S3 answers PreconditionFailed for an existing object and
// ConditionalRequestConflict when two conditional writes race.
func isKeyExists(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	default:
		return false
	}
}

// Get returns the bytes at key, or an empty slice when the object is absent.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return []byte{}, nil
		}

		return nil, fmt.Errorf("get s3 object %s: %w", key, err)
	}

	defer func() {
		_ = out.Body.Close()
	}()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3 object %s: %w", key, err)
	}

	return data, nil
}

// Has reports whether the object exists.
func (s *S3Store) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}

		return false, fmt.Errorf("head s3 object %s: %w", key, err)
	}

	return true, nil
}

// Delete removes the key and everything under the prefix in batches.
func (s *S3Store) Delete(ctx context.Context, keyPrefix string) error {
	keys, err := s.List(ctx, keyPrefix)
	if err != nil {
		return err
	}

	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(s.objectKey(key))})
		}

		_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("delete s3 objects under %s: %w", keyPrefix, err)
		}
	}

	return nil
}

// List returns all keys at or under the prefix, following pagination.
func (s *S3Store) List(ctx context.Context, keyPrefix string) ([]string, error) {
	var (
		keys              []string
		continuationToken *string
	)

	objectPrefix := s.objectKey(strings.TrimSuffix(keyPrefix, "/"))

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(objectPrefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, fmt.Errorf("list s3 objects under %s: %w", keyPrefix, err)
		}

		for _, object := range out.Contents {
			key := s.storeKey(aws.ToString(object.Key))
			// Plain prefix listing also matches sibling keys sharing the
			// string prefix; keep only true path descendants.
			if underPrefix(key, strings.TrimSuffix(keyPrefix, "/")) {
				keys = append(keys, key)
			}
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}

		continuationToken = out.NextContinuationToken
	}

	return keys, nil
}

// Size returns the object's byte size, 0 when absent.
func (s *S3Store) Size(ctx context.Context, key string) (int64, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return 0, nil
		}

		return 0, fmt.Errorf("head s3 object %s: %w", key, err)
	}

	return aws.ToInt64(out.ContentLength), nil
}

// PublicBaseURL returns the configured public origin.
func (s *S3Store) PublicBaseURL() string {
	return s.baseURL
}
