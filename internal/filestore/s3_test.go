package filestore

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory stand-in for the S3 API honoring conditional puts.
type fakeS3 struct {
	objects map[string][]byte
	// conditionalCode is the error code returned for a failed conditional
	// put; empty means PreconditionFailed.
	conditionalCode string
}

// conditionalError mimics the service errors for a failed conditional put.
type conditionalError struct{ code string }

func (e conditionalError) Error() string                 { return e.code }
func (e conditionalError) ErrorCode() string             { return e.code }
func (e conditionalError) ErrorMessage() string          { return "conditional request failed" }
func (e conditionalError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}

	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)
	if aws.ToString(in.IfNoneMatch) == "*" {
		if _, exists := f.objects[key]; exists {
			code := f.conditionalCode
			if code == "" {
				code = "PreconditionFailed"
			}

			return nil, conditionalError{code: code}
		}
	}

	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.objects[key] = data

	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}

	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}

	return out, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	for _, object := range in.Delete.Objects {
		delete(f.objects, aws.ToString(object.Key))
	}

	return &s3.DeleteObjectsOutput{}, nil
}

// TestS3Store runs the store contract against the stubbed client.
func TestS3Store(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newS3Store(&fakeS3{objects: make(map[string][]byte)}, "releases", "cdn", "https://downloads.example.com")

	// Conditional put semantics.
	wrote, err := store.Put(ctx, "app/.lock", []byte("token-a"), false)
	require.NoError(t, err)
	require.True(t, wrote)

	wrote, err = store.Put(ctx, "app/.lock", []byte("token-b"), false)
	require.NoError(t, err)
	require.False(t, wrote)

	data, err := store.Get(ctx, "app/.lock")
	require.NoError(t, err)
	require.Equal(t, []byte("token-a"), data)

	// Absence contract.
	data, err = store.Get(ctx, "app/none")
	require.NoError(t, err)
	require.Empty(t, data)

	size, err := store.Size(ctx, "app/none")
	require.NoError(t, err)
	require.Zero(t, size)

	// Prefix listing strips the bucket prefix and excludes sibling keys.
	_, err = store.Put(ctx, "app/stable/win32/x64/App.exe", []byte("exe"), false)
	require.NoError(t, err)
	_, err = store.Put(ctx, "app/stable/win32-old/x64/App.exe", []byte("exe"), false)
	require.NoError(t, err)

	keys, err := store.List(ctx, "app/stable/win32")
	require.NoError(t, err)
	require.Equal(t, []string{"app/stable/win32/x64/App.exe"}, keys)

	require.NoError(t, store.Delete(ctx, "app/stable/win32"))

	has, err := store.Has(ctx, "app/stable/win32/x64/App.exe")
	require.NoError(t, err)
	require.False(t, has)

	has, err = store.Has(ctx, "app/stable/win32-old/x64/App.exe")
	require.NoError(t, err)
	require.True(t, has)
}

// TestS3ConditionalPutConflict verifies the 409 conflict two racing
// conditional writes can produce is treated as "key exists", not an error.
func TestS3ConditionalPutConflict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := &fakeS3{
		objects:         make(map[string][]byte),
		conditionalCode: "ConditionalRequestConflict",
	}
	store := newS3Store(fake, "releases", "cdn", "https://downloads.example.com")

	wrote, err := store.Put(ctx, "app/.lock", []byte("token-a"), false)
	require.NoError(t, err)
	require.True(t, wrote)

	wrote, err = store.Put(ctx, "app/.lock", []byte("token-b"), false)
	require.NoError(t, err)
	require.False(t, wrote)

	data, err := store.Get(ctx, "app/.lock")
	require.NoError(t, err)
	require.Equal(t, []byte("token-a"), data)
}
