package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects in a map and honours simple byte ranges.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, input *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.StringValue(input.Key)] = data
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, input *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.StringValue(input.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "missing", nil)
	}
	if input.Range != nil {
		var from, to int
		if _, err := fmt.Sscanf(aws.StringValue(input.Range), "bytes=%d-%d", &from, &to); err != nil {
			return nil, err
		}
		data = data[from : to+1]
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2PagesWithContext(_ aws.Context, input *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	f.mu.Lock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.StringValue(input.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	page := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		page.Contents = append(page.Contents, &s3.Object{Key: aws.String(k), Size: aws.Int64(int64(len(f.objects[k])))})
	}
	f.mu.Unlock()
	fn(page, true)
	return nil
}

func (f *fakeS3) DeleteObjectsWithContext(_ aws.Context, input *s3.DeleteObjectsInput, _ ...request.Option) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, obj := range input.Delete.Objects {
		delete(f.objects, aws.StringValue(obj.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func TestS3FileSystem(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fs := newS3FileSystem(fake, "shuffle", 2)
	path := "root/app-1/0-0-0"

	require.NoError(t, fs.Create(ctx, path))
	require.NoError(t, fs.Append(ctx, path, 0, []byte("hello ")))
	require.NoError(t, fs.Append(ctx, path, 6, []byte("brave ")))
	require.NoError(t, fs.Append(ctx, path, 12, []byte("world")))
	assert.Equal(t, 3, fake.puts)

	tests := []struct {
		name      string
		off, n    int64
		want      string
		assertErr assert.ErrorAssertionFunc
	}{
		{name: "OneSegment", off: 6, n: 6, want: "brave ", assertErr: assert.NoError},
		{name: "AcrossSegments", off: 3, n: 12, want: "lo brave wor", assertErr: assert.NoError},
		{name: "Everything", off: 0, n: 17, want: "hello brave world", assertErr: assert.NoError},
		{name: "PastEnd", off: 12, n: 10, assertErr: func(t assert.TestingT, err error, _ ...interface{}) bool {
			return assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fs.ReadAt(ctx, path, tt.off, tt.n)
			tt.assertErr(t, err)
			if err == nil {
				assert.Equal(t, tt.want, string(got))
			}
		})
	}

	require.NoError(t, fs.WriteFile(ctx, IndexPath(path), EncodeChunkIndex([]int64{0, 17})))
	index, err := fs.ReadFile(ctx, IndexPath(path))
	require.NoError(t, err)
	offsets, err := DecodeChunkIndex(index)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 17}, offsets)

	require.NoError(t, fs.Remove(ctx, path))
	_, err = fs.ReadAt(ctx, path, 0, 1)
	assert.Error(t, err)
	// the index is a separate object
	_, err = fs.ReadFile(ctx, IndexPath(path))
	assert.NoError(t, err)
}
