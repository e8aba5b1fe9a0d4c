package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"golang.org/x/sync/semaphore"

	"github.com/pecigonzalo/remote-shuffle/internal/shuffle"
)

// s3API is the part of the S3 client the filesystem uses.
type s3API interface {
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
	ListObjectsV2PagesWithContext(ctx aws.Context, input *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, opts ...request.Option) error
	DeleteObjectsWithContext(ctx aws.Context, input *s3.DeleteObjectsInput, opts ...request.Option) (*s3.DeleteObjectsOutput, error)
}

var _ FileSystem = (*S3FileSystem)(nil)

// S3FileSystem keeps a file as a sequence of segment objects, one per append,
// named after their starting offset. Small files such as the chunk index are
// plain objects.
type S3FileSystem struct {
	client  s3API
	bucket  string
	uploads *semaphore.Weighted
}

func NewS3FileSystem(config shuffle.DFSConfig) (*S3FileSystem, error) {
	awsConfig := aws.NewConfig().
		WithRegion(config.Region).
		WithS3ForcePathStyle(config.ForcePathStyle)
	if config.Endpoint != "" {
		awsConfig = awsConfig.WithEndpoint(config.Endpoint)
	}
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return newS3FileSystem(s3.New(sess), config.Bucket, config.UploadConcurrency), nil
}

func newS3FileSystem(client s3API, bucket string, uploadConcurrency int64) *S3FileSystem {
	if uploadConcurrency <= 0 {
		uploadConcurrency = 1
	}
	return &S3FileSystem{
		client:  client,
		bucket:  bucket,
		uploads: semaphore.NewWeighted(uploadConcurrency),
	}
}

func segmentPrefix(path string) string {
	return path + ".segments/"
}

func segmentKey(path string, offset int64) string {
	return fmt.Sprintf("%s%020d", segmentPrefix(path), offset)
}

type segment struct {
	key    string
	offset int64
	size   int64
}

func (s *S3FileSystem) listSegments(ctx context.Context, path string) ([]segment, error) {
	prefix := segmentPrefix(path)
	var segments []segment
	var parseErr error
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			offset, err := strconv.ParseInt(strings.TrimPrefix(key, prefix), 10, 64)
			if err != nil {
				parseErr = fmt.Errorf("unexpected segment %s: %w", key, err)
				return false
			}
			segments = append(segments, segment{key: key, offset: offset, size: aws.Int64Value(obj.Size)})
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if parseErr != nil {
		return nil, parseErr
	}
	sort.Slice(segments, func(i, j int) bool {
		return segments[i].offset < segments[j].offset
	})
	return segments, nil
}

func (s *S3FileSystem) Create(ctx context.Context, path string) error {
	return s.Remove(ctx, path)
}

func (s *S3FileSystem) Append(ctx context.Context, path string, offset int64, data []byte) error {
	if err := s.uploads.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.uploads.Release(1)
	return s.put(ctx, segmentKey(path, offset), data)
}

func (s *S3FileSystem) put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *S3FileSystem) get(ctx context.Context, key string, byteRange *string) ([]byte, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Range:  byteRange,
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3FileSystem) ReadAt(ctx context.Context, path string, offset, n int64) ([]byte, error) {
	segments, err := s.listSegments(ctx, path)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, n)
	end := offset + n
	for _, seg := range segments {
		segEnd := seg.offset + seg.size
		if segEnd <= offset || seg.offset >= end {
			continue
		}
		from := max(offset, seg.offset) - seg.offset
		to := min(end, segEnd) - seg.offset
		data, err := s.get(ctx, seg.key, aws.String(fmt.Sprintf("bytes=%d-%d", from, to-1)))
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
	}
	if int64(len(out)) != n {
		return nil, fmt.Errorf("read %d bytes at %d from %s: got %d: %w", n, offset, path, len(out), io.ErrUnexpectedEOF)
	}
	return out, nil
}

func (s *S3FileSystem) WriteFile(ctx context.Context, path string, data []byte) error {
	return s.put(ctx, path, data)
}

func (s *S3FileSystem) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return s.get(ctx, path, nil)
}

func (s *S3FileSystem) Remove(ctx context.Context, path string) error {
	segments, err := s.listSegments(ctx, path)
	if err != nil {
		return err
	}
	objects := []*s3.ObjectIdentifier{{Key: aws.String(path)}}
	for _, seg := range segments {
		objects = append(objects, &s3.ObjectIdentifier{Key: aws.String(seg.key)})
	}
	// DeleteObjects takes at most 1000 keys per call
	for len(objects) > 0 {
		batch := objects[:min(len(objects), 1000)]
		objects = objects[len(batch):]
		out, err := s.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3.Delete{Objects: batch, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("delete %s: %w", path, err)
		}
		for _, e := range out.Errors {
			if aws.StringValue(e.Code) != s3.ErrCodeNoSuchKey {
				return awserr.New(aws.StringValue(e.Code), aws.StringValue(e.Message), nil)
			}
		}
	}
	return nil
}
