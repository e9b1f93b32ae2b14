package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client is the subset of the S3 API used by [S3Store]. The [s3.Client]
// type satisfies it; tests substitute an in-memory fake.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Store is a FileStore on Amazon S3 or an S3-compatible object store
// (MinIO, R2).
//
// Paths map to object keys below an optional prefix, so images/a.fimg under
// prefix "prints" becomes the key prints/images/a.fimg. The client must
// already carry credentials, region and endpoint; [Open] builds one from
// the shared AWS configuration.
type S3Store struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3 returns a store on bucket.
//
// Any [S3Client] is accepted, typically an [s3.Client]. Prefix is prepended
// to every object key; pass "" for none.
func NewS3(client S3Client, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// key maps a storage path to its object key.
func (s *S3Store) key(p string) string {
	if s.prefix == "" {
		return p
	}
	return s.prefix + "/" + p
}

// Read opens the object via GetObject. A missing key yields an error
// wrapping os.ErrNotExist.
func (s *S3Store) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("storage: read s3://%s/%s: %w", s.bucket, s.key(p), os.ErrNotExist)
		}
		return nil, fmt.Errorf("storage: read s3://%s/%s: %w", s.bucket, s.key(p), err)
	}
	return out.Body, nil
}

// Write returns a writer streaming to PutObject through an [io.Pipe].
//
// The upload runs in a background goroutine reading the pipe. The caller
// must Close the writer to finish the object; Close blocks until the upload
// returns and reports its error.
func (s *S3Store) Write(ctx context.Context, p string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	w := &s3Writer{pw: pw, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(s.key(p)),
			Body:        pr,
			ContentType: aws.String("application/octet-stream"),
		})
		if err != nil {
			w.err = fmt.Errorf("storage: write s3://%s/%s: %w", s.bucket, s.key(p), err)
		}
		pr.CloseWithError(w.err)
	}()
	return w, nil
}

// Delete removes the object. Deleting a missing key is not an error.
func (s *S3Store) Delete(ctx context.Context, p string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("storage: delete s3://%s/%s: %w", s.bucket, s.key(p), err)
	}
	return nil
}

// Exists reports whether the object is present, using HeadObject.
func (s *S3Store) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("storage: head s3://%s/%s: %w", s.bucket, s.key(p), err)
	}
}

// s3Writer feeds the upload goroutine. err is written by that goroutine
// before done is closed.
type s3Writer struct {
	pw   *io.PipeWriter
	done chan struct{}
	err  error
	once sync.Once
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

// Close ends the body and waits for the upload. It is safe to call more
// than once.
func (w *s3Writer) Close() error {
	w.once.Do(func() {
		w.pw.Close()
		<-w.done
	})
	return w.err
}

// isNotFound reports whether err is an S3 missing-object error. GetObject
// reports NoSuchKey; HeadObject has no body and reports NotFound.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NotFound", "NoSuchKey":
		return true
	}
	return false
}

var _ FileStore = (*S3Store)(nil)
