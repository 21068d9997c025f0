// Package sink provides pluggable destinations for decoded transport-stream
// output: a plain file, or an S3 object streamed via a pipe. Every sink
// satisfies io.WriteCloser so internal/tsprocess's io.Writer contract needs
// no change to target either backend.
package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jmylchreest/dvrtsdecode/internal/config"
)

// New opens a sink for the given destination descriptor, honouring cfg.Type.
// dest is a local path for the file sink, or an object key for the S3 sink.
func New(ctx context.Context, cfg config.SinkConfig, dest string) (io.WriteCloser, error) {
	switch cfg.Type {
	case "file":
		return newFileSink(dest)
	case "s3":
		return newS3Sink(ctx, cfg.S3, dest)
	default:
		return nil, fmt.Errorf("unsupported sink type: %s", cfg.Type)
	}
}

// Descriptor renders a human-readable identifier for a sink destination,
// suitable for the decode-job history ledger.
func Descriptor(cfg config.SinkConfig, dest string) string {
	switch cfg.Type {
	case "s3":
		return fmt.Sprintf("s3://%s/%s%s", cfg.S3.Bucket, cfg.S3.Prefix, dest)
	default:
		return "file://" + dest
	}
}

type fileSink struct {
	*os.File
}

func newFileSink(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating sink directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating sink file %s: %w", path, err)
	}
	return &fileSink{File: f}, nil
}

// s3Sink streams writes into an io.Pipe whose read end is the body of an
// s3 PutObject call running in its own goroutine, so the decode pipeline
// never buffers the whole output in memory.
type s3Sink struct {
	pw       *io.PipeWriter
	uploadCh chan error
}

func newS3Sink(ctx context.Context, cfg config.S3SinkConfig, key string) (io.WriteCloser, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)

	pr, pw := io.Pipe()
	sink := &s3Sink{pw: pw, uploadCh: make(chan error, 1)}

	go func() {
		_, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(cfg.Bucket),
			Key:    aws.String(cfg.Prefix + key),
			Body:   pr,
		})
		sink.uploadCh <- err
	}()

	return sink, nil
}

func (s *s3Sink) Write(p []byte) (int, error) {
	return s.pw.Write(p)
}

func (s *s3Sink) Close() error {
	if err := s.pw.Close(); err != nil {
		return err
	}
	return <-s.uploadCh
}
