package diag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Sink stores a named dump.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) error
}

// Sourcer returns page source; page.Browser satisfies it.
type Sourcer interface {
	Source(ctx context.Context, frame string) (string, error)
}

// Dumper writes page source snapshots to every configured sink.
type Dumper struct {
	sinks  []Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewDumper creates a Dumper. With no sinks, dumps are discarded.
func NewDumper(logger *slog.Logger, sinks ...Sink) *Dumper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dumper{sinks: sinks, logger: logger, now: time.Now}
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Name returns the dump name for reason at t, e.g.
// "20240502T150405.000Z-stalled.html".
func Name(t time.Time, reason string) string {
	return t.UTC().Format("20060102T150405.000Z") + "-" + unsafeChars.ReplaceAllString(reason, "_") + ".html"
}

// Dump stores html under a name derived from reason. Every sink is attempted;
// the returned error joins individual sink failures.
func (d *Dumper) Dump(ctx context.Context, reason, html string) (string, error) {
	name := Name(d.now(), reason)
	var errs []error
	for _, s := range d.sinks {
		if err := s.Put(ctx, name, []byte(html)); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		d.logger.Error("page dump failed", "name", name, "error", err)
		return name, err
	}
	d.logger.Info("page dumped", "name", name, "reason", reason, "bytes", len(html))
	return name, nil
}

// Capture reads the source of frame (empty for the top document) and dumps it.
func (d *Dumper) Capture(ctx context.Context, src Sourcer, frame, reason string) (string, error) {
	html, err := src.Source(ctx, frame)
	if err != nil && frame != "" {
		// The frame may be gone; fall back to the top document.
		html, err = src.Source(ctx, "")
	}
	if err != nil {
		d.logger.Warn("read page source failed", "reason", reason, "error", err)
		return "", fmt.Errorf("read page source: %w", err)
	}
	return d.Dump(ctx, reason, html)
}

// FileSink writes dumps into a directory.
type FileSink struct {
	Dir string
}

// Put implements Sink.
func (s FileSink) Put(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write dump: %w", err)
	}
	return nil
}

// S3Config configures an S3Sink. Endpoint selects an S3-compatible provider
// and enables path-style addressing.
type S3Config struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Sink uploads dumps to an S3 bucket.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Sink creates an S3Sink. Without static keys the default AWS credential
// chain is used.
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 sink: bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Sink{
		client: s3.NewFromConfig(awsCfg, s3opts...),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Put implements Sink.
func (s *S3Sink) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.prefix + name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/html; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}
