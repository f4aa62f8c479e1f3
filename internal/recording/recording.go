// Package recording archives completed file downloads (spec §4.9) to an
// S3-compatible bucket. It is an additive convenience the base spec does
// not require: with no bucket configured, Archive is a no-op, mirroring
// the teacher's backup providers' "stub until configured" posture
// (internal/backup/providers/s3.go) but wired to a real uploader.
package recording

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mirrorx/endpoint/internal/logging"
)

var log = logging.L("recording")

// Config is the archive target. Bucket empty means recording is disabled.
type Config struct {
	Bucket          string
	Region          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // for S3-compatible non-AWS targets
}

// Archiver uploads completed downloads to the configured bucket.
type Archiver struct {
	cfg      Config
	uploader *manager.Uploader
}

// New builds an Archiver. If cfg.Bucket is empty, the returned Archiver's
// Archive method is a no-op and no AWS client is constructed.
func New(ctx context.Context, cfg Config) (*Archiver, error) {
	if cfg.Bucket == "" {
		return &Archiver{cfg: cfg}, nil
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
		return nil, fmt.Errorf("recording: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &Archiver{cfg: cfg, uploader: manager.NewUploader(client)}, nil
}

// Enabled reports whether a bucket was configured.
func (a *Archiver) Enabled() bool { return a.cfg.Bucket != "" }

// Archive uploads localPath under the configured prefix, keyed by the
// transfer id, once a DownloadFileRequest's stream has finished (spec
// §4.9). Failure here never aborts the underlying file transfer; callers
// should log and continue.
func (a *Archiver) Archive(ctx context.Context, transferID, localPath string) error {
	if !a.Enabled() {
		return nil
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("recording: open %q: %w", localPath, err)
	}
	defer f.Close()

	key := a.objectKey(transferID, localPath)
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("recording: upload %q: %w", key, err)
	}

	log.Info("archived completed download", "transferId", transferID, "bucket", a.cfg.Bucket, "key", key)
	return nil
}

func (a *Archiver) objectKey(transferID, localPath string) string {
	name := filepath.Base(localPath)
	stamp := time.Now().UTC().Format("20060102T150405Z")
	if a.cfg.Prefix == "" {
		return fmt.Sprintf("%s-%s-%s", stamp, transferID, name)
	}
	return fmt.Sprintf("%s/%s-%s-%s", a.cfg.Prefix, stamp, transferID, name)
}
