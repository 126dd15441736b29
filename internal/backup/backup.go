// Package backup archives the deployment data directory and ships the
// archive to S3.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v4"

	logx "matrixconsole/pkg/logx"
)

const archiveTimeout = 30 * time.Minute

// Config holds the backup destination settings.
type Config struct {
	DataDir  string
	TmpDir   string
	S3Bucket string
	S3Region string

	AccessKeyID     string
	SecretAccessKey string
}

// Uploader is the S3 surface Service needs. Satisfied by s3.Client.
type Uploader interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Service struct {
	cfg Config
	log logx.Logger

	uploader Uploader
	now      func() time.Time
}

func New(ctx context.Context, cfg Config, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{cfg: cfg, log: log, now: time.Now}
	if cfg.S3Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		s.uploader = s3.NewFromConfig(awsCfg)
	}
	return s, nil
}

// ArchiveName names a backup created at t.
func ArchiveName(t time.Time) string {
	return fmt.Sprintf("matrix-backup-%s.tar.gz", t.Format("20060102_150405"))
}

// Run creates the archive and, when a bucket is configured, uploads it
// and removes the local copy. Without a bucket the archive stays in the
// tmp dir. Returns the archive name.
func (s *Service) Run(ctx context.Context) (string, error) {
	name := ArchiveName(s.now())
	path := filepath.Join(s.cfg.TmpDir, name)

	if err := s.archive(ctx, path); err != nil {
		return "", err
	}
	s.log.Info("backup archive created", logx.String("archive", name))

	if s.uploader == nil {
		return name, nil
	}
	if err := s.upload(ctx, path, name); err != nil {
		return "", err
	}
	if err := os.Remove(path); err != nil {
		s.log.Warn("remove local archive", logx.Err(err))
	}
	return name, nil
}

// archive runs tar rather than walking the tree in-process to keep
// ownership and permission bits exactly as they are on disk.
func (s *Service) archive(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	parent := filepath.Dir(s.cfg.DataDir)
	base := filepath.Base(s.cfg.DataDir)

	cmd := exec.CommandContext(ctx, "tar", "-czf", path, "-C", parent, base)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(path)
		return fmt.Errorf("create archive: %w: %s", err, stderr.String())
	}
	return nil
}

func (s *Service) upload(ctx context.Context, path, key string) error {
	op := func() error {
		f, err := os.Open(path)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer f.Close()

		_, err = s.uploader.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.cfg.S3Bucket),
			Key:    aws.String(key),
			Body:   f,
		})
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	notify := func(err error, wait time.Duration) {
		s.log.Warn("s3 upload failed, retrying",
			logx.Err(err), logx.Duration("wait", wait))
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return fmt.Errorf("upload archive: %w", err)
	}
	s.log.Info("backup uploaded",
		logx.String("bucket", s.cfg.S3Bucket), logx.String("key", key))
	return nil
}
