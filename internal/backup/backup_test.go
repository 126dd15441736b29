package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	logx "matrixconsole/pkg/logx"
)

type fakeUploader struct {
	calls    int
	failures int
	lastKey  string
}

func (f *fakeUploader) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient s3 error")
	}
	f.lastKey = *in.Key
	return &s3.PutObjectOutput{}, nil
}

func TestArchiveName(t *testing.T) {
	t.Parallel()
	at := time.Date(2024, 3, 15, 4, 5, 6, 0, time.UTC)
	require.Equal(t, "matrix-backup-20240315_040506.tar.gz", ArchiveName(at))
}

func newTestService(t *testing.T, up Uploader) *Service {
	t.Helper()
	dataDir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "db.sqlite"), []byte("x"), 0o600))

	s := &Service{
		cfg: Config{
			DataDir:  dataDir,
			TmpDir:   t.TempDir(),
			S3Bucket: "backups",
		},
		log:      logx.Nop(),
		uploader: up,
		now:      func() time.Time { return time.Date(2024, 3, 15, 4, 5, 6, 0, time.UTC) },
	}
	return s
}

func TestRunUploadsAndRemovesLocal(t *testing.T) {
	t.Parallel()
	up := &fakeUploader{}
	s := newTestService(t, up)

	name, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "matrix-backup-20240315_040506.tar.gz", name)
	require.Equal(t, name, up.lastKey)

	_, err = os.Stat(filepath.Join(s.cfg.TmpDir, name))
	require.True(t, os.IsNotExist(err), "local archive should be removed after upload")
}

func TestRunRetriesTransientUploadFailures(t *testing.T) {
	t.Parallel()
	up := &fakeUploader{failures: 2}
	s := newTestService(t, up)

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, up.calls)
}

func TestRunKeepsArchiveWithoutBucket(t *testing.T) {
	t.Parallel()
	s := newTestService(t, nil)
	s.cfg.S3Bucket = ""
	s.uploader = nil

	name, err := s.Run(context.Background())
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(s.cfg.TmpDir, name))
	require.NoError(t, err, "archive should stay local without a bucket")
}

func TestRunArchiveFailure(t *testing.T) {
	t.Parallel()
	s := newTestService(t, &fakeUploader{})
	s.cfg.DataDir = filepath.Join(t.TempDir(), "missing")

	_, err := s.Run(context.Background())
	require.Error(t, err)
}
