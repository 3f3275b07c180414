package upload

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/backupoor/pkg/config"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "backupoor/runs"

// putObjectAPI is the part of the S3 client the uploader needs.
type putObjectAPI interface {
	PutObject(
		ctx context.Context,
		params *s3.PutObjectInput,
		optFns ...func(*s3.Options),
	) (*s3.PutObjectOutput, error)
}

// s3Uploader implements Uploader for S3-compatible storage.
type s3Uploader struct {
	log    logrus.FieldLogger
	cfg    *config.S3UploadConfig
	client putObjectAPI
}

// Ensure interface compliance.
var _ Uploader = (*s3Uploader)(nil)

// NewS3Uploader creates a new S3 uploader from the given configuration.
func NewS3Uploader(
	log logrus.FieldLogger,
	cfg *config.S3UploadConfig,
) (Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	return &s3Uploader{
		log:    log.WithField("component", "s3-uploader"),
		cfg:    cfg,
		client: newS3Client(cfg),
	}, nil
}

func newS3Client(cfg *config.S3UploadConfig) *s3.Client {
	return s3.New(s3.Options{}, func(o *s3.Options) {
		if cfg.Region != "" {
			o.Region = cfg.Region
		} else {
			o.Region = "us-east-1"
		}

		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}

		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}

		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, "",
			)
		}
	})
}

// Preflight verifies S3 connectivity by writing a small test object.
func (u *s3Uploader) Preflight(ctx context.Context) error {
	content := fmt.Sprintf("backupoor write test: %s", time.Now().UTC().Format(time.RFC3339))

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(u.prefix() + "/.backupoor-write-test"),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("writing test object to s3://%s: %w", u.cfg.Bucket, err)
	}

	return nil
}

// Upload uploads every file under the run's key prefix.
func (u *s3Uploader) Upload(ctx context.Context, runID string, files []string) ([]string, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}

	keys := make([]string, 0, len(files))

	var total int64

	for _, path := range files {
		key := u.objectKey(runID, path)

		size, err := u.uploadFile(ctx, path, key)
		if err != nil {
			return keys, fmt.Errorf("uploading %s: %w", filepath.Base(path), err)
		}

		total += size

		keys = append(keys, key)
	}

	u.log.WithFields(logrus.Fields{
		"files":  len(keys),
		"size":   units.HumanSize(float64(total)),
		"bucket": u.cfg.Bucket,
		"prefix": u.prefix() + "/" + runID,
	}).Info("Upload completed")

	return keys, nil
}

// uploadFile uploads a single file to S3 and returns its size.
func (u *s3Uploader) uploadFile(ctx context.Context, localPath, key string) (int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("opening file: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(u.cfg.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(detectContentType(localPath)),
	}

	if u.cfg.StorageClass != "" {
		input.StorageClass = s3types.StorageClass(u.cfg.StorageClass)
	}

	if u.cfg.ACL != "" {
		input.ACL = s3types.ObjectCannedACL(u.cfg.ACL)
	}

	u.log.WithFields(logrus.Fields{
		"key":    key,
		"bucket": u.cfg.Bucket,
	}).Debug("Uploading file")

	if _, err := u.client.PutObject(ctx, input); err != nil {
		return 0, fmt.Errorf("PutObject: %w", err)
	}

	return info.Size(), nil
}

// prefix returns the configured key prefix without trailing slashes.
func (u *s3Uploader) prefix() string {
	prefix := u.cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return strings.TrimRight(prefix, "/")
}

// objectKey builds the key of a run artifact.
func (u *s3Uploader) objectKey(runID, path string) string {
	return u.prefix() + "/" + runID + "/" + filepath.Base(path)
}

// artifactTypes covers export extensions missing from the builtin mime table.
var artifactTypes = map[string]string{
	".csv":  "text/csv; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
	".prom": "text/plain; version=0.0.4; charset=utf-8",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// detectContentType returns a MIME type based on file extension.
func detectContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "application/octet-stream"
	}

	if ct, ok := artifactTypes[ext]; ok {
		return ct
	}

	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return "application/octet-stream"
	}

	return ct
}
