package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/importly/health-dashboard-backend/internal/apperr"
)

// OpenSource resolves filePath to a readable stream: a local filesystem
// path is opened directly, while an "s3://bucket/key" URI is downloaded to
// a temp file first (the streaming parser then reads from that temp file
// exactly as it would a local export). The returned cleanup func removes
// any temp file created; callers should always defer it.
func OpenSource(ctx context.Context, filePath string) (r io.ReadCloser, cleanup func(), err error) {
	if !strings.HasPrefix(filePath, "s3://") {
		f, err := os.Open(filePath)
		if err != nil {
			return nil, nil, apperr.Wrap(apperr.KindIO, fmt.Sprintf("open ingest file %q", filePath), err)
		}
		return f, func() {}, nil
	}

	bucket, key, err := parseS3URI(filePath)
	if err != nil {
		return nil, nil, err
	}

	tmp, err := os.CreateTemp("", "health-ingest-*.xml")
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindIO, "create temp file for s3 download", err)
	}
	cleanupFn := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		cleanupFn()
		return nil, nil, apperr.Wrap(apperr.KindIO, "load aws config", err)
	}

	client := s3.NewFromConfig(cfg)
	obj, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		cleanupFn()
		return nil, nil, apperr.Wrap(apperr.KindIO, fmt.Sprintf("download s3://%s/%s", bucket, key), err)
	}
	defer obj.Body.Close()

	if _, err := io.Copy(tmp, obj.Body); err != nil {
		cleanupFn()
		return nil, nil, apperr.Wrap(apperr.KindIO, "write s3 object to temp file", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		cleanupFn()
		return nil, nil, apperr.Wrap(apperr.KindIO, "rewind temp file", err)
	}

	return tmp, cleanupFn, nil
}

func parseS3URI(uri string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apperr.New(apperr.KindInvalidArgument, fmt.Sprintf("invalid s3 uri %q, expected s3://bucket/key", uri))
	}
	return parts[0], parts[1], nil
}
