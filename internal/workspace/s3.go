package workspace

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/restackio/restack/internal/model"
)

// S3Loader pulls a project's source tree from an S3 prefix and pushes the
// converted tree back.
type S3Loader struct {
	bucket     string
	client     *s3.S3
	downloader *s3manager.Downloader
	uploader   *s3manager.Uploader
}

// NewS3Loader builds a loader from the workspace configuration.
func NewS3Loader(cfg model.WorkspaceConfig) (*S3Loader, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	awsCfg := &aws.Config{Region: aws.String(cfg.S3Region)}
	if cfg.S3AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.S3AccessKey, cfg.S3SecretKey, "")
	}
	if cfg.S3Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.S3Endpoint)
	}
	if cfg.S3UsePathStyle {
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess := session.Must(session.NewSession(awsCfg))
	return &S3Loader{
		bucket:     cfg.S3Bucket,
		client:     s3.New(sess),
		downloader: s3manager.NewDownloader(sess),
		uploader:   s3manager.NewUploader(sess),
	}, nil
}

// Load downloads every object under prefix into an in-memory tree. The
// prefix is stripped from keys to form relative paths.
func (l *S3Loader) Load(ctx context.Context, prefix string) (*SourceTree, error) {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	tree := NewSourceTree("")

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(l.bucket),
		Prefix: aws.String(prefix),
	}
	var loadErr error
	err := l.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, last bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			buf := aws.NewWriteAtBuffer(nil)
			if _, dlErr := l.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
				Bucket: aws.String(l.bucket),
				Key:    aws.String(key),
			}); dlErr != nil {
				loadErr = fmt.Errorf("failed to download %s from S3: %w", key, dlErr)
				return false
			}
			tree.Write(strings.TrimPrefix(key, prefix), buf.Bytes())
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list s3 prefix %s: %w", prefix, err)
	}
	if loadErr != nil {
		return nil, loadErr
	}
	return tree, nil
}

// Store uploads every file in tree under prefix.
func (l *S3Loader) Store(ctx context.Context, prefix string, tree *SourceTree) error {
	prefix = strings.TrimSuffix(prefix, "/")
	for _, file := range tree.Files() {
		content, _ := tree.Read(file)
		_, err := l.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket: aws.String(l.bucket),
			Key:    aws.String(path.Join(prefix, file)),
			Body:   bytes.NewReader(content),
		})
		if err != nil {
			return fmt.Errorf("failed to upload %s to S3: %w", file, err)
		}
	}
	return nil
}
