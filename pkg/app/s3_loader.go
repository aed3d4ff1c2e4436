package app

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

const (
	s3Scheme = "s3"

	s3LoadTimeout = 30 * time.Second
)

func init() {
	RegisterFileLoaderCtor(s3Scheme, func() (FileLoader, error) {
		ctx, cancel := context.WithTimeout(context.Background(), s3LoadTimeout)
		defer cancel()

		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load aws config")
		}
		return &S3Loader{client: s3.NewFromConfig(cfg)}, nil
	})
}

// S3Loader loads files from s3://bucket/key URLs
type S3Loader struct {
	client *s3.Client
}

// Load implements FileLoader.Load
func (l *S3Loader) Load(u *url.URL) ([]byte, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if len(bucket) == 0 || len(key) == 0 {
		return nil, errors.Errorf("invalid s3 url %s", u.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), s3LoadTimeout)
	defer cancel()

	resp, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get %s", u.String())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", u.String())
	}
	return data, nil
}
