package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/phonelist-server/pkg/phonelist/document"
	"github.com/code-payments/phonelist-server/pkg/pointer"
)

const (
	defaultRegion = "us-east-1"

	contentType = "application/json"

	// Documents are small lists, anything larger is treated as corrupt
	maxObjectSize = 8 << 20
)

// Config holds the parameters for connecting to an S3 compatible backend
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, enables a custom endpoint (eg. MinIO)
	AccessKeyID     string // optional, falls back to the default credentials chain
	SecretAccessKey string // optional
	PathStyle       bool

	// HTTPClient overrides the transport used by the SDK
	HTTPClient *http.Client
}

type store struct {
	log    *logrus.Entry
	client *s3.Client
	bucket string
}

// New returns a document.Store where each document is a single S3 object. The
// document version is the object's ETag, and writes are conditional PutObject
// requests.
func New(ctx context.Context, cfg Config) (document.Store, error) {
	if len(cfg.Bucket) == 0 {
		return nil, pkgerrors.Wrap(document.ErrNotConfigured, "s3 bucket is required")
	}

	region := cfg.Region
	if len(region) == 0 {
		region = defaultRegion
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if len(cfg.AccessKeyID) > 0 {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "error loading aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if len(cfg.Endpoint) > 0 {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}

		// Conditional writes don't need trailing checksums, which also keeps
		// S3 compatible backends that lack aws-chunked support working
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &store{
		log:    logrus.StandardLogger().WithField("type", "phonelist/document/s3"),
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Read implements document.Store.Read
func (s *store) Read(ctx context.Context, name string) (*document.Document, error) {
	res := &document.Document{
		Name:  name,
		Items: []string{},
	}

	key := document.Path(name)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if isNotFound(err) {
		return res, nil
	} else if err != nil {
		return nil, toStoreError("read", name, err)
	}
	defer out.Body.Close()

	content, err := io.ReadAll(io.LimitReader(out.Body, maxObjectSize+1))
	if err != nil {
		return nil, document.NewStoreError("read", name, err)
	}
	if len(content) > maxObjectSize {
		return nil, document.NewStoreError("read", name, document.ErrCorruptDocument)
	}

	if out.ETag == nil {
		return nil, document.NewStoreError("read", name, errors.New("response is missing the etag"))
	}

	items, err := document.Decode(content)
	if err != nil {
		return nil, document.NewStoreError("read", name, err)
	}

	res.Items = items
	res.Version = pointer.StringCopy(out.ETag)
	return res, nil
}

// Write implements document.Store.Write
func (s *store) Write(ctx context.Context, name string, items []string, expectedVersion *string, description string) (string, error) {
	content, err := document.Encode(items)
	if err != nil {
		return "", document.NewStoreError("write", name, err)
	}

	key := document.Path(name)

	input := &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String(contentType),
		Metadata: map[string]string{
			"description": truncate(description, 256),
		},
	}
	if expectedVersion == nil {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = expectedVersion
	}

	out, err := s.client.PutObject(ctx, input)
	if isConflict(err) || (expectedVersion != nil && isNotFound(err)) {
		return "", &document.ConflictError{Name: name, ExpectedVersion: expectedVersion}
	} else if err != nil {
		return "", toStoreError("write", name, err)
	}

	if out.ETag == nil {
		return "", document.NewStoreError("write", name, errors.New("response is missing the etag"))
	}

	s.log.WithFields(logrus.Fields{
		"document": name,
		"etag":     *out.ETag,
	}).Debug("document written")

	return *out.ETag, nil
}

type httpStatusError interface {
	HTTPStatusCode() int
}

// toStoreError reports a missing bucket as the store not being configured
func toStoreError(op, name string, err error) error {
	if isMissingBucket(err) {
		return pkgerrors.Wrap(document.ErrNotConfigured, "bucket doesn't exist")
	}
	return document.NewStoreError(op, name, err)
}

// isNotFound only matches a missing object. Other 404s, like a missing
// bucket, are not an empty document.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func isMissingBucket(err error) bool {
	if err == nil {
		return false
	}

	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return true
	}

	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket"
}

func isConflict(err error) bool {
	if err == nil {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}

	var statusErr httpStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.HTTPStatusCode() {
		case http.StatusPreconditionFailed, http.StatusConflict:
			return true
		}
	}
	return false
}

func truncate(value string, length int) string {
	if len(value) <= length {
		return value
	}
	return value[:length]
}
