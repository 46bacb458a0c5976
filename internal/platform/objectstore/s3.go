// Package objectstore uploads and destroys book assets in an S3-compatible bucket.
//
// Blobs are laid out by kind:
//
//	book-covers/<name>.<subtype>   images, addressed by "book-covers/<name>"
//	book-pdfs/<name>.pdf           documents, addressed by the full key
//
// Image identifiers carry no format, so destroying an image resolves every
// "<id>.<ext>" object under the identifier. Documents are raw and deleted by
// exact key; passing the wrong kind will not locate the blob.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"bookvault/internal/asset"
	"bookvault/internal/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// API is the subset of *s3.Client used by the store.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// ClientConfig configures the underlying S3 client.
type ClientConfig struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Timeout   time.Duration
}

// NewClient builds an S3 client. A custom endpoint switches to path-style
// addressing for MinIO and localstack.
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	if cfg.Endpoint == "" {
		return s3.NewFromConfig(awsCfg), nil
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	}), nil
}

// Config configures the asset store.
type Config struct {
	Bucket string
	// PublicBaseURL prefixes every returned asset URL, e.g. a CDN origin.
	PublicBaseURL string
}

// S3Store is safe for concurrent use; it holds no per-request state.
type S3Store struct {
	client  API
	bucket  string
	baseURL string
	metrics metrics.AssetStore
}

func New(client API, cfg Config, m metrics.AssetStore) *S3Store {
	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		metrics: m,
	}
}

// Upload stores the file at localPath under the kind's folder as
// "<overrideName>.<format>" and returns its public reference.
func (s *S3Store) Upload(ctx context.Context, localPath string, kind asset.Kind, overrideName, format string) (ref asset.Reference, err error) {
	start := time.Now()
	defer func() { metrics.ObserveAssetOperation(s.metrics, "upload", kind.String(), err, start) }()

	if kind == asset.KindDocument {
		format = asset.DocumentFormat
	}
	if overrideName == "" || format == "" {
		return asset.Reference{}, fmt.Errorf("upload %s: name and format are required", kind)
	}

	key := kind.Folder() + "/" + strings.TrimSuffix(overrideName, "."+format) + "." + format

	f, err := os.Open(localPath)
	if err != nil {
		return asset.Reference{}, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return asset.Reference{}, fmt.Errorf("stat %s: %w", localPath, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(kind, format)),
	})
	if err != nil {
		return asset.Reference{}, fmt.Errorf("put object %s: %w", key, err)
	}

	publicURL, err := url.JoinPath(s.baseURL, key)
	if err != nil {
		return asset.Reference{}, fmt.Errorf("build url for %s: %w", key, err)
	}
	return asset.Reference{URL: publicURL, Kind: kind}, nil
}

// Destroy removes the blob identified by publicID. A blob that does not exist
// is treated as already destroyed.
func (s *S3Store) Destroy(ctx context.Context, publicID string, kind asset.Kind) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveAssetOperation(s.metrics, "destroy", kind.String(), err, start) }()

	if publicID == "" {
		return errors.New("destroy: empty public id")
	}

	if kind == asset.KindDocument {
		return s.deleteKey(ctx, publicID)
	}

	keys, err := s.imageKeys(ctx, publicID)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.deleteKey(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// imageKeys lists the objects stored for an image identifier: the bare key and
// any single-extension variant of it.
func (s *S3Store) imageKeys(ctx context.Context, publicID string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(publicID),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isNotFoundError(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("list objects %s: %w", publicID, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if matchesImageID(key, publicID) {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

func matchesImageID(key, publicID string) bool {
	if key == publicID {
		return true
	}
	ext, ok := strings.CutPrefix(key, publicID+".")
	return ok && ext != "" && !strings.ContainsAny(ext, "./")
}

func (s *S3Store) deleteKey(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func contentType(kind asset.Kind, format string) string {
	if kind == asset.KindDocument {
		return "application/pdf"
	}
	return "image/" + format
}

// isNotFoundError returns true if the error indicates the object doesn't exist.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound" || code == "404"
	}
	return false
}
