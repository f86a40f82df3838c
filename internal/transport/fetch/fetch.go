// Package fetch downloads resume documents from HTTP(S) URLs and S3-compatible storage.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

// Config holds the download settings.
type Config struct {
	Timeout     time.Duration
	MaxBytes    int64
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3PathStyle bool
	UserAgent   string
}

// objectGetter is the subset of the S3 client used here.
type objectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Fetcher resolves http(s):// and s3://bucket/key URLs to document bytes.
type Fetcher struct {
	http      *http.Client
	s3        objectGetter
	maxBytes  int64
	userAgent string
	logger    *zap.Logger
}

// New creates a Fetcher. The S3 client is built only when a region or an endpoint is configured.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Fetcher, error) {
	f := &Fetcher{
		http:      &http.Client{Timeout: cfg.Timeout},
		maxBytes:  cfg.MaxBytes,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
	if cfg.S3Region == "" && cfg.S3Endpoint == "" {
		return f, nil
	}

	region := cfg.S3Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	f.s3 = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3PathStyle
	})
	return f, nil
}

// Fetch downloads the document and returns its bytes and declared content type.
// Unreachable sources are transient; bad references are caller errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, "", domain.InvalidArgf("parse source url: %v", err)
	}

	start := time.Now()
	var (
		data     []byte
		mimeType string
	)
	switch u.Scheme {
	case "http", "https":
		data, mimeType, err = f.fetchHTTP(ctx, u)
	case "s3":
		data, mimeType, err = f.fetchS3(ctx, u)
	default:
		return nil, "", domain.InvalidArgf("unsupported source scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, "", err
	}

	f.logger.Debug("Source fetched",
		zap.String("scheme", u.Scheme),
		zap.String("host", u.Host),
		zap.Int("bytes", len(data)),
		zap.String("mime", mimeType),
		zap.Duration("duration", time.Since(start)),
	)
	return data, mimeType, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, u *url.URL) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, "", domain.InvalidArgf("build request: %v", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: %w: %w", u.Redacted(), domain.ErrSourceFetch, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError, resp.StatusCode == http.StatusTooManyRequests:
		return nil, "", fmt.Errorf("GET %s: status %d: %w", u.Redacted(), resp.StatusCode, domain.ErrSourceFetch)
	case resp.StatusCode == http.StatusNotFound:
		return nil, "", fmt.Errorf("GET %s: %w", u.Redacted(), domain.ErrNotFound)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, "", domain.InvalidArgf("GET %s: status %d", u.Redacted(), resp.StatusCode)
	}

	data, err := f.readLimited(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: %w", u.Redacted(), err)
	}
	return data, mimeType(resp.Header.Get("Content-Type"), u.Path), nil
}

func (f *Fetcher) fetchS3(ctx context.Context, u *url.URL) ([]byte, string, error) {
	if f.s3 == nil {
		return nil, "", fmt.Errorf("s3 sources: %w", domain.ErrNotImplemented)
	}
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, "", domain.InvalidArgf("s3 url must be s3://bucket/key, got %q", u.String())
	}

	out, err := f.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, "", fmt.Errorf("s3://%s/%s: %w", bucket, key, domain.ErrNotFound)
		}
		return nil, "", fmt.Errorf("s3://%s/%s: %w: %w", bucket, key, domain.ErrSourceFetch, err)
	}
	defer out.Body.Close()

	data, err := f.readLimited(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("s3://%s/%s: %w", bucket, key, err)
	}
	return data, mimeType(aws.ToString(out.ContentType), key), nil
}

func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	if f.maxBytes > 0 {
		r = io.LimitReader(r, f.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w: %w", domain.ErrSourceFetch, err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("document above %d bytes: %w", f.maxBytes, domain.ErrLimitExceeded)
	}
	return data, nil
}

// mimeType prefers the declared type and falls back to the file extension.
func mimeType(declared, name string) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	return mime.TypeByExtension(path.Ext(name))
}
