// Where: internal/publish/s3.go
// What: Optional upload of delivered packages to S3-compatible storage.
// Why: Encapsulate SDK configuration (region, static keys, custom endpoints) behind a small API.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/opencontainers/go-digest"
)

// digestMetadataKey is the object metadata entry holding the sha256 digest.
const digestMetadataKey = "digest"

var ErrNoBucket = errors.New("publish bucket is not configured")

// S3API is the subset of the S3 client used for uploads.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options selects the destination of published artifacts.
type Options struct {
	Bucket   string
	Prefix   string
	Endpoint string
	Region   string
	// IndexTable, when set, receives one DynamoDB item per upload.
	IndexTable    string
	IndexEndpoint string
}

// Enabled reports whether a bucket is configured.
func (o Options) Enabled() bool {
	return o.Bucket != ""
}

// Artifact is a delivered package file and the coordinates it was built for.
type Artifact struct {
	Path    string
	Name    string
	Target  string
	Package string
	Version string
	Release string
	Arch    string
	Type    string
}

// NewS3Client builds an S3 client. A custom endpoint switches to path-style
// addressing for S3-compatible servers.
func NewS3Client(ctx context.Context, opts Options) (S3API, error) {
	cfg, err := loadAWSConfig(ctx, opts.Region, "S3")
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(options *s3.Options) {
		if opts.Endpoint != "" {
			options.BaseEndpoint = aws.String(opts.Endpoint)
			options.UsePathStyle = true
		}
	}), nil
}

// Publisher uploads files under a bucket prefix and optionally records
// them in an index.
type Publisher struct {
	client S3API
	index  *Index
	opts   Options
}

// New returns a Publisher writing to opts.Bucket. index may be nil.
func New(client S3API, opts Options, index *Index) *Publisher {
	return &Publisher{client: client, index: index, opts: opts}
}

// Key returns the object key for a delivered file name.
func (p *Publisher) Key(name string) string {
	if p.opts.Prefix == "" {
		return name
	}
	return path.Join(p.opts.Prefix, name)
}

// Publish uploads the artifact and returns its s3:// URI. The upload is
// kept when indexing fails; the URI is returned along with the error.
func (p *Publisher) Publish(ctx context.Context, artifact Artifact) (string, error) {
	if !p.opts.Enabled() {
		return "", ErrNoBucket
	}
	file, err := os.Open(artifact.Path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	sum, err := digest.FromReader(file)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", artifact.Path, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	key := p.Key(artifact.Name)
	if _, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(p.opts.Bucket),
		Key:      aws.String(key),
		Body:     file,
		Metadata: map[string]string{digestMetadataKey: sum.String()},
	}); err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", p.opts.Bucket, key, err)
	}
	uri := fmt.Sprintf("s3://%s/%s", p.opts.Bucket, key)
	if p.index != nil {
		if err := p.index.Record(ctx, artifact, uri, sum); err != nil {
			return uri, err
		}
	}
	return uri, nil
}
