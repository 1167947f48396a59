package loader

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/TobiSchelling/topicwatch/internal/model"
)

// S3API is the subset of the S3 client used for run storage.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Provider loads run files stored as objects under a key prefix.
type S3Provider struct {
	Client  S3API
	Bucket  string
	Prefix  string
	Workers int
}

// NewS3Provider builds a provider using the default AWS credential chain.
func NewS3Provider(ctx context.Context, bucket, prefix, region string, workers int) (*S3Provider, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is not configured")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &S3Provider{
		Client:  s3.NewFromConfig(cfg),
		Bucket:  bucket,
		Prefix:  normalizePrefix(prefix),
		Workers: workers,
	}, nil
}

// LoadAll lists every *.json object under the prefix and reads them.
// Listing failures fail the load; individual object failures are skipped.
func (p *S3Provider) LoadAll(ctx context.Context) ([]model.MonitoringRun, error) {
	keys, err := p.listKeys(ctx)
	if err != nil {
		return nil, err
	}
	return loadEach(ctx, "s3", keys, p.Workers, p.readObject)
}

// Upload stores one encoded run file under the prefix.
func (p *S3Provider) Upload(ctx context.Context, name string, data []byte) error {
	key := normalizePrefix(p.Prefix) + name
	_, err := p.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload run to S3: %w", err)
	}
	return nil
}

func (p *S3Provider) listKeys(ctx context.Context) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(p.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.Bucket),
		Prefix: aws.String(normalizePrefix(p.Prefix)),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", p.Bucket, p.Prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") || path.Base(key) == ManifestName {
				continue
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (p *S3Provider) readObject(ctx context.Context, key string) (model.MonitoringRun, error) {
	out, err := p.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return model.MonitoringRun{}, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer out.Body.Close()
	return model.DecodeRun(out.Body, path.Base(key))
}

func normalizePrefix(prefix string) string {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		return prefix + "/"
	}
	return prefix
}
