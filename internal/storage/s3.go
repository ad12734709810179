package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// OutcomeArchiveConfig holds configuration for OutcomeArchive
type OutcomeArchiveConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UsePathStyle    bool
}

// OutcomeArchive stores raw municipal response payloads in S3-compatible
// storage (e.g., RustFS) so that learned chunks can be traced back to the
// document they came from.
type OutcomeArchive struct {
	client *s3.Client
	bucket string
	now    func() time.Time
}

// NewOutcomeArchive creates a new OutcomeArchive with the given configuration
func NewOutcomeArchive(ctx context.Context, cfg OutcomeArchiveConfig) (*OutcomeArchive, error) {
	// Create custom resolver for S3-compatible endpoints
	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if cfg.Endpoint != "" {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		},
	)

	// Load AWS config
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		config.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Create S3 client with path-style addressing for S3-compatible services
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &OutcomeArchive{
		client: client,
		bucket: cfg.Bucket,
		now:    time.Now,
	}, nil
}

// ArchiveOutcome serializes the outcome payload as JSON and stores it under a
// key derived from the source reference. Repeated submissions of the same
// reference get distinct timestamped keys rather than overwriting each other.
func (a *OutcomeArchive) ArchiveOutcome(ctx context.Context, sourceReference string, payload any) error {
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize outcome payload: %w", err)
	}

	key := a.outcomeKey(sourceReference)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive outcome %q: %w", sourceReference, err)
	}

	return nil
}

// GetArchivedOutcome fetches a previously archived payload by its object key
func (a *OutcomeArchive) GetArchivedOutcome(ctx context.Context, key string) ([]byte, error) {
	output, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archived outcome: %w", err)
	}
	defer output.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(output.Body); err != nil {
		return nil, fmt.Errorf("failed to read archived outcome body: %w", err)
	}
	return buf.Bytes(), nil
}

// ListArchivedOutcomes returns the object keys archived for a source reference
func (a *OutcomeArchive) ListArchivedOutcomes(ctx context.Context, sourceReference string) ([]string, error) {
	prefix := "outcomes/" + sanitizeKeyPart(sourceReference) + "/"

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list archived outcomes: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	return keys, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (a *OutcomeArchive) EnsureBucket(ctx context.Context) error {
	// Check if bucket exists
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err == nil {
		return nil // Bucket exists
	}

	// Create bucket
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

func (a *OutcomeArchive) outcomeKey(sourceReference string) string {
	ts := a.now().UTC().Format("20060102T150405.000Z")
	return fmt.Sprintf("outcomes/%s/%s.json", sanitizeKeyPart(sourceReference), ts)
}

// sanitizeKeyPart maps a source reference to a safe S3 key segment.
func sanitizeKeyPart(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}
