package publisher

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
	Bucket    string
	Prefix    string
	BaseURL   string
}

// S3Store uploads frames to an S3-compatible bucket.
type S3Store struct {
	client  s3API
	bucket  string
	region  string
	prefix  string
	baseURL string
	remote  string
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, cfg), nil
}

func newS3Store(client s3API, cfg S3Config) *S3Store {
	base := cfg.BaseURL
	if base == "" {
		if cfg.Endpoint != "" {
			base = joinURL(cfg.Endpoint, cfg.Bucket)
		} else {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		prefix:  cfg.Prefix,
		baseURL: base,
		remote:  "s3://" + cfg.Endpoint + "/" + cfg.Bucket,
	}
}

func (s *S3Store) Name() string   { return "s3" }
func (s *S3Store) Remote() string { return s.remote }

func (s *S3Store) URL(key string) string {
	return joinURL(s.baseURL, key)
}

// Ensure creates the bucket when it cannot be found.
func (s *S3Store) Ensure(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	logrus.WithError(err).WithField("bucket", s.bucket).Info("Bucket not reachable, creating it")
	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		return errors.Wrapf(err, "create bucket %s", s.bucket)
	}
	return nil
}

func (s *S3Store) Put(ctx context.Context, namespace string, files []string) ([]string, error) {
	keys := make([]string, len(files))
	for i, f := range files {
		key := objectKey(s.prefix, namespace, f)
		if err := s.putFile(ctx, key, f); err != nil {
			return nil, err
		}
		keys[i] = key
	}
	return keys, nil
}

func (s *S3Store) putFile(ctx context.Context, key, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open frame")
	}
	defer file.Close()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return errors.Wrapf(err, "upload %s", key)
	}
	return nil
}
