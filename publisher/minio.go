package publisher

import (
	"context"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts miniogo.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error)
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	Prefix    string
	BaseURL   string
}

// MinioStore uploads frames to a MinIO bucket.
type MinioStore struct {
	client  minioAPI
	bucket  string
	region  string
	prefix  string
	baseURL string
	remote  string
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create minio client")
	}
	return newMinioStore(client, cfg), nil
}

func newMinioStore(client minioAPI, cfg MinioConfig) *MinioStore {
	base := cfg.BaseURL
	if base == "" {
		scheme := "http://"
		if cfg.UseSSL {
			scheme = "https://"
		}
		base = joinURL(scheme+cfg.Endpoint, cfg.Bucket)
	}
	return &MinioStore{
		client:  client,
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		prefix:  cfg.Prefix,
		baseURL: base,
		remote:  "minio://" + cfg.Endpoint + "/" + cfg.Bucket,
	}
}

func (m *MinioStore) Name() string   { return "minio" }
func (m *MinioStore) Remote() string { return m.remote }

func (m *MinioStore) URL(key string) string {
	return joinURL(m.baseURL, key)
}

func (m *MinioStore) Ensure(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return errors.Wrapf(err, "check bucket %s", m.bucket)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, miniogo.MakeBucketOptions{Region: m.region}); err != nil {
		return errors.Wrapf(err, "create bucket %s", m.bucket)
	}
	return nil
}

func (m *MinioStore) Put(ctx context.Context, namespace string, files []string) ([]string, error) {
	keys := make([]string, len(files))
	for i, f := range files {
		key := objectKey(m.prefix, namespace, f)
		_, err := m.client.FPutObject(ctx, m.bucket, key, f, miniogo.PutObjectOptions{
			ContentType: "image/png",
		})
		if err != nil {
			return nil, errors.Wrapf(err, "upload %s", key)
		}
		keys[i] = key
	}
	return keys, nil
}
