package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"stargate/internal/logger"
)

// MinioClient хранит бинарники версий в MinIO
type MinioClient struct {
	client *minio.Client
	bucket string
}

// NewMinioClient подключается к MinIO и создаёт бакет, если его нет
func NewMinioClient(conf *Config) (*MinioClient, error) {
	if conf == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	endpoint := conf.Endpoint
	secure := conf.UseSSL
	// minio ожидает host:port без схемы
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKeyID, conf.SecretAccessKey, ""),
		Secure: secure,
		Region: conf.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, conf.Bucket)
	if err != nil {
		return nil, fmt.Errorf("unable to access bucket %s: %w", conf.Bucket, err)
	}
	if !exists {
		logger.Sugar.Infof("[MinIO] Bucket %s does not exist, creating", conf.Bucket)
		if err := client.MakeBucket(ctx, conf.Bucket, minio.MakeBucketOptions{Region: conf.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", conf.Bucket, err)
		}
	}

	return &MinioClient{client: client, bucket: conf.Bucket}, nil
}

func (m *MinioClient) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload data to minio: %w", err)
	}
	return nil
}

func (m *MinioClient) Get(ctx context.Context, key string) (Object, error) {
	return m.get(ctx, key, minio.GetObjectOptions{})
}

func (m *MinioClient) GetRange(ctx context.Context, key string, start, end int64) (Object, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(start, end); err != nil {
		return nil, fmt.Errorf("invalid range %d-%d: %w", start, end, err)
	}
	return m.get(ctx, key, opts)
}

func (m *MinioClient) get(ctx context.Context, key string, opts minio.GetObjectOptions) (Object, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get object from minio: %w", err)
	}

	// GetObject ленивый: ошибки отсутствия ключа приходят только на Stat/Read
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if isMinioNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to stat object in minio: %w", err)
	}

	length := info.Size
	if start, end, ok := rangeOf(opts); ok {
		if end >= info.Size {
			end = info.Size - 1
		}
		length = end - start + 1
	}

	return &object{
		ReadCloser:    obj,
		contentLength: length,
		contentType:   info.ContentType,
	}, nil
}

func (m *MinioClient) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isMinioNotFound(err) {
		return fmt.Errorf("failed to delete object from minio: %w", err)
	}
	return nil
}

func isMinioNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject" || strings.Contains(err.Error(), "does not exist")
}

// rangeOf разбирает заголовок Range, выставленный через SetRange
func rangeOf(opts minio.GetObjectOptions) (int64, int64, bool) {
	h := opts.Header().Get("Range")
	if h == "" {
		return 0, 0, false
	}
	var start, end int64
	if _, err := fmt.Sscanf(h, "bytes=%d-%d", &start, &end); err != nil {
		return 0, 0, false
	}
	return start, end, true
}
