package assets

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config describes an S3-compatible bucket used as the backing location.
type S3Config struct {
	Endpoint  string // "minio:9000" or "https://s3.example.com"
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string // key prefix, default "uploads/"
}

// S3Store keeps assets as objects under a single prefix of one bucket.
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
	namer  Namer
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	// host:port without a scheme is plain HTTP, as for a local MinIO.
	return raw, false, nil
}

// NewS3Store builds a store for cfg. It does not contact the server;
// Initialize does.
func NewS3Store(cfg S3Config, namer Namer) (*S3Store, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 configuration incomplete")
	}
	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}
	if namer == nil {
		namer = TimestampNamer{}
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "uploads/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: cfg.Bucket, prefix: prefix, namer: namer}, nil
}

func (s *S3Store) key(id string) string { return s.prefix + id }

func (s *S3Store) Initialize(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		// Another instance may have created it meanwhile.
		if minio.ToErrorResponse(err).Code == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *S3Store) Put(ctx context.Context, payload []byte, originalName string) (Asset, error) {
	if len(payload) == 0 {
		return Asset{}, ErrNoPayload
	}
	id := s.namer.Name(originalName)
	if err := ValidateID(id); err != nil {
		return Asset{}, fmt.Errorf("%w: generated %w", ErrWriteFailed, err)
	}
	contentType := mime.TypeByExtension(Extension(id))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, s.key(id), bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return Asset{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return newAsset(id, int64(len(payload))), nil
}

func (s *S3Store) List(ctx context.Context) ([]Asset, error) {
	var out []Asset
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, obj.Err)
		}
		id := strings.TrimPrefix(obj.Key, s.prefix)
		// Non-recursive listings report nested prefixes as "dir/".
		if id == "" || strings.Contains(id, "/") {
			continue
		}
		out = append(out, newAsset(id, obj.Size))
	}
	if out == nil {
		out = []Asset{}
	}
	return out, nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func (s *S3Store) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if _, err := s.client.StatObject(ctx, s.bucket, s.key(id), minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, s.key(id), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *S3Store) Open(ctx context.Context, id string) (*Blob, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	// Force an early error for missing objects.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return &Blob{
		Body:        obj,
		Size:        info.Size,
		ModTime:     info.LastModified,
		ContentType: info.ContentType,
	}, nil
}
