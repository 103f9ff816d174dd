package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config encapsulates the connection info for any S3-compatible service.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// BaseURL is the public URL root objects are served from (CDN or raw
	// endpoint). Derived from the endpoint when empty.
	BaseURL string
}

// S3Client implements ObjectStorage on top of minio-go.
type S3Client struct {
	client  *minio.Client
	bucket  string
	region  string
	baseURL string
}

// NewS3Client builds an S3Client from the Config.
func NewS3Client(cfg S3Config) (*S3Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("storage credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket must be provided")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &S3Client{
		client:  client,
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		baseURL: baseURL,
	}, nil
}

// EnsureBucket makes sure the configured bucket exists before use.
func (s *S3Client) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return classify("head bucket", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return classify("make bucket", s.bucket, err)
		}
	}
	return nil
}

// Put uploads a local file under the given remote key.
func (s *S3Client) Put(ctx context.Context, localPath, remoteKey, contentType string, metadata map[string]string) (PutResult, error) {
	opts := minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
	}
	if _, err := s.client.FPutObject(ctx, s.bucket, remoteKey, localPath, opts); err != nil {
		return PutResult{}, classify("put object", remoteKey, err)
	}
	return PutResult{Key: remoteKey, URL: s.PublicURL(remoteKey)}, nil
}

// Get fetches the full object body.
func (s *S3Client) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify("get object", key, err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, classify("read object", key, err)
	}
	return buf, nil
}

// Delete removes a single object.
func (s *S3Client) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return classify("delete object", key, err)
	}
	return nil
}

// DeleteBatch removes several objects, returning the first failure.
func (s *S3Client) DeleteBatch(ctx context.Context, keys []string) error {
	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)

	for res := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if res.Err != nil {
			return classify("delete objects", res.ObjectName, res.Err)
		}
	}
	return nil
}

// Head reports whether the object exists.
func (s *S3Client) Head(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		cerr := classify("head object", key, err)
		if IsNotFound(cerr) {
			return false, nil
		}
		return false, cerr
	}
	return true, nil
}

// Copy duplicates an object within the bucket.
func (s *S3Client) Copy(ctx context.Context, srcKey, dstKey string) error {
	src := minio.CopySrcOptions{Bucket: s.bucket, Object: srcKey}
	dst := minio.CopyDestOptions{Bucket: s.bucket, Object: dstKey}
	if _, err := s.client.CopyObject(ctx, dst, src); err != nil {
		return classify("copy object", srcKey, err)
	}
	return nil
}

// List returns one page of keys under the prefix. The continuation token is
// the last key of the previous page (keyset-style, via StartAfter).
func (s *S3Client) List(ctx context.Context, prefix, continuationToken string, maxKeys int) (ListPage, error) {
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := minio.ListObjectsOptions{
		Prefix:     prefix,
		Recursive:  true,
		StartAfter: continuationToken,
		MaxKeys:    maxKeys,
	}

	var page ListPage
	for obj := range s.client.ListObjects(listCtx, s.bucket, opts) {
		if obj.Err != nil {
			return ListPage{}, classify("list objects", prefix, obj.Err)
		}
		page.Objects = append(page.Objects, ObjectInfo{Key: obj.Key, Size: obj.Size})
		if len(page.Objects) >= maxKeys {
			cancel()
			break
		}
	}

	if len(page.Objects) >= maxKeys {
		page.NextToken = page.Objects[len(page.Objects)-1].Key
		page.Truncated = true
	}
	return page, nil
}

// UpdateMetadata rewrites the Cache-Control header via a copy-to-self.
func (s *S3Client) UpdateMetadata(ctx context.Context, key, cacheControl string) error {
	src := minio.CopySrcOptions{Bucket: s.bucket, Object: key}
	dst := minio.CopyDestOptions{
		Bucket:          s.bucket,
		Object:          key,
		ReplaceMetadata: true,
		UserMetadata:    map[string]string{"Cache-Control": cacheControl},
	}
	if _, err := s.client.CopyObject(ctx, dst, src); err != nil {
		return classify("update metadata", key, err)
	}
	return nil
}

// PublicURL returns the public URL for a remote key.
func (s *S3Client) PublicURL(key string) string {
	return s.baseURL + "/" + strings.TrimPrefix(key, "/")
}

var _ ObjectStorage = (*S3Client)(nil)
