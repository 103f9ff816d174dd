package storage

import "context"

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// PutResult is returned by a successful upload.
type PutResult struct {
	Key string
	URL string
}

// ListPage is one page of a paginated listing.
type ListPage struct {
	Objects   []ObjectInfo
	NextToken string
	Truncated bool
}

// ObjectStorage captures the S3-compatible operations the offload workflows
// need. All methods may return a classified *Error carrying a
// machine-readable code.
type ObjectStorage interface {
	Put(ctx context.Context, localPath, remoteKey, contentType string, metadata map[string]string) (PutResult, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	DeleteBatch(ctx context.Context, keys []string) error
	Head(ctx context.Context, key string) (bool, error)
	Copy(ctx context.Context, srcKey, dstKey string) error
	List(ctx context.Context, prefix, continuationToken string, maxKeys int) (ListPage, error)
	// UpdateMetadata rewrites the object's Cache-Control header via a
	// copy-to-self.
	UpdateMetadata(ctx context.Context, key, cacheControl string) error
	// PublicURL derives the public URL an existing remote key is served
	// from, without touching the remote.
	PublicURL(key string) string
}
