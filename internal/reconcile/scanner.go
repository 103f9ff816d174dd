package reconcile

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/offloadops/offload/internal/domain"
	"github.com/offloadops/offload/internal/offload"
	"github.com/offloadops/offload/internal/storage"
	"github.com/rs/zerolog/log"
)

// derivativePattern matches generated size variants by the -WxH.ext naming
// convention (e.g. photo-150x150.jpg). Only originals enter the index.
var derivativePattern = regexp.MustCompile(`-\d+x\d+\.[A-Za-z0-9]+$`)

// IsDerivativePath reports whether a relative path names a generated
// derivative rather than an original.
func IsDerivativePath(relPath string) bool {
	return derivativePattern.MatchString(relPath)
}

// Scanner builds a RemoteIndex from one full paginated listing of the
// scoped namespace.
type Scanner struct {
	store    storage.ObjectStorage
	keys     offload.KeyBuilder
	pageSize int
}

func NewScanner(store storage.ObjectStorage, keys offload.KeyBuilder) *Scanner {
	return &Scanner{store: store, keys: keys, pageSize: 1000}
}

// Scan lists every object under the scan prefix, filters out derivatives and
// foreign keys, and returns a fresh index.
func (s *Scanner) Scan(ctx context.Context) (*domain.RemoteIndex, error) {
	index := &domain.RemoteIndex{
		Objects:    make(map[string]domain.RemoteObject),
		Generation: uuid.NewString(),
		ScannedAt:  time.Now().UTC(),
	}

	started := time.Now()
	var token string
	var pages int
	for {
		page, err := s.store.List(ctx, s.keys.ScanPrefix(), token, s.pageSize)
		if err != nil {
			return nil, fmt.Errorf("list remote objects: %w", err)
		}
		pages++

		for _, obj := range page.Objects {
			rel, ok := s.keys.RelFromKey(obj.Key)
			if !ok {
				continue
			}
			if IsDerivativePath(rel) {
				continue
			}
			index.Objects[rel] = domain.RemoteObject{Key: obj.Key, Size: obj.Size}
		}

		if !page.Truncated {
			break
		}
		token = page.NextToken
	}

	log.Info().
		Int("originals", index.Len()).
		Int("pages", pages).
		Dur("elapsed", time.Since(started)).
		Str("generation", index.Generation).
		Msg("remote scan complete")

	return index, nil
}
