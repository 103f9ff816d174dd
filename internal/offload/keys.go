package offload

import (
	"path"
	"strings"
)

// KeyBuilder derives remote object keys from relative local paths. The
// derivation is deterministic: the same local path always yields the same
// key, scoped by provider and environment so several sites can share one
// bucket without collisions.
type KeyBuilder struct {
	Provider    string
	Environment string
	Prefix      string
}

// RemoteKey maps a relative local path into the scoped namespace.
func (b KeyBuilder) RemoteKey(relPath string) string {
	rel := path.Clean(strings.TrimPrefix(strings.ReplaceAll(relPath, "\\", "/"), "/"))
	return path.Join(b.Prefix, b.Provider, b.Environment, rel)
}

// ScanPrefix is the listing prefix covering every key this builder can
// produce.
func (b KeyBuilder) ScanPrefix() string {
	return path.Join(b.Prefix, b.Provider, b.Environment) + "/"
}

// RelFromKey inverts RemoteKey. The second return is false for keys outside
// this builder's namespace.
func (b KeyBuilder) RelFromKey(key string) (string, bool) {
	prefix := b.ScanPrefix()
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	rel := strings.TrimPrefix(key, prefix)
	if rel == "" {
		return "", false
	}
	return rel, true
}
