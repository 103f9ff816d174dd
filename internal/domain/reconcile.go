package domain

import "time"

// RemoteObject is one original (non-derivative) file found on the remote.
type RemoteObject struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// RemoteIndex maps relative paths to remote objects, built from one full
// listing pass. It is cached with a short TTL separately from ProcessorState
// because it can be large for big buckets.
type RemoteIndex struct {
	Objects    map[string]RemoteObject `json:"objects"`
	Generation string                  `json:"generation"`
	ScannedAt  time.Time               `json:"scanned_at"`
}

// Lookup returns the remote object for a relative path.
func (ix *RemoteIndex) Lookup(relPath string) (RemoteObject, bool) {
	obj, ok := ix.Objects[relPath]
	return obj, ok
}

// Len returns the number of original files in the index.
func (ix *RemoteIndex) Len() int {
	return len(ix.Objects)
}

// DiscrepancyReport is the read-only three-way split between repository
// records and remote objects.
type DiscrepancyReport struct {
	// OrphanRecords are marked migrated locally but absent from the remote.
	OrphanRecords []MigratedRecord `json:"orphan_records"`
	// OrphanObjects exist on the remote with no matching local record.
	OrphanObjects []RemoteObject `json:"orphan_objects"`
	// Consistent are present on both sides.
	Consistent []MigratedRecord `json:"consistent"`
	// Generation identifies the scan the report was built from.
	Generation string    `json:"generation"`
	ScannedAt  time.Time `json:"scanned_at"`
}
