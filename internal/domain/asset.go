package domain

import "time"

// Asset is a media file tracked by the host system. LocalPath is relative to
// the configured upload root; RemoteKey and URL are empty until the asset has
// been offloaded.
type Asset struct {
	ID        int64     `json:"id" db:"id"`
	LocalPath string    `json:"local_path" db:"local_path"`
	RemoteKey string    `json:"remote_key,omitempty" db:"remote_key"`
	URL       string    `json:"url,omitempty" db:"url"`
	Migrated  bool      `json:"migrated" db:"migrated"`
	Size      int64     `json:"size" db:"size"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// MigratedRecord is the slim projection used when diffing repository records
// against the remote index.
type MigratedRecord struct {
	AssetID   int64  `json:"asset_id" db:"id"`
	LocalPath string `json:"local_path" db:"local_path"`
	RemoteKey string `json:"remote_key" db:"remote_key"`
}
