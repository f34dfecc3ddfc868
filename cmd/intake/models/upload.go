package models

import "time"

// FileGrant authorizes one direct client upload to a staging path.
// The storage layer rejects writes after Expires.
type FileGrant struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	StoragePath string    `json:"storagePath"`
	URL         string    `json:"url"`
	Expires     time.Time `json:"-"`
}

// UploadBatch groups the grants issued for one stage-uploads call.
// It is never persisted; abandoned batches become orphaned staging
// objects bounded by the short grant expiry.
type UploadBatch struct {
	UploadID string      `json:"uploadId"`
	Grants   []FileGrant `json:"signed"`
}
