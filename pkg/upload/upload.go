// Package upload publishes report artifacts to remote storage.
package upload

import "context"

// Uploader uploads report artifacts to remote storage.
type Uploader interface {
	// Preflight verifies that the remote storage is reachable and writable.
	// Writes a small test object to the bucket to fail fast on misconfiguration.
	Preflight(ctx context.Context) error

	// UploadReport uploads the artifacts of a single report (the JSON
	// document and the markdown summary) under the configured prefix.
	UploadReport(ctx context.Context, paths ...string) error

	// UploadDir uploads all files in localDir under the configured prefix,
	// preserving the directory structure.
	UploadDir(ctx context.Context, localDir string) error
}
