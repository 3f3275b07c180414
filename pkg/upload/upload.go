// Package upload copies run artifacts to remote object storage.
package upload

import "context"

// Uploader uploads the artifacts of one run to remote storage.
type Uploader interface {
	// Preflight verifies that the remote storage is reachable and writable.
	// Writes a small test object to the bucket to fail fast on misconfiguration.
	Preflight(ctx context.Context) error

	// Upload uploads files under prefix + "/" + runID, keyed by file base
	// name, and returns the written keys.
	Upload(ctx context.Context, runID string, files []string) ([]string, error)
}
