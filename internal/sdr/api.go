package sdr

import "context"

// TokenProvider supplies the bearer token for authenticated requests.
// RefreshToken is called at most once per request after a 401, with the
// token that was rejected. If that token has already been replaced, the
// replacement is returned without re-authenticating.
type TokenProvider interface {
	CurrentToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context, rejected string) (string, error)
}

// DirectUploader runs the two-phase direct upload of one file: register the
// upload, then PUT the content to the URL the server handed out.
type DirectUploader interface {
	Upload(ctx context.Context, file LocalFile, req UploadRequest) (*UploadResponse, error)
}

// ResourceAPI submits and retrieves deposit documents.
type ResourceAPI interface {
	// Create submits a new object and returns the background job id.
	Create(ctx context.Context, doc Document, opts CreateOptions) (string, error)

	// Update submits a new version of an existing object and returns the job id.
	Update(ctx context.Context, doc Document, opts UpdateOptions) (string, error)

	// Find returns the raw document of an object.
	Find(ctx context.Context, objectID string) ([]byte, error)
}

// JobStatusFetcher reads the current state of a background job.
type JobStatusFetcher interface {
	JobStatus(ctx context.Context, jobID string) (*JobStatus, error)
}
