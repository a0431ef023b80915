package sdr

// FileInspector reads local files for a deposit.
type FileInspector interface {
	// Resolve verifies that every path exists under baseDir, in order.
	// The first missing file fails with a *PreconditionError naming it.
	Resolve(baseDir string, paths []string) ([]LocalFile, error)

	// Collect computes the MIME type and md5/sha1 hex digests of each file,
	// merged under overrides: caller-supplied keys win, the collector fills
	// only what is missing.
	Collect(baseDir string, paths []string, overrides map[string]FileMetadata) (map[string]FileMetadata, error)

	// UploadRequests builds one UploadRequest per file, keyed by relative path.
	UploadRequests(files []LocalFile, metadata map[string]FileMetadata) (map[string]UploadRequest, error)
}
