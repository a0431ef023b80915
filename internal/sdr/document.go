package sdr

import "encoding/json"

// Document is a deposit request document ready for submission. The schema
// is opaque to the pipeline beyond the linkage between file nodes and uploads.
type Document interface {
	json.Marshaler

	// ExternalIdentifier is the object id; empty for new objects.
	ExternalIdentifier() string

	// Filenames lists the filename of every file node, in document order.
	Filenames() []string

	// LinkFiles sets each file node's external identifier to the signed id
	// of the upload with the same filename.
	LinkFiles(signedIDs map[string]string) error
}

// DocumentBuilder assembles a deposit document from grouped uploads.
// The same inputs always produce the same document.
type DocumentBuilder interface {
	Build(attrs ObjectAttributes, groups [][]UploadResponse, metadata map[string]FileMetadata, fileSetType FileSetTypeStrategy) (Document, error)
}
