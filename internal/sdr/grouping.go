package sdr

// GroupingStrategy partitions uploads into file-set groups. The order of the
// returned groups decides the visible file set labels.
type GroupingStrategy interface {
	Group(uploads []UploadResponse) [][]UploadResponse
}

// FileSetTypeStrategy picks the file set type URI for a group of files.
type FileSetTypeStrategy interface {
	FileSetType(files []UploadResponse, metadata map[string]FileMetadata) string
}
