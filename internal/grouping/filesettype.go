package grouping

import (
	"fmt"
	"strings"

	"sdr-go/internal/sdr"
)

// File set type names accepted in configuration and on the command line.
const (
	FileType  = "file"
	ImageType = "image"
)

const resourceTypeBase = "https://cocina.sul.stanford.edu/models/resources/"

// Resource type URIs of file sets.
const (
	FileResourceType  = resourceTypeBase + "file"
	ImageResourceType = resourceTypeBase + "image"
)

// NewFileSetType returns the file set type strategy registered under name.
func NewFileSetType(name string) (sdr.FileSetTypeStrategy, error) {
	switch name {
	case "", FileType:
		return FileStrategy{}, nil
	case ImageType:
		return ImageStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown file set type strategy: %q (valid: %s, %s)", name, FileType, ImageType)
	}
}

// FileStrategy types every file set as a generic file resource.
type FileStrategy struct{}

func (FileStrategy) FileSetType([]sdr.UploadResponse, map[string]sdr.FileMetadata) string {
	return FileResourceType
}

// ImageStrategy types a file set as an image resource when it holds at
// least one image. The metadata MIME type is preferred over the upload's
// content type.
type ImageStrategy struct{}

func (ImageStrategy) FileSetType(files []sdr.UploadResponse, metadata map[string]sdr.FileMetadata) string {
	for _, f := range files {
		mt := metadata[f.Filename].MimeType
		if mt == "" {
			mt = f.ContentType
		}
		if strings.HasPrefix(strings.ToLower(mt), "image/") {
			return ImageResourceType
		}
	}
	return FileResourceType
}

var (
	_ sdr.FileSetTypeStrategy = FileStrategy{}
	_ sdr.FileSetTypeStrategy = ImageStrategy{}
)
