// Package cocina holds the deposit request document sent to the repository
// and the builder that assembles it from grouped uploads.
package cocina

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Base of every model type URI.
const ModelsBase = "https://cocina.sul.stanford.edu/models/"

// Model type URIs used by the builder.
const (
	FileModelType = ModelsBase + "file"
	BookType      = "book"
)

// AutoLabel asks the server to assign the object label.
const AutoLabel = ":auto"

// Access defaults.
const (
	DefaultView     = "dark"
	DefaultDownload = "none"
)

// RequestDRO is a request to create a new digital repository object. It has
// no external identifier; the server assigns one.
type RequestDRO struct {
	Type           string          `json:"type" validate:"required,url"`
	Label          string          `json:"label" validate:"required"`
	Version        int             `json:"version" validate:"min=1"`
	Access         Access          `json:"access"`
	Administrative Administrative  `json:"administrative"`
	Description    *Description    `json:"description,omitempty"`
	Identification *Identification `json:"identification,omitempty"`
	Structural     Structural      `json:"structural"`
}

// Access is the object-level access policy.
type Access struct {
	View                        string   `json:"view" validate:"required,oneof=world stanford location-based citation-only dark"`
	Download                    string   `json:"download" validate:"required,oneof=world stanford location-based none"`
	Location                    string   `json:"location,omitempty"`
	Copyright                   string   `json:"copyright,omitempty"`
	UseAndReproductionStatement string   `json:"useAndReproductionStatement,omitempty"`
	Embargo                     *Embargo `json:"embargo,omitempty"`
}

// Embargo holds the access that applies once the release date passes.
type Embargo struct {
	ReleaseDate string `json:"releaseDate" validate:"required"`
	View        string `json:"view,omitempty" validate:"omitempty,oneof=world stanford location-based citation-only dark"`
	Download    string `json:"download,omitempty" validate:"omitempty,oneof=world stanford location-based none"`
}

type Administrative struct {
	HasAdminPolicy string `json:"hasAdminPolicy" validate:"required"`
}

type Description struct {
	Title []Title `json:"title" validate:"min=1,dive"`
}

type Title struct {
	Value string `json:"value" validate:"required"`
}

type Identification struct {
	SourceID     string        `json:"sourceId,omitempty"`
	CatalogLinks []CatalogLink `json:"catalogLinks,omitempty" validate:"dive"`
}

// CatalogLink points at a catalog record the object is refreshed from.
type CatalogLink struct {
	Catalog         string `json:"catalog" validate:"required,oneof=symphony folio"`
	CatalogRecordID string `json:"catalogRecordId" validate:"required"`
	Refresh         bool   `json:"refresh"`
}

type Structural struct {
	Contains        []FileSet  `json:"contains" validate:"dive"`
	IsMemberOf      []string   `json:"isMemberOf,omitempty"`
	HasMemberOrders []Sequence `json:"hasMemberOrders,omitempty"`
}

type Sequence struct {
	ViewingDirection string `json:"viewingDirection,omitempty" validate:"omitempty,oneof=left-to-right right-to-left"`
}

// FileSet is one group of files presented together.
type FileSet struct {
	Type       string            `json:"type" validate:"required,url"`
	Label      string            `json:"label" validate:"required"`
	Version    int               `json:"version" validate:"min=1"`
	Structural FileSetStructural `json:"structural"`
}

type FileSetStructural struct {
	Contains []File `json:"contains" validate:"min=1,dive"`
}

// File is one file node. ExternalIdentifier holds the signed id of the upload.
type File struct {
	Type               string             `json:"type" validate:"required"`
	ExternalIdentifier string             `json:"externalIdentifier" validate:"required"`
	Label              string             `json:"label" validate:"required"`
	Filename           string             `json:"filename" validate:"required"`
	Version            int                `json:"version" validate:"min=1"`
	HasMimeType        string             `json:"hasMimeType,omitempty"`
	Use                string             `json:"use,omitempty"`
	HasMessageDigests  []MessageDigest    `json:"hasMessageDigests,omitempty" validate:"dive"`
	Access             FileAccess         `json:"access"`
	Administrative     FileAdministrative `json:"administrative"`
}

type MessageDigest struct {
	Type   string `json:"type" validate:"oneof=md5 sha1"`
	Digest string `json:"digest" validate:"required,hexadecimal"`
}

type FileAccess struct {
	View     string `json:"view" validate:"required,oneof=world stanford location-based citation-only dark"`
	Download string `json:"download" validate:"required,oneof=world stanford location-based none"`
}

type FileAdministrative struct {
	Publish     bool `json:"publish"`
	SDRPreserve bool `json:"sdrPreserve"`
	Shelve      bool `json:"shelve"`
}

// ObjectType expands a short object type name such as "book" into its URI.
// Values that already are URIs are returned unchanged.
func ObjectType(name string) string {
	if name == "" {
		name = "object"
	}
	if strings.HasPrefix(name, "https://") || strings.HasPrefix(name, "http://") {
		return name
	}
	return ModelsBase + name
}

// MarshalJSON encodes the document with its fixed wire names.
func (d *RequestDRO) MarshalJSON() ([]byte, error) {
	type plain RequestDRO
	return json.Marshal((*plain)(d))
}

// ExternalIdentifier is always empty for a request.
func (d *RequestDRO) ExternalIdentifier() string {
	return ""
}

// Filenames lists the filename of every file node in document order.
func (d *RequestDRO) Filenames() []string {
	var names []string
	for _, fs := range d.Structural.Contains {
		for _, f := range fs.Structural.Contains {
			names = append(names, f.Filename)
		}
	}
	return names
}

// LinkFiles replaces the external identifier of every file node with the
// signed id of the upload of the same name.
func (d *RequestDRO) LinkFiles(signedIDs map[string]string) error {
	for i := range d.Structural.Contains {
		files := d.Structural.Contains[i].Structural.Contains
		for j := range files {
			id, ok := signedIDs[files[j].Filename]
			if !ok {
				return fmt.Errorf("no upload for file %s", files[j].Filename)
			}
			files[j].ExternalIdentifier = id
		}
	}
	return nil
}
