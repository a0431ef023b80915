package cocina

import (
	"fmt"
	"path"

	"github.com/go-playground/validator/v10"

	"sdr-go/internal/sdr"
)

// Builder assembles RequestDRO documents from grouped uploads.
type Builder struct {
	validate *validator.Validate
}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	return &Builder{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Build returns a validated RequestDRO. The result depends only on its inputs.
func (b *Builder) Build(attrs sdr.ObjectAttributes, groups [][]sdr.UploadResponse, metadata map[string]sdr.FileMetadata, fileSetType sdr.FileSetTypeStrategy) (sdr.Document, error) {
	doc := &RequestDRO{
		Type:           ObjectType(attrs.Type),
		Label:          attrs.Label,
		Version:        1,
		Access:         objectAccess(attrs),
		Administrative: Administrative{HasAdminPolicy: attrs.AdminPolicy},
		Identification: identification(attrs),
		Structural:     structural(attrs),
	}
	if doc.Label == "" {
		doc.Label = AutoLabel
	} else {
		doc.Description = &Description{Title: []Title{{Value: attrs.Label}}}
	}

	doc.Structural.Contains = make([]FileSet, 0, len(groups))
	for i, group := range groups {
		doc.Structural.Contains = append(doc.Structural.Contains, fileSet(i+1, attrs.Type, group, metadata, fileSetType))
	}

	if err := b.validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid request document: %w", err)
	}
	return doc, nil
}

func objectAccess(attrs sdr.ObjectAttributes) Access {
	access := Access{
		View:                        valueOr(attrs.View, DefaultView),
		Download:                    valueOr(attrs.Download, DefaultDownload),
		Location:                    attrs.Location,
		Copyright:                   attrs.Copyright,
		UseAndReproductionStatement: attrs.UseStatement,
	}
	if attrs.Embargo != nil && attrs.Embargo.ReleaseDate != "" {
		access.Embargo = &Embargo{
			ReleaseDate: attrs.Embargo.ReleaseDate,
			View:        attrs.Embargo.View,
			Download:    attrs.Embargo.Download,
		}
	}
	return access
}

func identification(attrs sdr.ObjectAttributes) *Identification {
	var links []CatalogLink
	if attrs.Catkey != "" {
		links = append(links, CatalogLink{Catalog: "symphony", CatalogRecordID: attrs.Catkey, Refresh: true})
	}
	if attrs.FolioInstanceHRID != "" {
		links = append(links, CatalogLink{Catalog: "folio", CatalogRecordID: attrs.FolioInstanceHRID, Refresh: true})
	}
	if attrs.SourceID == "" && len(links) == 0 {
		return nil
	}
	return &Identification{SourceID: attrs.SourceID, CatalogLinks: links}
}

func structural(attrs sdr.ObjectAttributes) Structural {
	var s Structural
	if attrs.Collection != "" {
		s.IsMemberOf = []string{attrs.Collection}
	}
	if attrs.ViewingDirection != "" {
		s.HasMemberOrders = []Sequence{{ViewingDirection: attrs.ViewingDirection}}
	}
	return s
}

// fileSet builds the file set at 1-based position i.
func fileSet(i int, objectType string, group []sdr.UploadResponse, metadata map[string]sdr.FileMetadata, fileSetType sdr.FileSetTypeStrategy) FileSet {
	label := fmt.Sprintf("Object %d", i)
	if objectType == BookType || objectType == ObjectType(BookType) {
		label = fmt.Sprintf("Page %d", i)
	}

	files := make([]File, 0, len(group))
	for _, u := range group {
		files = append(files, fileNode(u, metadata[u.Filename]))
	}

	return FileSet{
		Type:       fileSetType.FileSetType(group, metadata),
		Label:      label,
		Version:    1,
		Structural: FileSetStructural{Contains: files},
	}
}

func fileNode(u sdr.UploadResponse, md sdr.FileMetadata) File {
	view := valueOr(md.View, DefaultView)
	dark := view == "dark"

	f := File{
		Type:               FileModelType,
		ExternalIdentifier: u.SignedID,
		Label:              path.Base(u.Filename),
		Filename:           u.Filename,
		Version:            1,
		HasMimeType:        md.MimeType,
		Use:                md.Use,
		Access: FileAccess{
			View:     view,
			Download: valueOr(md.Download, DefaultDownload),
		},
		Administrative: FileAdministrative{
			SDRPreserve: boolOr(md.Preserve, true),
			Shelve:      !dark && boolOr(md.Shelve, true),
			Publish:     !dark && boolOr(md.Publish, true),
		},
	}
	if md.MD5 != "" {
		f.HasMessageDigests = append(f.HasMessageDigests, MessageDigest{Type: "md5", Digest: md.MD5})
	}
	if md.SHA1 != "" {
		f.HasMessageDigests = append(f.HasMessageDigests, MessageDigest{Type: "sha1", Digest: md.SHA1})
	}
	return f
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

// Compile-time check that Builder implements sdr.DocumentBuilder interface
var _ sdr.DocumentBuilder = (*Builder)(nil)
