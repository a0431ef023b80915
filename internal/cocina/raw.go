package cocina

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// RawDocument is a request document supplied by the caller. Only the parts
// needed for file linkage are interpreted; all other fields round-trip
// unchanged.
type RawDocument struct {
	fields map[string]any
}

// ParseDocument decodes a JSON document. It must be an object with a type.
func ParseDocument(data []byte) (*RawDocument, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("decoding document: not a JSON object")
	}
	if t, _ := fields["type"].(string); t == "" {
		return nil, fmt.Errorf("document has no type")
	}
	return &RawDocument{fields: fields}, nil
}

// ReadDocument reads and parses a document file.
func ReadDocument(path string) (*RawDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	return ParseDocument(data)
}

func (d *RawDocument) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.fields)
}

// ExternalIdentifier returns the object id, empty for a request document.
func (d *RawDocument) ExternalIdentifier() string {
	id, _ := d.fields["externalIdentifier"].(string)
	return id
}

// FileSetCount returns the number of file sets in the document.
func (d *RawDocument) FileSetCount() int {
	return len(d.fileSets())
}

// Filenames lists the filename of every file node in document order.
func (d *RawDocument) Filenames() []string {
	var names []string
	d.eachFile(func(file map[string]any) {
		name, _ := file["filename"].(string)
		names = append(names, name)
	})
	return names
}

// LinkFiles sets each file node's externalIdentifier to the signed id of
// the upload with the same filename.
func (d *RawDocument) LinkFiles(signedIDs map[string]string) error {
	var err error
	d.eachFile(func(file map[string]any) {
		if err != nil {
			return
		}
		name, _ := file["filename"].(string)
		id, ok := signedIDs[name]
		if !ok {
			err = fmt.Errorf("no upload for file %s", name)
			return
		}
		file["externalIdentifier"] = id
	})
	return err
}

func (d *RawDocument) fileSets() []any {
	structural, _ := d.fields["structural"].(map[string]any)
	contains, _ := structural["contains"].([]any)
	return contains
}

func (d *RawDocument) eachFile(fn func(map[string]any)) {
	for _, fs := range d.fileSets() {
		fileSet, _ := fs.(map[string]any)
		structural, _ := fileSet["structural"].(map[string]any)
		files, _ := structural["contains"].([]any)
		for _, f := range files {
			if file, ok := f.(map[string]any); ok {
				fn(file)
			}
		}
	}
}
