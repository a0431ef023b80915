package sdr

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LocalFile is a file on disk that is part of a deposit.
// It is created once per deposit, after the file has been found on disk.
type LocalFile struct {
	RelativePath string
	AbsolutePath string
	ByteSize     int64
}

// FileMetadata is the per-file supplementary metadata of a deposit.
// Pointer fields distinguish "not supplied" from an explicit false.
type FileMetadata struct {
	View     string `json:"view,omitempty"`
	Download string `json:"download,omitempty"`
	Preserve *bool  `json:"preserve,omitempty"`
	Shelve   *bool  `json:"shelve,omitempty"`
	Publish  *bool  `json:"publish,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	MD5      string `json:"md5,omitempty"`
	SHA1     string `json:"sha1,omitempty"`
	Use      string `json:"use,omitempty"`
}

// UploadRequest asks the server for a direct upload slot.
// Checksum is the base64-encoded MD5 of the content.
type UploadRequest struct {
	Filename    string `json:"filename"`
	ByteSize    int64  `json:"byte_size"`
	Checksum    string `json:"checksum"`
	ContentType string `json:"content_type"`
}

// UploadResponse is the server's answer to an UploadRequest.
// SignedID is the durable reference to the uploaded blob. DirectUploadURL and
// DirectUploadHeaders are single use and expire server side.
type UploadResponse struct {
	ID                  string
	Key                 string
	Filename            string
	ByteSize            int64
	ContentType         string
	Checksum            string
	SignedID            string
	DirectUploadURL     string
	DirectUploadHeaders map[string]string
}

// Embargo defers release of an object. View and Download apply after ReleaseDate.
type Embargo struct {
	ReleaseDate string
	View        string
	Download    string
}

// ObjectAttributes are the object-level attributes of a deposit.
// Type is a short object type name such as "book" or "object".
type ObjectAttributes struct {
	Label             string
	Type              string
	View              string
	Download          string
	Copyright         string
	UseStatement      string
	Location          string
	AdminPolicy       string
	Collection        string
	SourceID          string
	Catkey            string
	FolioInstanceHRID string
	ViewingDirection  string
	Embargo           *Embargo
}

// CreateOptions are the query parameters of a create-resource call.
type CreateOptions struct {
	Accession    bool
	Priority     string
	AssignDOI    bool
	UserVersions string
}

// UpdateOptions are the query parameters of an update-resource call.
type UpdateOptions struct {
	VersionDescription string
	UserVersions       string
}

// Job states reported by the background job endpoint.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobComplete   = "complete"
)

// JobError is a single error reported by a background job.
type JobError struct {
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e JobError) String() string {
	switch {
	case e.Title == "":
		return e.Message
	case e.Message == "":
		return e.Title
	default:
		return e.Title + ": " + e.Message
	}
}

// UnmarshalJSON accepts either an object or a bare string.
func (e *JobError) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*e = JobError{Message: s}
		return nil
	}
	type plain JobError
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decoding job error: %w", err)
	}
	*e = JobError(p)
	return nil
}

// JobOutput is the output block of a background job result.
type JobOutput struct {
	Druid  string     `json:"druid,omitempty"`
	Errors []JobError `json:"errors,omitempty"`
}

// JobStatus is the state of a background job. It is only mutated by polling.
type JobStatus struct {
	JobID    string    `json:"-"`
	Status   string    `json:"status"`
	Output   JobOutput `json:"output"`
	TimedOut bool      `json:"-"`
}

// Complete reports whether the job reached a terminal state.
func (s *JobStatus) Complete() bool {
	return s.TimedOut || s.Status == JobComplete
}

// Errors returns the job errors, including a synthesized one on timeout.
func (s *JobStatus) Errors() []JobError {
	return s.Output.Errors
}

// Succeeded reports whether the job completed without errors.
func (s *JobStatus) Succeeded() bool {
	return s.Complete() && !s.TimedOut && len(s.Output.Errors) == 0
}

// Druid returns the object identifier assigned by the job, if any.
func (s *JobStatus) Druid() string {
	return s.Output.Druid
}

// ErrorSummary joins all job errors into one line.
func (s *JobStatus) ErrorSummary() string {
	parts := make([]string, 0, len(s.Output.Errors))
	for _, e := range s.Output.Errors {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, "; ")
}
