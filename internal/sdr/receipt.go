package sdr

import (
	"context"
	"io"
	"time"
)

// ReceiptStore keeps deposit receipts. All operations stream through
// io.Reader/io.Writer.
type ReceiptStore interface {
	// PutReceipt stores a receipt under key. size is the number of bytes
	// that will be read from r. Storing the same key twice overwrites it.
	PutReceipt(ctx context.Context, key string, r io.Reader, size int64) error

	// GetReceipt writes the receipt stored under key to w.
	GetReceipt(ctx context.Context, key string, w io.Writer) error

	// ValidateSetup verifies that the store is accessible.
	ValidateSetup(ctx context.Context) error
}

// Receipt records the outcome of a deposit whose job reached a terminal state.
type Receipt struct {
	Operation   string        `json:"operation"`
	JobID       string        `json:"job_id"`
	Druid       string        `json:"druid,omitempty"`
	Status      string        `json:"status"`
	TimedOut    bool          `json:"timed_out,omitempty"`
	Errors      []JobError    `json:"errors,omitempty"`
	CompletedAt time.Time     `json:"completed_at"`
	Files       []ReceiptFile `json:"files"`
}

// ReceiptFile is one deposited file as recorded in a receipt.
type ReceiptFile struct {
	Filename string `json:"filename"`
	SignedID string `json:"signed_id"`
	ByteSize int64  `json:"byte_size"`
	MimeType string `json:"mime_type,omitempty"`
	MD5      string `json:"md5,omitempty"`
	SHA1     string `json:"sha1,omitempty"`
}

// ReceiptKey is the storage key of the receipt for a job.
func ReceiptKey(jobID string) string {
	return "receipts/" + jobID + ".json"
}
