package sdr

import "time"

// Operation statuses recorded in the history.
const (
	OperationRunning = "running"
	OperationSuccess = "success"
	OperationError   = "error"
)

// OperationRecord is one CLI operation in the local deposit history.
type OperationRecord struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string
	JobID      string
	Druid      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// History stores the local record of deposit operations.
type History interface {
	// CreateOperation records the start of an operation and assigns its ID.
	CreateOperation(operation, parameters string, startedAt time.Time) (*OperationRecord, error)

	// FinishOperation records the outcome of an operation.
	FinishOperation(id int64, status, jobID, druid string, finishedAt time.Time) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*OperationRecord, error)

	// Close releases the underlying storage.
	Close() error
}
