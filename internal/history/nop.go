package history

import (
	"time"

	"sdr-go/internal/sdr"
)

// NopHistory records nothing. It backs the "none" history type.
type NopHistory struct {
	nextID int64
}

func NewNopHistory() *NopHistory {
	return &NopHistory{}
}

func (h *NopHistory) CreateOperation(operation, parameters string, startedAt time.Time) (*sdr.OperationRecord, error) {
	h.nextID++
	return &sdr.OperationRecord{
		ID:         h.nextID,
		Operation:  operation,
		Parameters: parameters,
		Status:     sdr.OperationRunning,
		StartedAt:  startedAt,
	}, nil
}

func (h *NopHistory) FinishOperation(int64, string, string, string, time.Time) error { return nil }

func (h *NopHistory) ListOperations(int) ([]*sdr.OperationRecord, error) { return nil, nil }

func (h *NopHistory) Close() error { return nil }

var _ sdr.History = (*NopHistory)(nil)
