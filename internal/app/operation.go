package app

import "sdr-go/internal/sdr"

// DepositOperation tracks a CLI operation for the local history.
// Operations are created in memory with ID=0. Only deposit, register and
// update persist them (giving them an auto-increment ID from the history).
type DepositOperation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string
	JobID      string
	Druid      string
}

// NewDepositOperation creates a new in-memory operation.
func NewDepositOperation(operation, parameters string) *DepositOperation {
	return &DepositOperation{
		Operation:  operation,
		Parameters: parameters,
		Status:     sdr.OperationSuccess,
	}
}

// Persisted returns true if this operation has been saved to the history.
func (op *DepositOperation) Persisted() bool {
	return op.ID != 0
}

// Record takes the outcome of a deposit call. A job that finished with
// errors or timed out counts as an error.
func (op *DepositOperation) Record(result *sdr.DepositResult, err error) {
	if err != nil {
		op.Status = sdr.OperationError
		return
	}
	op.JobID = result.JobID
	if result.Status == nil {
		op.Status = sdr.OperationSuccess
		return
	}
	op.Druid = result.Status.Druid()
	if result.Status.Succeeded() {
		op.Status = sdr.OperationSuccess
	} else {
		op.Status = sdr.OperationError
	}
}
