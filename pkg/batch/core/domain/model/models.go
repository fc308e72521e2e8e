// Package model defines the domain types shared by the transfer engine:
// table descriptors, work units, filters, modes and run outcomes.
package model

import (
	"fmt"

	"github.com/google/uuid"
)

// TransferStatus represents the state of a table transfer or a whole run.
type TransferStatus string

const (
	TransferStatusStarted   TransferStatus = "STARTED"
	TransferStatusCompleted TransferStatus = "COMPLETED"
	TransferStatusFailed    TransferStatus = "FAILED"
	TransferStatusSkipped   TransferStatus = "SKIPPED"
)

// String returns the string representation of the TransferStatus.
func (s TransferStatus) String() string {
	return string(s)
}

// IsFinished checks if the TransferStatus represents a finished state.
func (s TransferStatus) IsFinished() bool {
	switch s {
	case TransferStatusCompleted, TransferStatusFailed, TransferStatusSkipped:
		return true
	default:
		return false
	}
}

// NewID generates a new UUID string, used to correlate the log lines and spans of one run.
func NewID() string {
	return uuid.New().String()
}

// PartitionName returns the display name of the partition with the given worker id.
func PartitionName(index int) string {
	return fmt.Sprintf("partition%d", index)
}
