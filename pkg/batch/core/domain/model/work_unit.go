package model

import (
	"fmt"
	"sort"
	"sync"
)

// Range is a half-open interval [Start, End) of ordinal row positions within the
// primary-key ordered, filtered row set of a table.
type Range struct {
	Start int64
	End   int64
}

// Len returns the number of rows in the range.
func (r Range) Len() int64 {
	return r.End - r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// WorkUnit is one partition of one table for one saga attempt.
type WorkUnit struct {
	WorkerID   int
	Table      string
	PrimaryKey string
	Range      Range
	Mode       Mode
	Filter     Filter
	// Completion is the completion state shared by every worker of the saga that owns it.
	Completion *CompletionState
}

// Name returns the display name of the unit's partition.
func (u WorkUnit) Name() string {
	return PartitionName(u.WorkerID)
}

// CompletionState records which partitions finished all their batches, and how many
// rows of each unfinished partition are already committed.
// It is safe for concurrent use; each worker writes only its own key.
type CompletionState struct {
	mu        sync.RWMutex
	done      map[int]bool
	committed map[int]int64
}

// NewCompletionState returns an empty state.
func NewCompletionState() *CompletionState {
	return &CompletionState{done: make(map[int]bool), committed: make(map[int]int64)}
}

// Committed returns the number of rows of workerID's range committed so far.
func (s *CompletionState) Committed(workerID int) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed[workerID]
}

// RecordCommit sets the number of rows of workerID's range committed so far.
func (s *CompletionState) RecordCommit(workerID int, rows int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed[workerID] = rows
}

// IsComplete reports whether workerID has been marked complete.
func (s *CompletionState) IsComplete(workerID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done[workerID]
}

// MarkComplete records that workerID committed its last batch.
func (s *CompletionState) MarkComplete(workerID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done[workerID] = true
}

// Completed returns the completed worker ids in ascending order.
func (s *CompletionState) Completed() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(s.done))
	for id, ok := range s.done {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// Row is one table row with values in TableDescriptor column order.
type Row []interface{}
