// Package partitioner splits a table's row set into contiguous ranges, one per worker.
package partitioner

import (
	"fmt"

	model "github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tablesync/pkg/batch/support/util/logger"
)

const moduleName = "partitioner"

// Partitioner computes the ranges of a table transfer.
type Partitioner interface {
	// Partition returns ranges that are contiguous, non-overlapping and cover [0, totalRows).
	Partition(totalRows int64, workerCount int) ([]model.Range, error)
}

// RangePartitioner assigns totalRows/workerCount rows to each partition; the last
// partition absorbs the remainder.
type RangePartitioner struct{}

// NewRangePartitioner creates a new instance of [RangePartitioner].
func NewRangePartitioner() *RangePartitioner {
	return &RangePartitioner{}
}

// Partition implements [Partitioner]. When there are fewer rows than workers, one
// partition per row is returned. Zero rows yield no partitions.
func (p *RangePartitioner) Partition(totalRows int64, workerCount int) ([]model.Range, error) {
	if workerCount <= 0 {
		return nil, exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("worker count must be positive, got %d", workerCount))
	}
	if totalRows < 0 {
		return nil, exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("row count must not be negative, got %d", totalRows))
	}
	if totalRows == 0 {
		return nil, nil
	}

	n := int64(workerCount)
	if n > totalRows {
		n = totalRows
	}
	perWorker := totalRows / n
	if perWorker < 1 {
		perWorker = 1
	}

	ranges := make([]model.Range, n)
	for i := int64(0); i < n; i++ {
		end := (i + 1) * perWorker
		if i == n-1 {
			end = totalRows
		}
		ranges[i] = model.Range{Start: i * perWorker, End: end}
	}
	logger.Debugf("Partitioned %d rows into %d ranges of ~%d rows.", totalRows, n, perWorker)
	return ranges, nil
}

// WorkUnits builds one work unit per range, numbered from 0, all sharing completion.
func WorkUnits(table, primaryKey string, ranges []model.Range, mode model.Mode, filter model.Filter, completion *model.CompletionState) []model.WorkUnit {
	units := make([]model.WorkUnit, len(ranges))
	for i, r := range ranges {
		units[i] = model.WorkUnit{
			WorkerID:   i,
			Table:      table,
			PrimaryKey: primaryKey,
			Range:      r,
			Mode:       mode,
			Filter:     filter,
			Completion: completion,
		}
	}
	return units
}

var _ Partitioner = (*RangePartitioner)(nil)
