// Package validation reconciles a transferred table by row count and content fingerprint.
package validation

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/tablesync/pkg/batch/adapter/database"
	"github.com/tigerroll/tablesync/pkg/batch/adapter/database/query"
	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/tablesync/pkg/batch/core/metrics"
	logger "github.com/tigerroll/tablesync/pkg/batch/support/util/logger"
)

const moduleName = "validation"

// Validator compares the rows matching a filter on the source and target databases.
type Validator struct {
	provider database.ConnectionProvider
	source   string
	target   string
	recorder metrics.MetricRecorder
}

// NewValidator creates a Validator.
func NewValidator(provider database.ConnectionProvider, source, target string, recorder metrics.MetricRecorder) *Validator {
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	return &Validator{provider: provider, source: source, target: target, recorder: recorder}
}

// ValidateTable reports whether the table matches on both sides.
func (v *Validator) ValidateTable(ctx context.Context, table, primaryKey string, filter model.Filter) bool {
	result, err := v.Validate(ctx, table, primaryKey, filter)
	if err != nil {
		logger.Errorf("Validation of %s failed: %v", table, err)
		return false
	}
	return result.OK()
}

// Validate counts the matching rows on both sides and, when the counts agree, fingerprints
// them in primary-key order. Each side is read in one repeatable-read transaction.
// A mismatch is reported in the result; err is only set when a side could not be read.
func (v *Validator) Validate(ctx context.Context, table, primaryKey string, filter model.Filter) (result model.ValidationResult, err error) {
	result = model.ValidationResult{Table: table, Filter: filter}

	source, err := v.provider.Connect(ctx, v.source, sql.LevelRepeatableRead)
	if err != nil {
		return result, err
	}
	target, err := v.provider.Connect(ctx, v.target, sql.LevelRepeatableRead)
	if err != nil {
		_ = source.Close()
		return result, err
	}
	defer func() {
		var merr *multierror.Error
		if cerr := source.Close(); cerr != nil {
			merr = multierror.Append(merr, cerr)
		}
		if cerr := target.Close(); cerr != nil {
			merr = multierror.Append(merr, cerr)
		}
		if merr.ErrorOrNil() != nil {
			logger.Warnf("Closing validation connections for %s: %v", table, merr)
		}
	}()

	desc, err := database.Describe(ctx, source, table, primaryKey)
	if err != nil {
		return result, err
	}

	srcTx, err := source.Begin(ctx)
	if err != nil {
		return result, err
	}
	defer srcTx.Rollback()
	dstTx, err := target.Begin(ctx)
	if err != nil {
		return result, err
	}
	defer dstTx.Rollback()

	countQuery, err := query.NewCount(desc, filter)
	if err != nil {
		return result, err
	}
	if result.SourceCount, err = srcTx.Count(ctx, countQuery); err != nil {
		return result, err
	}
	if result.TargetCount, err = dstTx.Count(ctx, countQuery); err != nil {
		return result, err
	}
	result.RowCountMatch = result.SourceCount == result.TargetCount
	if !result.RowCountMatch {
		logger.Errorf("Row count mismatch for %s (%s): source=%d, target=%d", table, filter, result.SourceCount, result.TargetCount)
		v.recorder.RecordValidation(ctx, result)
		return result, nil
	}

	scan, err := query.NewScan(desc, filter)
	if err != nil {
		return result, err
	}
	if result.SourceHash, err = fingerprint(ctx, srcTx, scan); err != nil {
		return result, err
	}
	if result.TargetHash, err = fingerprint(ctx, dstTx, scan); err != nil {
		return result, err
	}
	result.ContentHashMatch = result.SourceHash == result.TargetHash
	v.recorder.RecordValidation(ctx, result)

	if !result.ContentHashMatch {
		logger.Errorf("Data hash mismatch for %s (%s): source=%s, target=%s", table, filter, result.SourceHash, result.TargetHash)
		return result, nil
	}
	logger.Infof("Validation passed for %s (%s): %d rows, hash %s.", table, filter, result.SourceCount, shortHash(result.SourceHash))
	return result, nil
}

func fingerprint(ctx context.Context, exec database.RowExecutor, scan query.Scan) (string, error) {
	fp := NewFingerprint()
	if err := exec.Scan(ctx, scan, func(row model.Row) error {
		fp.Add(row)
		return nil
	}); err != nil {
		return "", err
	}
	return fp.Sum(), nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return fmt.Sprintf("%s…", h[:12])
	}
	return h
}
