package model

// ValidationResult is the reconciliation outcome of one table (or one filtered window of it).
type ValidationResult struct {
	Table            string
	Filter           Filter
	SourceCount      int64
	TargetCount      int64
	RowCountMatch    bool
	ContentHashMatch bool
	// SourceHash and TargetHash are hex digests; empty when counts differed and hashing was skipped.
	SourceHash string
	TargetHash string
}

// OK reports whether both the row counts and the content hashes agree.
func (r ValidationResult) OK() bool {
	return r.RowCountMatch && r.ContentHashMatch
}
