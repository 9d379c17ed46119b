package model

import "fmt"

// ValidationError reports a malformed or incomplete record. The record is
// skipped and processing continues.
type ValidationError struct {
	Field  string
	Reason string
	Record string // fixture or event identifier, if known
}

func (e *ValidationError) Error() string {
	if e.Record == "" {
		return fmt.Sprintf("invalid record: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid record %s: %s %s", e.Record, e.Field, e.Reason)
}

// DataIntegrityError reports a dedup key collision whose payload differs from
// the stored snapshot. The stored snapshot is kept; the new one is dropped.
type DataIntegrityError struct {
	Partition   Partition
	DedupKey    string
	StoredPrice float64
	NewPrice    float64
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("dedup key %s in %s: stored price %v conflicts with %v",
		e.DedupKey, e.Partition, e.StoredPrice, e.NewPrice)
}
