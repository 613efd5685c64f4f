package domain

import (
	"fmt"
	"strings"
)

// The error kinds below form the failure taxonomy of the comparison pipeline.
// Every kind is a distinct type so callers can branch with errors.As; no
// component downgrades one of these into a default value, since a silently
// empty result would be indistinguishable from a genuinely empty comparison.

// DataSourceError indicates a missing or malformed dataset source.
type DataSourceError struct {
	Source string
	Err    error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("dataset source %q: %v", e.Source, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// ConfigurationError indicates an invalid model/dimension pairing. It is
// raised before any embedding work is attempted.
type ConfigurationError struct {
	Model     string
	Dimension int
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s/%d: %s", e.Model, e.Dimension, e.Reason)
}

// IndexProvisioningError indicates that a vector collection could not be
// created or verified for a configuration.
type IndexProvisioningError struct {
	Collection string
	Err        error
}

func (e *IndexProvisioningError) Error() string {
	return fmt.Sprintf("provision collection %q: %v", e.Collection, e.Err)
}

func (e *IndexProvisioningError) Unwrap() error { return e.Err }

// UpsertError reports a partially applied batch write. FailedIDs names
// exactly the record ids that were not written, so a caller can retry only
// those.
type UpsertError struct {
	Collection string
	FailedIDs  []string
	Err        error
}

func (e *UpsertError) Error() string {
	ids := e.FailedIDs
	shown := ids
	if len(shown) > 5 {
		shown = shown[:5]
	}
	return fmt.Sprintf("upsert into %q failed for %d ids [%s%s]: %v",
		e.Collection, len(ids), strings.Join(shown, ","), ellipsis(len(ids) > len(shown)), e.Err)
}

func (e *UpsertError) Unwrap() error { return e.Err }

func ellipsis(truncated bool) string {
	if truncated {
		return ",..."
	}
	return ""
}

// QueryError indicates a failed top-K query, including the empty-collection
// case: querying a collection with zero upserted records is an error by
// policy, never a fabricated empty result.
type QueryError struct {
	Collection string
	Reason     string
	Err        error
}

func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("query collection %q: %s: %v", e.Collection, e.Reason, e.Err)
	}
	return fmt.Sprintf("query collection %q: %s", e.Collection, e.Reason)
}

func (e *QueryError) Unwrap() error { return e.Err }

// TimeoutError indicates that an embedding or index call exceeded its
// deadline.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }
