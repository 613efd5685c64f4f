package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorKindsAreDistinguishable(t *testing.T) {
	base := fmt.Errorf("boom")

	var err error = &DataSourceError{Source: "movies.csv", Err: base}
	var dsErr *DataSourceError
	var queryErr *QueryError
	if !errors.As(err, &dsErr) {
		t.Error("DataSourceError not matched by errors.As")
	}
	if errors.As(err, &queryErr) {
		t.Error("DataSourceError must not match QueryError")
	}
	if !errors.Is(err, base) {
		t.Error("DataSourceError should unwrap to its cause")
	}
}

func TestUpsertErrorListsFailedIDs(t *testing.T) {
	err := &UpsertError{
		Collection: "movies-all-minilm-l6-v2-384",
		FailedIDs:  []string{"1", "2", "3"},
		Err:        fmt.Errorf("connection reset"),
	}

	msg := err.Error()
	for _, id := range []string{"1", "2", "3"} {
		if !strings.Contains(msg, id) {
			t.Errorf("Error message missing failed id %s: %s", id, msg)
		}
	}
	if !strings.Contains(msg, "3 ids") {
		t.Errorf("Error message missing count: %s", msg)
	}
}

func TestUpsertErrorTruncatesLongIDList(t *testing.T) {
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%02d", i)
	}
	err := &UpsertError{Collection: "c", FailedIDs: ids, Err: fmt.Errorf("x")}

	msg := err.Error()
	if !strings.Contains(msg, "20 ids") {
		t.Errorf("Error message missing total count: %s", msg)
	}
	if !strings.Contains(msg, "...") {
		t.Errorf("Long id list should be truncated with ellipsis: %s", msg)
	}
	if strings.Contains(msg, "id-10") {
		t.Errorf("Truncated message should not list all ids: %s", msg)
	}
}

func TestQueryErrorWithoutCause(t *testing.T) {
	err := &QueryError{Collection: "movies-x-384", Reason: "collection has no indexed records"}
	if err.Unwrap() != nil {
		t.Error("QueryError without cause should unwrap to nil")
	}
	if !strings.Contains(err.Error(), "no indexed records") {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}

func TestTimeoutErrorWraps(t *testing.T) {
	base := fmt.Errorf("deadline exceeded")
	err := &TimeoutError{Op: "embed query", Err: base}
	if !errors.Is(err, base) {
		t.Error("TimeoutError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "embed query") {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}
