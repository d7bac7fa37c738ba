package aliascache

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStore marks a backing-store failure. It is distinct from "not found":
// missing records are simply absent from results and never produce an error.
var ErrStore = errors.New("aliascache: backing store failure")

func storeErr(op string, n int, err error) error {
	return fmt.Errorf("%w: %s %d alias(es): %w", ErrStore, op, n, err)
}

// CleanError reports a Clean that could not guarantee the alias is gone from
// every cache it touches. A failed generation bump alone, or a failed delete
// alone, is not an error: either one is enough to stop the entry being served.
type CleanError struct {
	ID        ID
	BumpErr   error
	DelErr    error
	MetaErr   error
	MarkerErr error
}

func (e *CleanError) Error() string {
	var parts []string
	if e.BumpErr != nil && e.DelErr != nil {
		parts = append(parts, fmt.Sprintf("gen bump and delete failed: bump=%v; delete=%v", e.BumpErr, e.DelErr))
	}
	if e.MetaErr != nil {
		parts = append(parts, fmt.Sprintf("meta delete failed: %v", e.MetaErr))
	}
	if e.MarkerErr != nil {
		parts = append(parts, fmt.Sprintf("last_changed write failed: %v", e.MarkerErr))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("clean alias %d: unknown error", e.ID)
	}
	return fmt.Sprintf("clean alias %d: %s", e.ID, strings.Join(parts, "; "))
}

func (e *CleanError) Unwrap() []error {
	errs := make([]error, 0, 4)
	for _, err := range []error{e.BumpErr, e.DelErr, e.MetaErr, e.MarkerErr} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// failed reports whether e carries anything worth returning.
func (e *CleanError) failed() bool {
	return (e.BumpErr != nil && e.DelErr != nil) || e.MetaErr != nil || e.MarkerErr != nil
}
