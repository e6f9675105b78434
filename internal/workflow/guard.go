package workflow

import (
	"errors"
	"fmt"
	"time"
)

// ErrStale marks a write based on an outdated read of the chapter.
var ErrStale = errors.New("stale write")

// Freshness carries what the client last saw of a chapter. Either field may be
// omitted; with both omitted the write is accepted unconditionally.
type Freshness struct {
	ExpectedVersion *int64
	LastSeen        *time.Time
}

// Supplied reports whether the client sent any freshness information.
func (f Freshness) Supplied() bool {
	return f.ExpectedVersion != nil || f.LastSeen != nil
}

// Check compares the client's view with the persisted version and timestamp.
// Timestamps compare at millisecond precision, the precision clients echo back.
func (f Freshness) Check(currentVersion int64, currentUpdatedAt time.Time) error {
	if f.ExpectedVersion != nil && *f.ExpectedVersion != currentVersion {
		return fmt.Errorf("%w: expected version %d, current version %d", ErrStale, *f.ExpectedVersion, currentVersion)
	}
	if f.LastSeen != nil {
		persisted := currentUpdatedAt.UTC().Truncate(time.Millisecond)
		seen := f.LastSeen.UTC().Truncate(time.Millisecond)
		if persisted.After(seen) {
			return fmt.Errorf("%w: chapter modified at %s", ErrStale, persisted.Format(time.RFC3339Nano))
		}
	}
	return nil
}
