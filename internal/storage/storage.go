// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"fmt"

	"ca-schools-query/internal/query"
	"ca-schools-query/internal/schema"
)

// ErrStorageUnavailable is surfaced to callers and never retried here.
var ErrStorageUnavailable = errors.New("STORAGE_UNAVAILABLE")

// Unavailable wraps a backend error.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

// SchoolRecord is one school's result for one indicator and student group.
type SchoolRecord struct {
	CDS         string             `json:"cds"`
	SchoolName  string             `json:"school_name"`
	District    string             `json:"district"`
	County      string             `json:"county"`
	City        string             `json:"city,omitempty"`
	Indicator   schema.Indicator   `json:"indicator"`
	Demographic schema.Demographic `json:"demographic"`
	Value       *float64           `json:"value"`
	Change      *float64           `json:"change,omitempty"`
	// StatusCode is the reported dashboard color, 1 (red) through 5 (blue).
	StatusCode *int `json:"status_code,omitempty"`
	Year       int  `json:"year"`
}

// Cursor is a lazy, single-pass sequence of records. Total is the number
// of matches before the row cap and is final once Next returns false.
type Cursor interface {
	Next() bool
	Record() SchoolRecord
	Err() error
	Total() int
	Close() error
}

// Store executes a FilterSpec. Implementations must apply every filter,
// the sort and the limit; callers never post-filter.
type Store interface {
	Query(ctx context.Context, f query.FilterSpec) (Cursor, error)
	Name() string
}

// SliceCursor serves records already in memory.
type SliceCursor struct {
	records []SchoolRecord
	total   int
	pos     int
}

func NewSliceCursor(records []SchoolRecord, total int) *SliceCursor {
	if total < len(records) {
		total = len(records)
	}
	return &SliceCursor{records: records, total: total, pos: -1}
}

func (c *SliceCursor) Next() bool {
	if c.pos+1 >= len(c.records) {
		c.pos = len(c.records)
		return false
	}
	c.pos++
	return true
}

func (c *SliceCursor) Record() SchoolRecord { return c.records[c.pos] }
func (c *SliceCursor) Err() error           { return nil }
func (c *SliceCursor) Total() int           { return c.total }
func (c *SliceCursor) Close() error         { return nil }
