// Package memory is an in-process Store over a fixed snapshot. The CLI demo
// mode and the pipeline tests use it.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"ca-schools-query/internal/query"
	"ca-schools-query/internal/storage"
)

type Store struct {
	records []storage.SchoolRecord
}

// New copies records; later changes to the slice do not affect the store.
func New(records []storage.SchoolRecord) *Store {
	return &Store{records: append([]storage.SchoolRecord(nil), records...)}
}

// Load reads a JSON array of records.
func Load(r io.Reader) (*Store, error) {
	var records []storage.SchoolRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return New(records), nil
}

func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func (s *Store) Name() string { return "memory" }

func (s *Store) Len() int { return len(s.records) }

func (s *Store) Query(ctx context.Context, f query.FilterSpec) (storage.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.Unavailable(err)
	}

	loc := strings.ToLower(f.Location)
	var matched []storage.SchoolRecord
	for _, r := range s.records {
		if r.Indicator != f.Indicator || r.Demographic != f.Demographic {
			continue
		}
		if loc != "" && !locationMatches(r, loc) {
			continue
		}
		if f.Constrained() && (r.Value == nil || !f.Matches(*r.Value)) {
			continue
		}
		matched = append(matched, r)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return less(matched[i], matched[j], f.Sort.Descending)
	})

	total := len(matched)
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return storage.NewSliceCursor(matched, total), nil
}

func locationMatches(r storage.SchoolRecord, loc string) bool {
	for _, field := range []string{r.SchoolName, r.District, r.City, r.County} {
		if strings.Contains(strings.ToLower(field), loc) {
			return true
		}
	}
	return false
}

// less orders by value (nulls last), then school name, then CDS code.
func less(a, b storage.SchoolRecord, desc bool) bool {
	switch {
	case a.Value == nil && b.Value != nil:
		return false
	case a.Value != nil && b.Value == nil:
		return true
	case a.Value != nil && b.Value != nil && *a.Value != *b.Value:
		if desc {
			return *a.Value > *b.Value
		}
		return *a.Value < *b.Value
	}
	if a.SchoolName != b.SchoolName {
		return a.SchoolName < b.SchoolName
	}
	return a.CDS < b.CDS
}
