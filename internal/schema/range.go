package schema

import (
	"fmt"
	"strconv"
)

// Range is a numeric interval. A nil bound is unbounded on that side.
type Range struct {
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	MinInclusive bool     `json:"min_inclusive"`
	MaxInclusive bool     `json:"max_inclusive"`
}

func (r Range) Contains(v float64) bool {
	if r.Min != nil {
		if v < *r.Min || (v == *r.Min && !r.MinInclusive) {
			return false
		}
	}
	if r.Max != nil {
		if v > *r.Max || (v == *r.Max && !r.MaxInclusive) {
			return false
		}
	}
	return true
}

// Unbounded reports whether the range places no constraint at all.
func (r Range) Unbounded() bool {
	return r.Min == nil && r.Max == nil
}

func (r Range) String() string {
	lo, hi := "(-inf", "+inf)"
	if r.Min != nil {
		br := "("
		if r.MinInclusive {
			br = "["
		}
		lo = br + strconv.FormatFloat(*r.Min, 'f', -1, 64)
	}
	if r.Max != nil {
		br := ")"
		if r.MaxInclusive {
			br = "]"
		}
		hi = strconv.FormatFloat(*r.Max, 'f', -1, 64) + br
	}
	return fmt.Sprintf("%s, %s", lo, hi)
}

// Above returns (v, +inf), or [v, +inf) when inclusive.
func Above(v float64, inclusive bool) Range {
	return Range{Min: float64Ptr(v), MinInclusive: inclusive}
}

// Below returns (-inf, v), or (-inf, v] when inclusive.
func Below(v float64, inclusive bool) Range {
	return Range{Max: float64Ptr(v), MaxInclusive: inclusive}
}
