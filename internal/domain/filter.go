package domain

import "time"

// FilterSpec is the structured filter contract shared by the chat and search
// endpoints. Zero-valued fields mean "no constraint"; Open is a pointer so
// open=false can be expressed.
type FilterSpec struct {
	Organization string
	Regions      []string
	Open         *bool
	DateFrom     *time.Time
	DateTo       *time.Time
	Sector       string
}

// IsEmpty reports whether no constraint is set.
func (f FilterSpec) IsEmpty() bool {
	return f.Organization == "" &&
		len(f.Regions) == 0 &&
		f.Open == nil &&
		f.DateFrom == nil &&
		f.DateTo == nil &&
		f.Sector == ""
}

// Validate rejects inverted date windows before any search executes.
func (f FilterSpec) Validate() error {
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return ErrInvalidDateRange
	}
	return nil
}

// MergeFilters combines filters extracted from free text with filters the
// caller supplied explicitly. Explicit values win on every key conflict.
func MergeFilters(explicit, extracted FilterSpec) FilterSpec {
	merged := explicit
	if merged.Organization == "" {
		merged.Organization = extracted.Organization
	}
	if len(merged.Regions) == 0 {
		merged.Regions = extracted.Regions
	}
	if merged.Open == nil {
		merged.Open = extracted.Open
	}
	if merged.DateFrom == nil {
		merged.DateFrom = extracted.DateFrom
	}
	if merged.DateTo == nil {
		merged.DateTo = extracted.DateTo
	}
	if merged.Sector == "" {
		merged.Sector = extracted.Sector
	}
	return merged
}
