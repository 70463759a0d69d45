package storage

import (
	"slices"

	"github.com/poiesic/arxivsearch/core"
)

// Filter restricts queries by entry ID and by publication year.
// An empty field places no restriction; both fields must match when set.
type Filter struct {
	IDs   []string
	Years []string
}

// ByIDs returns a filter matching the given IDs.
func ByIDs(ids ...string) Filter {
	return Filter{IDs: ids}
}

// ByYears returns a filter matching the given years.
func ByYears(years ...string) Filter {
	return Filter{Years: years}
}

// IsEmpty reports whether the filter matches every entry.
func (f Filter) IsEmpty() bool {
	return len(f.IDs) == 0 && len(f.Years) == 0
}

// Matches reports whether entry satisfies the filter.
func (f Filter) Matches(entry *core.IndexEntry) bool {
	if entry == nil {
		return false
	}
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, entry.ID) {
		return false
	}
	if len(f.Years) > 0 && !slices.Contains(f.Years, entry.Metadata.Year) {
		return false
	}
	return true
}
