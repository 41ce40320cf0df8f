// Package enums provides the small enumeration types used by the web
// interface: record filter, page size and color theme. Values travel in
// cookies, so each type has a Parse function rejecting unknown input.
package enums

import (
	"fmt"
	"strconv"
)

// FilterMode selects which records the projection keeps
type FilterMode string

// filter modes, cycled all -> active -> archived -> all
const (
	FilterModeAll      FilterMode = "all"
	FilterModeActive   FilterMode = "active"
	FilterModeArchived FilterMode = "archived"
)

// ParseFilterMode converts a cookie value to a FilterMode
func ParseFilterMode(s string) (FilterMode, error) {
	switch FilterMode(s) {
	case FilterModeAll, FilterModeActive, FilterModeArchived:
		return FilterMode(s), nil
	}
	return FilterModeAll, fmt.Errorf("unknown filter mode %q", s)
}

func (m FilterMode) String() string { return string(m) }

// Next cycles to the following filter mode
func (m FilterMode) Next() FilterMode {
	switch m {
	case FilterModeAll:
		return FilterModeActive
	case FilterModeActive:
		return FilterModeArchived
	default:
		return FilterModeAll
	}
}

// PageSize is the number of records per page, 0 means unbounded
type PageSize int

// allowed page sizes
const (
	PageSize25        PageSize = 25
	PageSize50        PageSize = 50
	PageSize100       PageSize = 100
	PageSizeUnbounded PageSize = 0
)

// ParsePageSize converts a cookie or form value to a PageSize.
// The unbounded option is spelled "all" on the wire.
func ParsePageSize(s string) (PageSize, error) {
	if s == "all" {
		return PageSizeUnbounded, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return PageSize25, fmt.Errorf("invalid page size %q: %w", s, err)
	}
	switch PageSize(n) {
	case PageSize25, PageSize50, PageSize100:
		return PageSize(n), nil
	}
	return PageSize25, fmt.Errorf("unsupported page size %d", n)
}

func (p PageSize) String() string {
	if p == PageSizeUnbounded {
		return "all"
	}
	return strconv.Itoa(int(p))
}

// Unbounded reports whether pagination is disabled
func (p PageSize) Unbounded() bool { return p == PageSizeUnbounded }

// Theme represents UI color themes
type Theme string

// supported themes
const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme converts a cookie value to a Theme
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case ThemeLight, ThemeDark:
		return Theme(s), nil
	}
	return ThemeDark, fmt.Errorf("unknown theme %q", s)
}

func (t Theme) String() string { return string(t) }
