package student

import (
	"math"
	"strings"
)

const (
	// DefaultPageSize is used when the requested size is not positive.
	DefaultPageSize = 10
	// MaxPageSize caps the requested size.
	MaxPageSize = 100
	// DefaultSortField is used when no sort field is requested.
	DefaultSortField = "name"
)

// SortDirection is the ordering applied to a page of students.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection matches "asc" and "desc" case-insensitively.
// Anything else, including the empty string, resolves to ascending.
func ParseSortDirection(s string) SortDirection {
	if strings.EqualFold(strings.TrimSpace(s), string(SortDesc)) {
		return SortDesc
	}
	return SortAsc
}

// FilterMode decides how name and email filters combine when both are given.
type FilterMode string

const (
	FilterAnd FilterMode = "and"
	FilterOr  FilterMode = "or"
)

// ParseFilterMode returns FilterAnd for anything other than "or".
func ParseFilterMode(s string) FilterMode {
	if strings.EqualFold(strings.TrimSpace(s), string(FilterOr)) {
		return FilterOr
	}
	return FilterAnd
}

// sortFields maps accepted sort field spellings to their canonical name.
var sortFields = map[string]string{
	"id":            "id",
	"name":          "name",
	"email":         "email",
	"dateofbirth":   "dateOfBirth",
	"date_of_birth": "dateOfBirth",
	"dob":           "dateOfBirth",
}

// NormalizeSortField returns the canonical name of a sortable field.
func NormalizeSortField(field string) (string, bool) {
	canonical, ok := sortFields[strings.ToLower(strings.TrimSpace(field))]
	return canonical, ok
}

// PageRequest describes a zero-based page of an ordered result set.
type PageRequest struct {
	Page      int64
	Size      int64
	SortField string
	Direction SortDirection
}

// NewPageRequest clamps page and size into range and fills sort defaults.
func NewPageRequest(page, size int64, sortField string, direction SortDirection) PageRequest {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	sortField = strings.TrimSpace(sortField)
	if sortField == "" {
		sortField = DefaultSortField
	}
	if direction == "" {
		direction = SortAsc
	}
	return PageRequest{
		Page:      page,
		Size:      size,
		SortField: sortField,
		Direction: direction,
	}
}

// Offset returns the number of rows skipped before this page. It saturates
// at math.MaxInt64 so a page far past the end stays past the end.
func (p PageRequest) Offset() int64 {
	if p.Page <= 0 || p.Size <= 0 {
		return 0
	}
	if p.Page > math.MaxInt64/p.Size {
		return math.MaxInt64
	}
	return p.Page * p.Size
}

// Pagination represents pagination information for list responses.
type Pagination struct {
	Total      int64 // Total number of records
	Page       int64 // Current page number (0-based)
	Size       int64 // Number of records per page
	TotalPages int64 // Total number of pages
}

// NewPagination creates a new Pagination instance with calculated total pages.
func NewPagination(total, page, size int64) *Pagination {
	var totalPages int64
	if size > 0 {
		totalPages = (total + size - 1) / size
	}

	return &Pagination{
		Total:      total,
		Page:       page,
		Size:       size,
		TotalPages: totalPages,
	}
}

// Page is one slice of students plus the metadata of the full result set.
type Page struct {
	Students   []Student
	Pagination *Pagination
}
