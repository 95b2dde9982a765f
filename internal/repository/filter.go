package repository

import (
	"strconv"
	"time"
)

// ProjectFilter is the listing filter parsed from query parameters. Zero
// values mean "no constraint".
type ProjectFilter struct {
	Search        string
	Statuses      []string
	Priorities    []string
	StartDateFrom *time.Time
	StartDateTo   *time.Time
	EndDateFrom   *time.Time
	EndDateTo     *time.Time
	SortBy        string
	SortOrder     string
	Page          int
	PerPage       int
}

// projectSortFields is the whitelist of sortable columns; anything else
// falls back to created_at.
var projectSortFields = map[string]bool{
	"name":       true,
	"status":     true,
	"start_date": true,
	"end_date":   true,
	"progress":   true,
	"budget":     true,
	"created_at": true,
}

const (
	defaultPerPage = 15
	maxPerPage     = 100
)

// Normalize clamps pagination and resolves the sort column and order.
func (f *ProjectFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = defaultPerPage
	}
	if f.PerPage > maxPerPage {
		f.PerPage = maxPerPage
	}
	if !projectSortFields[f.SortBy] {
		f.SortBy = "created_at"
	}
	if f.SortOrder != "asc" && f.SortOrder != "desc" {
		f.SortOrder = "desc"
	}
}

// TaskFilter narrows a project's task listing. Zero values mean "no
// constraint".
type TaskFilter struct {
	Status     string
	Priority   string
	AssignedTo int
}

// Page describes one page of a listing result.
type Page struct {
	Total       int `json:"total"`
	PerPage     int `json:"per_page"`
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
}

// NewPage computes the pagination block for a listing response.
func NewPage(total, perPage, currentPage int) Page {
	last := total / perPage
	if total%perPage != 0 || last == 0 {
		last++
	}
	return Page{
		Total:       total,
		PerPage:     perPage,
		CurrentPage: currentPage,
		LastPage:    last,
	}
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
