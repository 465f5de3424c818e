package controller

import (
	"net/http"
	"strconv"

	"github.com/pump-pill/arenax/pkg/model"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type pageSpec struct {
	Page     int
	PageSize int
}

// parsePageSpec reads page (>= 1) and pageSize (1..100). An out-of-range page
// is not an error: an out-of-range slice later yields an empty data list. An
// oversized pageSize is rejected, never clamped.
func parsePageSpec(r *http.Request) (pageSpec, error) {
	qs := r.URL.Query()

	page := 1
	if v := qs.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return pageSpec{}, errInvalidPage
		}
		page = n
	}

	pageSize := defaultPageSize
	if v := qs.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return pageSpec{}, errInvalidPageSize
		}
		if n > maxPageSize {
			return pageSpec{}, errPageSizeTooLarge
		}
		pageSize = n
	}

	return pageSpec{Page: page, PageSize: pageSize}, nil
}

// paginate slices one page out of the full ranked list. Out-of-range pages
// yield an empty, non-nil slice; totalPages is never zero so clients can
// always page from 1.
func paginate(entries []model.LeaderboardEntry, spec pageSpec) ([]model.LeaderboardEntry, paginationInfo) {
	total := len(entries)
	totalPages := (total + spec.PageSize - 1) / spec.PageSize
	if totalPages == 0 {
		totalPages = 1
	}

	start := (spec.Page - 1) * spec.PageSize
	end := start + spec.PageSize
	data := []model.LeaderboardEntry{}
	if start < total {
		if end > total {
			end = total
		}
		data = entries[start:end]
	}

	return data, paginationInfo{
		Page:       spec.Page,
		PageSize:   spec.PageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}

var (
	errInvalidPage      = &parseError{msg: "invalid page, must be a positive integer"}
	errInvalidPageSize  = &parseError{msg: "invalid pageSize, must be a positive integer"}
	errPageSizeTooLarge = &parseError{msg: "pageSize exceeds the maximum of 100"}
)

type parseError struct{ msg string }

func (e *parseError) Error() string { return e.msg }
