package store

import (
	"fmt"
	"strings"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

type Query struct {
	Filter     Filter
	Page       int
	PerPage    int
	Sort       string
	Projection []string
	Cacheable  bool
}

func (q Query) normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	return q
}

// cacheKey ignores the filter: only unfiltered lists are cached. The list:
// segment keeps list keys apart from the id: and one: keys of single reads.
func (q Query) cacheKey(resource string) string {
	return fmt.Sprintf("%s_list:%d_%d_%s_%s", resource, q.Page, q.PerPage, strings.Join(q.Projection, ","), q.Sort)
}

type Pagination struct {
	TotalDocs   int  `json:"totalDocs"`
	Page        int  `json:"page"`
	PerPage     int  `json:"perPage"`
	TotalPages  int  `json:"totalPages"`
	HasPrevPage bool `json:"hasPrevPage"`
	HasNextPage bool `json:"hasNextPage"`
	PrevPage    *int `json:"prevPage"`
	NextPage    *int `json:"nextPage"`
}

type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

func paginate(total, page, perPage int) Pagination {
	pages := (total + perPage - 1) / perPage
	if pages < 1 {
		pages = 1
	}
	p := Pagination{
		TotalDocs:   total,
		Page:        page,
		PerPage:     perPage,
		TotalPages:  pages,
		HasPrevPage: page > 1,
		HasNextPage: page < pages,
	}
	if p.HasPrevPage {
		prev := page - 1
		p.PrevPage = &prev
	}
	if p.HasNextPage {
		next := page + 1
		p.NextPage = &next
	}
	return p
}
