package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// PageRequest represents limit/offset pagination parameters
type PageRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// DefaultPageRequest returns a PageRequest with default values
func DefaultPageRequest() PageRequest {
	return PageRequest{Limit: DefaultLimit}
}

// PageResponse wraps one page of results
type PageResponse[T any] struct {
	Data    []T  `json:"data"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Count   int  `json:"count"`
	HasNext bool `json:"hasNext"`
}

// NewPageResponse builds a page. A full page is assumed to have a successor.
func NewPageResponse[T any](data []T, page PageRequest) PageResponse[T] {
	if data == nil {
		data = []T{}
	}
	return PageResponse[T]{
		Data:    data,
		Limit:   page.Limit,
		Offset:  page.Offset,
		Count:   len(data),
		HasNext: page.Limit > 0 && len(data) == page.Limit,
	}
}

// ParsePagination reads limit and offset from the query string, clamping bad values
func ParsePagination(c *gin.Context) PageRequest {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))
	if err != nil || limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	return PageRequest{Limit: limit, Offset: offset}
}
