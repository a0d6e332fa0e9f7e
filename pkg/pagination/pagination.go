package pagination

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
)

const (
	DefaultSize = 10
	MaxSize     = 100
)

// Params holds zero-based paging and sort parameters extracted from query strings.
type Params struct {
	Page      int    `json:"page"`
	Size      int    `json:"size"`
	SortField string `json:"sort"`
	SortDesc  bool   `json:"desc"`
}

// Offset returns the number of rows to skip.
func (p Params) Offset() int {
	return p.Page * p.Size
}

// MaxPage is the largest page whose offset fits in an int for the given size.
func MaxPage(size int) int {
	if size <= 0 {
		return math.MaxInt
	}
	return math.MaxInt / size
}

// DefaultParams returns page 0, size 10, newest first.
func DefaultParams() Params {
	return Params{
		Page:      0,
		Size:      DefaultSize,
		SortField: "createdAt",
		SortDesc:  true,
	}
}

// FromRequest extracts paging parameters from ?page=&size=&sort=field,dir.
// Malformed page and size values fall back to defaults. A sort field outside
// allowedSorts is an error; allowedSorts nil accepts any field.
func FromRequest(r *http.Request, allowedSorts []string) (Params, error) {
	p := DefaultParams()
	q := r.URL.Query()

	if page := q.Get("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v >= 0 {
			p.Page = v
		}
	}

	if size := q.Get("size"); size != "" {
		if v, err := strconv.Atoi(size); err == nil && v > 0 {
			p.Size = min(v, MaxSize)
		}
	}

	if p.Page > MaxPage(p.Size) {
		return p, fmt.Errorf("page %d is out of range for size %d", p.Page, p.Size)
	}

	if sort := q.Get("sort"); sort != "" {
		field, dir, _ := strings.Cut(sort, ",")
		field = strings.TrimSpace(field)
		if allowedSorts != nil && !contains(allowedSorts, field) {
			return p, fmt.Errorf("unsupported sort field %q", field)
		}
		p.SortField = field
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
			p.SortDesc = false
		case "desc":
			p.SortDesc = true
		default:
			return p, fmt.Errorf("unsupported sort direction %q", dir)
		}
	}

	return p, nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// PageMeta describes the position of a page within the full result set.
type PageMeta struct {
	Number        int `json:"number"`
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
}

// Page is the list response envelope.
type Page[T any] struct {
	Content []T      `json:"content"`
	Page    PageMeta `json:"page"`
}

// NewPage creates a page envelope from one page of data and the total count.
func NewPage[T any](content []T, totalElements int, params Params) Page[T] {
	size := params.Size
	if size <= 0 {
		size = DefaultSize
	}
	totalPages := totalElements / size
	if totalElements%size > 0 {
		totalPages++
	}
	if content == nil {
		content = []T{}
	}

	return Page[T]{
		Content: content,
		Page: PageMeta{
			Number:        params.Page,
			Size:          size,
			TotalElements: totalElements,
			TotalPages:    totalPages,
		},
	}
}
