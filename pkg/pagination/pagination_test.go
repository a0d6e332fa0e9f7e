package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderSorts = []string{"createdAt", "updatedAt", "totalPrice"}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 0, p.Page)
	assert.Equal(t, 10, p.Size)
	assert.Equal(t, "createdAt", p.SortField)
	assert.True(t, p.SortDesc)
	assert.Equal(t, 0, p.Offset())
}

func TestFromRequest_Defaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	p, err := FromRequest(req, orderSorts)

	require.NoError(t, err)
	assert.Equal(t, DefaultParams(), p)
}

func TestFromRequest_CustomValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/items?page=3&size=50&sort=totalPrice,asc", nil)
	p, err := FromRequest(req, orderSorts)

	require.NoError(t, err)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 50, p.Size)
	assert.Equal(t, 150, p.Offset())
	assert.Equal(t, "totalPrice", p.SortField)
	assert.False(t, p.SortDesc)
}

func TestFromRequest_SortWithoutDirection_IsAscending(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/items?sort=updatedAt", nil)
	p, err := FromRequest(req, orderSorts)

	require.NoError(t, err)
	assert.Equal(t, "updatedAt", p.SortField)
	assert.False(t, p.SortDesc)
}

func TestFromRequest_SortDescending(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/items?sort=totalPrice,DESC", nil)
	p, err := FromRequest(req, orderSorts)

	require.NoError(t, err)
	assert.True(t, p.SortDesc)
}

func TestFromRequest_UnknownSortField(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/items?sort=password,asc", nil)
	_, err := FromRequest(req, orderSorts)
	assert.Error(t, err)
}

func TestFromRequest_UnknownSortDirection(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/items?sort=createdAt,sideways", nil)
	_, err := FromRequest(req, orderSorts)
	assert.Error(t, err)
}

func TestFromRequest_NilAllowList_AcceptsAnyField(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/items?sort=anything,desc", nil)
	p, err := FromRequest(req, nil)

	require.NoError(t, err)
	assert.Equal(t, "anything", p.SortField)
}

func TestFromRequest_InvalidValues_FallBack(t *testing.T) {
	tests := []struct {
		name  string
		query string
		page  int
		size  int
	}{
		{"negative page", "?page=-1", 0, 10},
		{"non-numeric page", "?page=abc", 0, 10},
		{"zero size", "?size=0", 0, 10},
		{"negative size", "?size=-5", 0, 10},
		{"size over max", "?size=500", 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil)
			p, err := FromRequest(req, orderSorts)
			require.NoError(t, err)
			assert.Equal(t, tt.page, p.Page)
			assert.Equal(t, tt.size, p.Size)
		})
	}
}

func TestFromRequest_PageBeyondIntRange(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"negative offset", "?page=922337203685477581&size=10"},
		{"offset wraps to zero", "?page=2305843009213693952&size=8"},
		{"default size", "?page=922337203685477581"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil)
			_, err := FromRequest(req, orderSorts)

			require.Error(t, err)
			assert.Contains(t, err.Error(), "out of range")
		})
	}
}

func TestFromRequest_LargestPageAccepted(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/items?page=922337203685477580&size=10", nil)
	p, err := FromRequest(req, orderSorts)

	require.NoError(t, err)
	assert.Equal(t, 922337203685477580, p.Page)
	assert.True(t, p.Offset() > 0)
}

func TestNewPage_ComputesTotalPages(t *testing.T) {
	page := NewPage([]string{"a", "b"}, 25, Params{Page: 0, Size: 10})
	assert.Equal(t, 3, page.Page.TotalPages)
	assert.Equal(t, 25, page.Page.TotalElements)
	assert.Equal(t, 0, page.Page.Number)
}

func TestNewPage_ExactDivision(t *testing.T) {
	page := NewPage([]int{1}, 20, Params{Page: 1, Size: 10})
	assert.Equal(t, 2, page.Page.TotalPages)
}

func TestNewPage_Empty(t *testing.T) {
	page := NewPage[string](nil, 0, DefaultParams())
	assert.NotNil(t, page.Content)
	assert.Empty(t, page.Content)
	assert.Equal(t, 0, page.Page.TotalPages)
}

func TestPage_JSONShape(t *testing.T) {
	data, err := json.Marshal(NewPage([]string{"x"}, 1, DefaultParams()))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"content":["x"],"page":{"number":0,"size":10,"totalElements":1,"totalPages":1}}`,
		string(data))
}
