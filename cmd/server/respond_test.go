package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	maxInt := strconv.Itoa(int(^uint(0) >> 1))

	tests := []struct {
		name     string
		query    string
		want     []int
		hasNext  bool
		hasPrev  bool
		paginate bool
	}{
		{"no limit", "", nil, false, false, false},
		{"first page", "limit=2", []int{1, 2}, true, false, true},
		{"middle page", "limit=2&offset=2", []int{3, 4}, true, true, true},
		{"offset past end", "limit=2&offset=10", []int{}, false, true, true},
		{"huge limit", "limit=" + maxInt + "&offset=1", []int{2, 3, 4, 5}, false, true, true},
		{"huge offset", "limit=2&offset=" + maxInt, []int{}, false, true, true},
		{"huge both", "limit=" + maxInt + "&offset=" + maxInt, []int{}, false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/posts?"+tt.query, nil)
			p, ok := paginate(r, items)
			require.Equal(t, tt.paginate, ok)
			if !ok {
				return
			}
			assert.Equal(t, len(items), p.Count)
			assert.Equal(t, tt.want, p.Results)
			assert.Equal(t, tt.hasNext, p.Next != nil)
			assert.Equal(t, tt.hasPrev, p.Previous != nil)
		})
	}
}

func TestPosts_HugePaginationValues(t *testing.T) {
	env := setupTestServer(t)
	_, token := env.register(t, "almaz")
	env.createPost(t, token, "Hello")

	status, _ := env.do(t, http.MethodGet, "/api/v1/posts?limit=9223372036854775807&offset=1", nil, "")
	assert.Equal(t, http.StatusOK, status)
}
