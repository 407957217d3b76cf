package shared

import (
	"math"
	"testing"
)

func TestNewPagination(t *testing.T) {
	cases := []struct {
		page, perPage, total int
		want                 Pagination
	}{
		{0, 0, 0, Pagination{Page: 1, PerPage: 20}},
		{1, 20, 41, Pagination{Page: 1, PerPage: 20, Total: 41, TotalPages: 3}},
		{3, 10, 30, Pagination{Page: 3, PerPage: 10, Total: 30, TotalPages: 3}},
	}
	for _, tc := range cases {
		if got := NewPagination(tc.page, tc.perPage, tc.total); got != tc.want {
			t.Fatalf("NewPagination(%d, %d, %d) = %+v, want %+v", tc.page, tc.perPage, tc.total, got, tc.want)
		}
	}
}

func TestPaginationOffset(t *testing.T) {
	if got := NewPagination(3, 25, 100).Offset(); got != 50 {
		t.Fatalf("Offset() = %d, want 50", got)
	}
	if got := NewPagination(0, 0, 0).Offset(); got != 0 {
		t.Fatalf("Offset() = %d, want 0", got)
	}
}

func TestPaginationOffsetPastLastPage(t *testing.T) {
	cases := []struct {
		page, perPage, total, want int
	}{
		{4, 10, 30, 30},
		{math.MaxInt, 20, 41, 41},
		{math.MaxInt, 100, 0, 0},
		{math.MaxInt / 2, math.MaxInt / 2, 5, 5},
	}
	for _, tc := range cases {
		got := NewPagination(tc.page, tc.perPage, tc.total).Offset()
		if got != tc.want {
			t.Fatalf("NewPagination(%d, %d, %d).Offset() = %d, want %d", tc.page, tc.perPage, tc.total, got, tc.want)
		}
		if got < 0 {
			t.Fatalf("negative offset %d", got)
		}
	}
}
