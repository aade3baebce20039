package resource

import (
	"net/url"
	"testing"
)

func TestParsePageRequest(t *testing.T) {
	tests := []struct {
		query string
		want  PageRequest
	}{
		{"", PageRequest{Limit: 20}},
		{"limit=5", PageRequest{Limit: 5}},
		{"limit=500", PageRequest{Limit: 100}},
		{"limit=0&offset=-3", PageRequest{Limit: 20}},
		{"limit=abc&offset=x", PageRequest{Limit: 20}},
		{"limit=10&offset=30", PageRequest{Limit: 10, Offset: 30}},
		{"limit=10&offset=30&page=2", PageRequest{Limit: 10, Offset: 10, Page: 2}},
		{"page=3", PageRequest{Limit: 20, Offset: 40, Page: 3}},
		{"page=0&offset=7", PageRequest{Limit: 20, Offset: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			params, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			if got := ParsePageRequest(params); got != tt.want {
				t.Errorf("ParsePageRequest(%q) = %+v, want %+v", tt.query, got, tt.want)
			}
		})
	}
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name  string
		pr    PageRequest
		total int
		want  Pagination
	}{
		{"empty", PageRequest{Limit: 20}, 0, Pagination{Page: 1, Limit: 20}},
		{"single page", PageRequest{Limit: 20}, 7, Pagination{Page: 1, Limit: 20, Total: 7, TotalPages: 1}},
		{"first of many", PageRequest{Limit: 10}, 25, Pagination{Page: 1, Limit: 10, Total: 25, TotalPages: 3, HasNext: true}},
		{"by offset", PageRequest{Limit: 10, Offset: 10}, 25, Pagination{Page: 2, Limit: 10, Total: 25, TotalPages: 3, HasNext: true, HasPrev: true}},
		{"last page", PageRequest{Limit: 10, Offset: 20, Page: 3}, 25, Pagination{Page: 3, Limit: 10, Total: 25, TotalPages: 3, HasPrev: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pr.Paginate(tt.total); got != tt.want {
				t.Errorf("Paginate(%d) = %+v, want %+v", tt.total, got, tt.want)
			}
		})
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in       string
		want, ok bool
	}{
		{"true", true, true},
		{"TRUE", true, true},
		{"1", true, true},
		{"yes", true, true},
		{"false", false, true},
		{" 0 ", false, true},
		{"no", false, true},
		{"maybe", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		got, ok := ParseBool(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseBool(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeBoolean(t *testing.T) {
	tests := []struct {
		in       any
		want, ok bool
	}{
		{true, true, true},
		{false, false, true},
		{"1", true, true},
		{"True", true, true},
		{"0", false, true},
		{"yes", false, true},
		{float64(1), true, true},
		{float64(0), false, true},
		{float64(2), false, true},
		{nil, false, false},
		{[]any{}, false, false},
	}
	for _, tt := range tests {
		got, ok := NormalizeBoolean(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeBoolean(%#v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
