package resource

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Paging defaults applied to every list.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ParseBool reads a query flag: true/1/yes or false/0/no, case-insensitive.
func ParseBool(s string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	}
	return false, false
}

// NormalizeBoolean converts a bool-like body value.
// Strings "1" and "true" (any case) are true, other strings false;
// numbers are true only when 1.
func NormalizeBoolean(v any) (value, ok bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		return val == "1" || strings.EqualFold(val, "true"), true
	case float64:
		return val == 1, true
	case int64:
		return val == 1, true
	case int:
		return val == 1, true
	}
	return false, false
}

// PageRequest is the window a list request asked for.
type PageRequest struct {
	Limit  int
	Offset int

	// Page is 0 when the caller paged by offset.
	Page int
}

// ParsePageRequest reads limit, offset and page from params.
//
// Unparseable values are ignored. Limit defaults to DefaultPageSize and is
// capped at MaxPageSize. A page of 1 or more overrides the offset.
func ParsePageRequest(params url.Values) PageRequest {
	pr := PageRequest{Limit: DefaultPageSize}
	if n, ok := intParam(params, "limit"); ok && n > 0 {
		pr.Limit = min(n, MaxPageSize)
	}
	if n, ok := intParam(params, "offset"); ok && n > 0 {
		pr.Offset = n
	}
	if n, ok := intParam(params, "page"); ok && n > 0 {
		pr.Page = n
		pr.Offset = (n - 1) * pr.Limit
	}
	return pr
}

func intParam(params url.Values, name string) (int, bool) {
	raw := params.Get(name)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Pagination is the meta.pagination block of a list response.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// Paginate describes the window pr over total rows.
func (pr PageRequest) Paginate(total int) Pagination {
	page := pr.Page
	if page == 0 {
		page = pr.Offset/pr.Limit + 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(pr.Limit)))
	return Pagination{
		Page:       page,
		Limit:      pr.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
