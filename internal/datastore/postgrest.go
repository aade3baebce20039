package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultRESTTimeout = 30 * time.Second

// RESTConfig configures a PostgREST store.
type RESTConfig struct {
	// URL is the project base URL; requests go to {URL}/rest/v1.
	URL string

	// APIKey is sent as the apikey header.
	APIKey string

	// AccessToken is sent as the bearer token. Defaults to APIKey.
	AccessToken string

	// Headers are added to every request (e.g. pos-id, pos-authorization).
	Headers map[string]string

	HTTPClient *http.Client
}

// PostgREST implements Store against a Supabase/PostgREST endpoint.
// Row-level security is enforced by the server for the bearer token in use.
type PostgREST struct {
	restURL     string
	apiKey      string
	accessToken string
	headers     map[string]string
	httpClient  *http.Client
}

// NewPostgREST creates a PostgREST store.
func NewPostgREST(cfg RESTConfig) (*PostgREST, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("postgrest: URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("postgrest: API key is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("postgrest: invalid URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRESTTimeout}
	}
	token := cfg.AccessToken
	if token == "" {
		token = cfg.APIKey
	}
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &PostgREST{
		restURL:     strings.TrimSuffix(cfg.URL, "/") + "/rest/v1",
		apiKey:      cfg.APIKey,
		accessToken: token,
		headers:     headers,
		httpClient:  httpClient,
	}, nil
}

// Select implements Store.
func (p *PostgREST) Select(ctx context.Context, q *Query) ([]Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	params := filterParams(q)
	params.Set("select", "*")
	if len(q.Orders) > 0 {
		parts := make([]string, len(q.Orders))
		for i, o := range q.Orders {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		params.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	resp, err := p.do(ctx, http.MethodGet, q.Table, params, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeRows(resp.body, q.Table)
}

// Count implements Store using Prefer: count=exact and the Content-Range header.
func (p *PostgREST) Count(ctx context.Context, q *Query) (int, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	params := filterParams(q)
	params.Set("select", "*")

	resp, err := p.do(ctx, http.MethodHead, q.Table, params, nil, map[string]string{"Prefer": "count=exact"})
	if err != nil {
		return 0, err
	}

	cr := resp.header.Get("Content-Range")
	_, total, ok := strings.Cut(cr, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("counting %s: missing total in Content-Range %q", q.Table, cr)
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", q.Table, err)
	}
	return n, nil
}

// Insert implements Store.
func (p *PostgREST) Insert(ctx context.Context, table string, values Row) (Row, error) {
	if !ValidIdentifier(table) {
		return nil, fmt.Errorf("%w: table %q", ErrInvalidQuery, table)
	}
	if err := validateValues(values); err != nil {
		return nil, err
	}
	body, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("marshal %s row: %w", table, err)
	}

	resp, err := p.do(ctx, http.MethodPost, table, nil, body, map[string]string{"Prefer": "return=representation"})
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(resp.body, table)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("inserting into %s: no row returned", table)
	}
	return rows[0], nil
}

// Update implements Store.
func (p *PostgREST) Update(ctx context.Context, q *Query, values Row) ([]Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := validateValues(values); err != nil {
		return nil, err
	}
	if len(q.Filters) == 0 {
		return nil, fmt.Errorf("%w: update of %s without filters", ErrInvalidQuery, q.Table)
	}
	body, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("marshal %s update: %w", q.Table, err)
	}

	resp, err := p.do(ctx, http.MethodPatch, q.Table, filterParams(q), body, map[string]string{"Prefer": "return=representation"})
	if err != nil {
		return nil, err
	}
	return decodeRows(resp.body, q.Table)
}

// HealthCheck implements Store.
func (p *PostgREST) HealthCheck(ctx context.Context) error {
	if _, err := p.do(ctx, http.MethodGet, "", nil, nil, nil); err != nil {
		return fmt.Errorf("datastore health check failed: %w", err)
	}
	return nil
}

type restResponse struct {
	body   []byte
	header http.Header
}

func (p *PostgREST) do(ctx context.Context, method, table string, params url.Values, body []byte, extra map[string]string) (*restResponse, error) {
	reqURL := p.restURL + "/" + table
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("apikey", p.apiKey)
	req.Header.Set("Authorization", "Bearer "+p.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, table, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseRemoteError(resp.StatusCode, data)
	}
	return &restResponse{body: data, header: resp.Header}, nil
}

func filterParams(q *Query) url.Values {
	params := url.Values{}
	for _, f := range q.Filters {
		switch f.Op {
		case OpIsNull:
			params.Add(f.Column, "is.null")
		case OpILike:
			params.Add(f.Column, "ilike.*"+fmt.Sprint(f.Value)+"*")
		default:
			params.Add(f.Column, f.Op.String()+"."+formatValue(f.Value))
		}
	}
	return params
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func decodeRows(body []byte, table string) ([]Row, error) {
	rows := []Row{}
	if len(bytes.TrimSpace(body)) == 0 {
		return rows, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding %s rows: %w", table, err)
	}
	for _, m := range raw {
		for k, v := range m {
			if n, ok := v.(json.Number); ok {
				m[k] = numberValue(n)
			}
		}
		rows = append(rows, Row(m))
	}
	return rows, nil
}

func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func parseRemoteError(status int, body []byte) error {
	re := &RemoteError{Status: status}
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
		Hint    string `json:"hint"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		re.Code = payload.Code
		re.Message = payload.Message
		re.Details = payload.Details
		re.Hint = payload.Hint
		if re.Message == "" {
			re.Message = payload.Error
		}
	}
	if re.Message == "" {
		re.Message = http.StatusText(status)
	}
	return re
}
