package resource

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/nerrad567/venue-core/internal/datastore"
	"github.com/nerrad567/venue-core/internal/function"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type listPage struct {
	Name    string
	Title   string
	Columns []string
	Rows    []listRow
}

type listRow struct {
	Cells []string
	Href  string
}

type detailPage struct {
	Name   string
	Title  string
	ID     string
	Fields []detailField
	Back   string
}

type detailField struct {
	Name  string
	Value string
}

// WebCollection is the browser-facing handler of a table-backed function.
//
// It shares validation, storage and events with the API Collection and
// adds rendered HTML to reads and a redirect target to writes.
type WebCollection struct {
	api *Collection
}

// NewWebCollection creates the web handler for the same resource as api.
func NewWebCollection(api *Collection) *WebCollection {
	return &WebCollection{api: api}
}

// Read implements function.Reader.
func (w *WebCollection) Read(ctx context.Context, req *function.Request) (*function.Response, error) {
	client, err := requireClient(req)
	if err != nil {
		return nil, err
	}
	def := w.api.def

	if req.ID != "" {
		row, err := w.api.get(ctx, client, req.ID)
		if err != nil {
			return nil, err
		}
		html, err := renderDetail(def, row)
		if err != nil {
			return nil, err
		}
		return function.Success(map[string]any{"id": req.ID, "data": row, "html": html}), nil
	}

	rows, meta, err := w.api.list(ctx, client, req)
	if err != nil {
		return nil, err
	}
	html, err := renderList(def, rows)
	if err != nil {
		return nil, err
	}
	return function.SuccessWithMeta(map[string]any{"resources": rows, "html": html}, meta), nil
}

// Create implements function.Creator.
func (w *WebCollection) Create(ctx context.Context, req *function.Request, body function.ParsedBody) (*function.Response, error) {
	row, err := w.api.create(ctx, req, body)
	if err != nil {
		return nil, err
	}
	out := map[string]any(row)
	out["redirect"] = "/" + w.api.def.Name
	return function.Created(out, row.String(colID)), nil
}

// Update implements function.Updater.
func (w *WebCollection) Update(ctx context.Context, req *function.Request, body function.ParsedBody) (*function.Response, error) {
	row, err := w.api.update(ctx, req, body)
	if err != nil {
		return nil, err
	}
	out := map[string]any(row)
	out["updated"] = true
	out["redirect"] = "/" + w.api.def.Name + "/" + url.PathEscape(req.ID)
	return function.Success(out), nil
}

// Delete implements function.Deleter.
func (w *WebCollection) Delete(ctx context.Context, req *function.Request) (*function.Response, error) {
	id, err := w.api.remove(ctx, req)
	if err != nil {
		return nil, err
	}
	return function.Success(map[string]any{
		"deleted":  true,
		"id":       id,
		"redirect": "/" + w.api.def.Name,
	}), nil
}

// columns returns id followed by the declared fields.
func columns(def *Definition) []string {
	cols := []string{colID}
	for _, f := range def.Fields {
		cols = append(cols, f.Name)
	}
	return cols
}

func renderList(def *Definition, rows []datastore.Row) (string, error) {
	cols := columns(def)
	page := listPage{Name: def.Name, Title: title(def.Name), Columns: cols}
	for _, row := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = cell(row[c])
		}
		page.Rows = append(page.Rows, listRow{
			Cells: cells,
			Href:  def.Name + "/" + url.PathEscape(row.String(colID)),
		})
	}
	return render("list.html", page)
}

func renderDetail(def *Definition, row datastore.Row) (string, error) {
	page := detailPage{
		Name:  def.Name,
		Title: capitalise(def.Label),
		ID:    row.String(colID),
		Back:  "../" + def.Name,
	}

	// Declared fields first, then any remaining columns alphabetically.
	seen := map[string]bool{}
	for _, c := range columns(def) {
		seen[c] = true
		page.Fields = append(page.Fields, detailField{Name: c, Value: cell(row[c])})
	}
	var rest []string
	for c := range row {
		if !seen[c] {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	for _, c := range rest {
		page.Fields = append(page.Fields, detailField{Name: c, Value: cell(row[c])})
	}
	return render("detail.html", page)
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}

func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// title turns a function name into a heading: "event_types" → "Event types".
func title(name string) string {
	return capitalise(strings.ReplaceAll(name, "_", " "))
}
