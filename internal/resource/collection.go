package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/venue-core/internal/auth"
	"github.com/nerrad567/venue-core/internal/datastore"
	"github.com/nerrad567/venue-core/internal/events"
	"github.com/nerrad567/venue-core/internal/function"
)

// Column names shared by every catalog table.
const (
	colID        = "id"
	colCreatedAt = "created_at"
	colUpdatedAt = "updated_at"
	colDeletedAt = "deleted_at"
)

// Operation names used in error codes ({RESOURCE}_{OP}_ERROR).
const (
	opList   = "LIST"
	opGet    = "GET"
	opCreate = "CREATE"
	opUpdate = "UPDATE"
	opDelete = "DELETE"
)

// Deps holds the collaborators shared by every resource handler.
type Deps struct {
	// Policy guards create, update and delete. Defaults to auth.AllowAll.
	Policy auth.Policy

	// Events receives a change event after every successful write.
	// Defaults to events.Nop.
	Events events.Publisher

	// Logger defaults to a discarding logger.
	Logger function.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Policy == nil {
		d.Policy = auth.AllowAll{}
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Collection is the API handler of a table-backed function.
//
// Rows are soft deleted: every read filters deleted_at IS NULL and DELETE
// stamps deleted_at. Lists are newest first.
//
// Thread Safety:
//   - A Collection holds no per-request state and is safe for concurrent use.
type Collection struct {
	def  *Definition
	deps Deps
}

// NewCollection creates the API handler for def.
func NewCollection(def *Definition, deps Deps) *Collection {
	return &Collection{def: def, deps: deps.withDefaults()}
}

// Definition returns the definition c serves.
func (c *Collection) Definition() *Definition { return c.def }

// Read implements function.Reader.
func (c *Collection) Read(ctx context.Context, req *function.Request) (*function.Response, error) {
	client, err := requireClient(req)
	if err != nil {
		return nil, err
	}
	if req.ID != "" {
		row, err := c.get(ctx, client, req.ID)
		if err != nil {
			return nil, err
		}
		return function.Success(row), nil
	}

	rows, meta, err := c.list(ctx, client, req)
	if err != nil {
		return nil, err
	}
	return function.SuccessWithMeta(rows, meta), nil
}

// Create implements function.Creator.
func (c *Collection) Create(ctx context.Context, req *function.Request, body function.ParsedBody) (*function.Response, error) {
	row, err := c.create(ctx, req, body)
	if err != nil {
		return nil, err
	}
	return function.Created(row, row.String(colID)), nil
}

// Update implements function.Updater.
func (c *Collection) Update(ctx context.Context, req *function.Request, body function.ParsedBody) (*function.Response, error) {
	row, err := c.update(ctx, req, body)
	if err != nil {
		return nil, err
	}
	return function.Success(row), nil
}

// Delete implements function.Deleter.
func (c *Collection) Delete(ctx context.Context, req *function.Request) (*function.Response, error) {
	id, err := c.remove(ctx, req)
	if err != nil {
		return nil, err
	}
	return function.Success(map[string]any{"deleted": true, "id": id}), nil
}

func (c *Collection) get(ctx context.Context, store datastore.Store, id string) (datastore.Row, error) {
	q := datastore.From(c.def.table()).Eq(colID, id).IsNull(colDeletedAt)
	row, err := datastore.SelectOne(ctx, store, q)
	if err != nil {
		return nil, c.storeError(opGet, err)
	}
	return c.decorate(row), nil
}

func (c *Collection) list(ctx context.Context, store datastore.Store, req *function.Request) ([]datastore.Row, map[string]any, error) {
	pr := ParsePageRequest(req.Query)
	q := datastore.From(c.def.table()).IsNull(colDeletedAt)
	filters := c.def.ApplyFilters(req.Query, q)

	total, err := store.Count(ctx, q)
	if err != nil {
		return nil, nil, c.storeError(opList, err)
	}
	rows, err := store.Select(ctx, q.OrderBy(colCreatedAt, true).Range(pr.Offset, pr.Limit))
	if err != nil {
		return nil, nil, c.storeError(opList, err)
	}
	for i, row := range rows {
		rows[i] = c.decorate(row)
	}

	meta := map[string]any{"pagination": pr.Paginate(total)}
	if len(filters) > 0 {
		meta["filters"] = filters
	}
	return rows, meta, nil
}

func (c *Collection) create(ctx context.Context, req *function.Request, body function.ParsedBody) (datastore.Row, error) {
	if problems := c.def.Validate(body, false); len(problems) > 0 {
		return nil, function.ValidationError(problems)
	}
	client, err := requireClient(req)
	if err != nil {
		return nil, err
	}
	if err := c.deps.Policy.Check(ctx, client, auth.ActionCreate, c.def.table()); err != nil {
		return nil, err
	}

	values := c.def.Values(body)
	for k, v := range c.def.Defaults {
		if _, ok := values[k]; !ok {
			values[k] = v
		}
	}
	if err := c.check(ctx, client, "", values); err != nil {
		return nil, err
	}
	if err := c.beforeWrite(body, opCreate); err != nil {
		return nil, err
	}
	values[colCreatedAt] = c.deps.Now().UTC()

	c.deps.Logger.Debug("creating resource", "resource", c.def.Name)
	row, err := client.Insert(ctx, c.def.table(), values)
	if err != nil {
		return nil, c.storeError(opCreate, err)
	}
	if row, err = c.afterWrite(ctx, client, row, body, opCreate); err != nil {
		return nil, err
	}

	c.publish(ctx, client, events.ActionCreated, row.String(colID))
	return c.decorate(row), nil
}

func (c *Collection) update(ctx context.Context, req *function.Request, body function.ParsedBody) (datastore.Row, error) {
	if problems := c.def.Validate(body, true); len(problems) > 0 {
		return nil, function.ValidationError(problems)
	}
	client, err := requireClient(req)
	if err != nil {
		return nil, err
	}
	if err := c.deps.Policy.Check(ctx, client, auth.ActionUpdate, c.def.table()); err != nil {
		return nil, err
	}

	values := c.def.Values(body)
	if err := c.check(ctx, client, req.ID, values); err != nil {
		return nil, err
	}
	if err := c.beforeWrite(body, opUpdate); err != nil {
		return nil, err
	}
	values[colUpdatedAt] = c.deps.Now().UTC()

	q := datastore.From(c.def.table()).Eq(colID, req.ID).IsNull(colDeletedAt)
	row, err := datastore.UpdateOne(ctx, client, q, values)
	if err != nil {
		return nil, c.storeError(opUpdate, err)
	}
	if row, err = c.afterWrite(ctx, client, row, body, opUpdate); err != nil {
		return nil, err
	}

	c.publish(ctx, client, events.ActionUpdated, req.ID)
	return c.decorate(row), nil
}

func (c *Collection) remove(ctx context.Context, req *function.Request) (string, error) {
	client, err := requireClient(req)
	if err != nil {
		return "", err
	}
	if err := c.deps.Policy.Check(ctx, client, auth.ActionDelete, c.def.table()); err != nil {
		return "", err
	}

	now := c.deps.Now().UTC()
	q := datastore.From(c.def.table()).Eq(colID, req.ID).IsNull(colDeletedAt)
	row, err := datastore.UpdateOne(ctx, client, q, datastore.Row{colDeletedAt: now, colUpdatedAt: now})
	if err != nil {
		return "", c.storeError(opDelete, err)
	}

	id := row.String(colID)
	c.publish(ctx, client, events.ActionDeleted, id)
	return id, nil
}

func (c *Collection) check(ctx context.Context, store datastore.Store, id string, values datastore.Row) error {
	if c.def.Check == nil {
		return nil
	}
	problems, err := c.def.Check(ctx, store, id, values)
	if err != nil {
		return c.storeError(opGet, err)
	}
	if len(problems) > 0 {
		return function.ValidationError(problems)
	}
	return nil
}

func (c *Collection) beforeWrite(body function.ParsedBody, op string) error {
	if c.def.BeforeWrite == nil {
		return nil
	}
	if err := c.def.BeforeWrite(body); err != nil {
		return c.storeError(op, err)
	}
	return nil
}

func (c *Collection) afterWrite(ctx context.Context, store datastore.Store, row datastore.Row, body function.ParsedBody, op string) (datastore.Row, error) {
	if c.def.AfterWrite == nil {
		return row, nil
	}
	out, err := c.def.AfterWrite(ctx, store, row, body)
	if err != nil {
		return nil, c.storeError(op, err)
	}
	return out, nil
}

func (c *Collection) decorate(row datastore.Row) datastore.Row {
	if c.def.Decorate == nil {
		return row
	}
	return c.def.Decorate(row)
}

func (c *Collection) publish(ctx context.Context, client *auth.Client, action events.Action, id string) {
	e := events.Event{
		Resource: c.def.Name,
		Action:   action,
		ID:       id,
		Actor:    client.Principal.ID,
		At:       c.deps.Now().UTC(),
	}
	if err := c.deps.Events.Publish(ctx, e); err != nil {
		c.deps.Logger.Warn("publishing resource event failed",
			"resource", c.def.Name,
			"action", action,
			"id", id,
			"error", err,
		)
	}
}

// storeError maps a datastore failure onto the error the caller sees.
// Missing rows are 404 and conflicts 409; anything else is a 400 with the
// operation's error code and the cause as detail.
func (c *Collection) storeError(op string, err error) error {
	switch {
	case errors.Is(err, datastore.ErrNotFound):
		return function.NotFound(capitalise(c.def.Label) + " not found").WithCause(err)
	case errors.Is(err, datastore.ErrConflict):
		return function.Conflict(capitalise(c.def.Label) + " already exists").WithCause(err)
	}
	return errorCode(c.def.codePrefix(), op, "Error "+opVerb(op)+" "+c.def.Label, err)
}

// errorCode builds the 400 {PREFIX}_{OP}_ERROR response for err.
func errorCode(prefix, op, message string, err error) *function.APIError {
	return function.NewError(http.StatusBadRequest, fmt.Sprintf("%s_%s_ERROR", prefix, op), message).
		WithDetails(map[string]any{"error": err.Error()}).
		WithCause(err)
}

func opVerb(op string) string {
	switch op {
	case opList:
		return "listing"
	case opGet:
		return "fetching"
	case opCreate:
		return "creating"
	case opUpdate:
		return "updating"
	case opDelete:
		return "deleting"
	default:
		return strings.ToLower(op)
	}
}

func capitalise(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func requireClient(req *function.Request) (*auth.Client, error) {
	client := req.Client()
	if client == nil || client.Store == nil {
		return nil, function.Unauthorized("Authentication required")
	}
	return client, nil
}
