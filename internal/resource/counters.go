package resource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/venue-core/internal/datastore"
	"github.com/nerrad567/venue-core/internal/function"
	"github.com/nerrad567/venue-core/internal/storage"
)

// Banner counter columns.
const (
	colMaxClicks       = "max_clicks"
	colCurrentClicks   = "current_clicks"
	colMaxDisplays     = "max_displays"
	colCurrentDisplays = "current_displays"
)

// maxCounterAttempts bounds the compare-and-set retries of one increment.
const maxCounterAttempts = 5

// ErrCounterContention is returned when every compare-and-set attempt lost
// to a concurrent writer.
var ErrCounterContention = errors.New("conflict updating banner counter (retry limit reached)")

// Counter names a banner counter pair.
type Counter struct {
	// Function is the function name, e.g. banners_increment_clicks.
	Function string
	Current  string
	Max      string
}

// Banner counters.
var (
	ClicksCounter   = Counter{Function: "banners_increment_clicks", Current: colCurrentClicks, Max: colMaxClicks}
	DisplaysCounter = Counter{Function: "banners_increment_displays", Current: colCurrentDisplays, Max: colMaxDisplays}
)

// CounterHandler increments one banner counter per request.
//
// The banner id comes from the path, the ?id= parameter, or the "id"
// field of a POST body. GET and POST both increment.
type CounterHandler struct {
	counter Counter
	images  *bannerImages
	deps    Deps
}

// NewCounterHandler creates the handler of counter. objects resolves image
// URLs and may be nil.
func NewCounterHandler(counter Counter, objects storage.ObjectStorage, deps Deps) *CounterHandler {
	deps = deps.withDefaults()
	return &CounterHandler{
		counter: counter,
		images:  &bannerImages{store: objects, now: deps.Now},
		deps:    deps,
	}
}

// Read implements function.Reader.
func (h *CounterHandler) Read(ctx context.Context, req *function.Request) (*function.Response, error) {
	id := req.ID
	if id == "" {
		id = req.Query.Get("id")
	}
	return h.increment(ctx, req, id)
}

// Create implements function.Creator.
func (h *CounterHandler) Create(ctx context.Context, req *function.Request, body function.ParsedBody) (*function.Response, error) {
	id, _ := body["id"].(string)
	if id == "" {
		id = req.Query.Get("id")
	}
	return h.increment(ctx, req, id)
}

func (h *CounterHandler) increment(ctx context.Context, req *function.Request, id string) (*function.Response, error) {
	prefix := strings.ToUpper(h.counter.Function)
	if id == "" {
		return nil, function.NewError(http.StatusBadRequest, prefix+"_MISSING_ID", "Missing banner id")
	}
	client, err := requireClient(req)
	if err != nil {
		return nil, err
	}

	row, err := IncrementCounter(ctx, client, h.counter, id, h.deps.Now)
	switch {
	case errors.Is(err, datastore.ErrNotFound):
		return nil, function.NotFound("Banner not found").WithCause(err)
	case err != nil:
		h.deps.Logger.Warn("banner counter increment failed", "function", h.counter.Function, "id", id, "error", err)
		return nil, function.NewError(http.StatusBadRequest, prefix+"_ERROR", "Error incrementing "+counterNoun(h.counter)).
			WithDetails(map[string]any{"error": err.Error()}).
			WithCause(err)
	}
	return function.Success(h.images.decorate(row)), nil
}

func counterNoun(c Counter) string {
	return strings.TrimPrefix(c.Current, "current_")
}

// IncrementCounter adds one to a banner counter with optimistic concurrency.
//
// A max of 0 or null means unlimited. The increment that reaches the max
// also deactivates the banner; at or over the max the counter is left
// alone and the banner is only made inactive. The update is conditioned on
// the counter value read, and retried up to maxCounterAttempts times when a
// concurrent writer got there first.
//
// Returns:
//   - datastore.Row: the banner as stored after the increment
//   - error: wraps datastore.ErrNotFound for missing or deleted banners,
//     ErrCounterContention when every attempt conflicted
func IncrementCounter(ctx context.Context, store datastore.Store, c Counter, id string, now func() time.Time) (datastore.Row, error) {
	for range maxCounterAttempts {
		q := datastore.From(tableBanners).Eq(colID, id).IsNull(colDeletedAt)
		row, err := datastore.SelectOne(ctx, store, q)
		if err != nil {
			return nil, fmt.Errorf("failed to read banner: %w", err)
		}

		current, currentSet := row.Int(c.Current)
		maxValue, _ := row.Int(c.Max)
		alreadyInactive := row[colActive] != nil && !row.Bool(colActive)

		next, deactivate := current, false
		switch {
		case maxValue <= 0:
			next = current + 1
		case current+1 == maxValue:
			next = current + 1
			deactivate = true
		case current+1 < maxValue:
			next = current + 1
		default:
			deactivate = true
		}

		changes := datastore.Row{}
		if next != current {
			changes[c.Current] = next
		}
		if deactivate && !alreadyInactive {
			changes[colActive] = false
		}
		if len(changes) == 0 {
			return row, nil
		}
		changes[colUpdatedAt] = now().UTC()

		cas := datastore.From(tableBanners).Eq(colID, id).IsNull(colDeletedAt)
		if currentSet {
			cas.Eq(c.Current, current)
		} else {
			cas.IsNull(c.Current)
		}
		rows, err := store.Update(ctx, cas, changes)
		if err != nil {
			return nil, fmt.Errorf("failed to update banner: %w", err)
		}
		if len(rows) == 1 {
			return rows[0], nil
		}
	}
	return nil, ErrCounterContention
}
