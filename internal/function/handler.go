package function

import (
	"context"
	"net/http"
	"net/url"

	"github.com/nerrad567/venue-core/internal/auth"
)

// Request is what a handler operation receives.
type Request struct {
	// HTTP is the inbound request. Its body has already been parsed for
	// Create and Update.
	HTTP *http.Request

	// Auth is the caller's context. Nil only for requests that skip
	// authentication.
	Auth *auth.AuthContext

	// ID is the path segment after /{resource}/, or empty.
	ID string

	// Query is the parsed URL query.
	Query url.Values
}

// Client returns the caller's client handle, or nil.
func (r *Request) Client() *auth.Client {
	if r.Auth == nil {
		return nil
	}
	return r.Auth.Client
}

// A handler is any value implementing some of Reader, Creator, Updater
// and Deleter. The router answers 501 for the operations it lacks.
type Handler any

// Reader serves GET. ID is empty for collection reads.
type Reader interface {
	Read(ctx context.Context, req *Request) (*Response, error)
}

// Creator serves POST.
type Creator interface {
	Create(ctx context.Context, req *Request, body ParsedBody) (*Response, error)
}

// Updater serves PUT. ID is always set.
type Updater interface {
	Update(ctx context.Context, req *Request, body ParsedBody) (*Response, error)
}

// Deleter serves DELETE. ID is always set.
type Deleter interface {
	Delete(ctx context.Context, req *Request) (*Response, error)
}

// Logger is the leveled logging port used by this package.
// *slog.Logger and *logging.Logger satisfy it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
