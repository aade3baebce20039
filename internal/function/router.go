package function

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/nerrad567/venue-core/internal/auth"
)

// Version is reported by the preflight response of every function.
const Version = "1.0.0"

// SupportedMethods are the verbs every function answers.
var SupportedMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
}

// PreflightBody is the OPTIONS response of a function.
type PreflightBody struct {
	Success  bool     `json:"success"`
	Function string   `json:"function"`
	Status   string   `json:"status"`
	Methods  []string `json:"methods"`
	Version  string   `json:"version"`
}

// Router dispatches an authenticated request to a handler operation.
//
// Thread Safety:
//   - A Router holds no per-request state and is safe for concurrent use.
type Router struct {
	logger Logger
}

// NewRouter creates a Router. A nil logger discards.
func NewRouter(logger Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Router{logger: logger}
}

// HandleRequest runs one request through the API or web handler.
//
// OPTIONS short-circuits to the preflight response before any handler is
// chosen. Otherwise the API handler runs when ac records the API flavor or
// IsAPIRequest accepts the headers, the verb picks the operation,
// and handler errors and panics are rendered as error envelopes.
//
// Parameters:
//   - r: the inbound request
//   - ac: the caller's auth context, or nil
//   - api, web: handlers for the two flavors
//   - resource: function name, also the path segment before the id
//
// Returns:
//   - *Response: never nil
func (rt *Router) HandleRequest(r *http.Request, ac *auth.AuthContext, api, web Handler, resource string) (resp *Response) {
	if r.Method == http.MethodOptions {
		return Preflight(resource)
	}

	detected := auth.FlavorWeb
	authType := auth.AuthAnon
	if ac != nil {
		detected = ac.Flavor
		authType = ac.Type
	}
	flavor := SelectFlavor(r.Header, detected)
	profile := ProfileFor(flavor, authType)

	handler := api
	if flavor == auth.FlavorWeb {
		handler = web
	}

	req := &Request{
		HTTP:  r,
		Auth:  ac,
		ID:    ExtractID(r.URL.EscapedPath(), resource),
		Query: r.URL.Query(),
	}

	rt.logger.Debug("dispatching function request",
		"function", resource,
		"method", r.Method,
		"flavor", flavor,
		"auth_type", authType,
		"id", req.ID,
	)

	defer func() {
		if p := recover(); p != nil {
			rt.logger.Error("panic in function handler",
				"function", resource,
				"method", r.Method,
				"panic", p,
			)
			resp = ErrorResponse(InternalError("Internal server error").
				WithDetails(map[string]any{"error": fmt.Sprint(p)})).With(profile)
		}
	}()

	resp, err := rt.dispatch(r.Context(), req, handler)
	if err != nil {
		apiErr := AsAPIError(err)
		if apiErr.Status >= http.StatusInternalServerError {
			rt.logger.Error("function handler failed", "function", resource, "method", r.Method, "error", err)
		} else {
			rt.logger.Debug("function request rejected", "function", resource, "code", apiErr.Code, "error", err)
		}
		resp = ErrorResponse(apiErr)
	}
	if resp == nil {
		resp = ErrorResponse(InternalError("Handler returned no response"))
	}
	if resp.Profile == "" {
		resp.Profile = profile
	}
	return resp
}

func (rt *Router) dispatch(ctx context.Context, req *Request, handler Handler) (*Response, error) {
	r := req.HTTP
	switch r.Method {
	case http.MethodGet:
		reader, ok := handler.(Reader)
		if !ok {
			return nil, notImplemented()
		}
		return reader.Read(ctx, req)

	case http.MethodPost:
		creator, ok := handler.(Creator)
		if !ok {
			return nil, notImplemented()
		}
		body, err := ParseBody(r)
		if err != nil {
			return nil, err
		}
		return creator.Create(ctx, req, body)

	case http.MethodPut:
		updater, ok := handler.(Updater)
		if !ok {
			return nil, notImplemented()
		}
		if req.ID == "" {
			return nil, missingID()
		}
		body, err := ParseBody(r)
		if err != nil {
			return nil, err
		}
		return updater.Update(ctx, req, body)

	case http.MethodDelete:
		deleter, ok := handler.(Deleter)
		if !ok {
			return nil, notImplemented()
		}
		if req.ID == "" {
			return nil, missingID()
		}
		return deleter.Delete(ctx, req)

	default:
		return nil, NewError(http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed")
	}
}

// Preflight returns the OPTIONS response of function name.
func Preflight(name string) *Response {
	return &Response{
		Status:  http.StatusOK,
		Profile: ProfilePreflight,
		Body: PreflightBody{
			Success:  true,
			Function: name,
			Status:   "active",
			Methods:  SupportedMethods,
			Version:  Version,
		},
	}
}

// ExtractID returns the single path segment following /{resource}/ in
// path, or "" if there is none.
func ExtractID(path, resource string) string {
	marker := "/" + resource + "/"
	i := strings.LastIndex(path, marker)
	if i < 0 {
		return ""
	}
	rest := strings.TrimSuffix(path[i+len(marker):], "/")
	if rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	id, err := url.PathUnescape(rest)
	if err != nil {
		return rest
	}
	return id
}

func notImplemented() *APIError {
	return NewError(http.StatusNotImplemented, CodeNotImplemented, "Method not implemented")
}

func missingID() *APIError {
	return NewError(http.StatusBadRequest, CodeMissingID, "Missing resource identifier")
}
