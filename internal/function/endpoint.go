package function

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nerrad567/venue-core/internal/auth"
)

// Authenticator builds the AuthContext of a request.
// *auth.Authenticator is the production implementation.
type Authenticator interface {
	Authenticate(r *http.Request) (*auth.AuthContext, error)
}

// Invocation describes one completed function call.
type Invocation struct {
	Function string
	Method   string
	AuthType auth.AuthType
	Flavor   auth.Flavor
	Status   int
	Duration time.Duration
	At       time.Time
}

// Observer is told about every completed invocation.
type Observer func(Invocation)

// EndpointDeps holds the collaborators shared by every Endpoint.
type EndpointDeps struct {
	Authenticator Authenticator
	Router        *Router
	Logger        Logger

	// Observer is optional.
	Observer Observer
}

// Endpoint serves one function: authentication, then routing.
type Endpoint struct {
	name    string
	api     Handler
	web     Handler
	authn   Authenticator
	router  *Router
	logger  Logger
	observe Observer
}

// NewEndpoint creates the endpoint of function name with its API and web handlers.
func NewEndpoint(name string, api, web Handler, deps EndpointDeps) *Endpoint {
	e := &Endpoint{
		name:    name,
		api:     api,
		web:     web,
		authn:   deps.Authenticator,
		router:  deps.Router,
		logger:  deps.Logger,
		observe: deps.Observer,
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.router == nil {
		e.router = NewRouter(e.logger)
	}
	return e
}

// Name returns the function name.
func (e *Endpoint) Name() string { return e.name }

// ServeHTTP implements http.Handler.
//
// Preflight requests are answered without authenticating. Authentication
// failures are rendered with the profile the request headers select.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	inv := Invocation{
		Function: e.name,
		Method:   r.Method,
		AuthType: auth.ClassifyCaller(r.Header),
		Flavor:   SelectFlavor(r.Header, auth.DetectFlavor(r.Header)),
		At:       start,
	}

	var resp *Response
	if r.Method == http.MethodOptions {
		resp = e.router.HandleRequest(r, nil, e.api, e.web, e.name)
	} else if ac, err := e.authn.Authenticate(r); err != nil {
		apiErr := AsAPIError(err)
		e.logger.Info("function authentication failed",
			"function", e.name,
			"method", r.Method,
			"auth_type", inv.AuthType,
			"code", apiErr.Code,
		)
		resp = ErrorResponse(apiErr).With(ProfileFor(inv.Flavor, inv.AuthType))
	} else {
		inv.AuthType, inv.Flavor = ac.Type, SelectFlavor(r.Header, ac.Flavor)
		resp = e.router.HandleRequest(r, ac, e.api, e.web, e.name)
	}

	resp.Write(w)

	if e.observe != nil {
		inv.Status = resp.Status
		inv.Duration = time.Since(start)
		e.observe(inv)
	}
}
