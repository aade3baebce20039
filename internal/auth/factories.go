package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nerrad567/venue-core/internal/datastore"
)

// Headers a POS client forwards to the backing store.
const (
	HeaderPOSID            = "pos-id"
	HeaderPOSAuthorization = "pos-authorization"
)

// SessionClientFactory builds clients for callers presenting an Authorization header.
type SessionClientFactory interface {
	ForSession(ctx context.Context, authorization string) (*Client, error)
}

// AnonymousClientFactory builds clients for callers presenting no credentials.
type AnonymousClientFactory interface {
	Anonymous(ctx context.Context) (*Client, error)
}

// PosClientFactory builds clients for POS devices that passed signature verification.
type PosClientFactory interface {
	ForDevice(ctx context.Context, posID, authToken string) (*Client, error)
}

// RESTFactoryConfig configures a RESTFactory.
type RESTFactoryConfig struct {
	// URL is the Supabase project URL.
	URL string

	// AnonKey is the public anon key, used for anonymous and user clients.
	AnonKey string

	// ServiceRoleKey is used for POS clients and the device registry.
	ServiceRoleKey string

	HTTPClient *http.Client
}

// RESTFactory builds PostgREST-backed clients. Each client carries the
// caller's credentials so the server's row-level security applies.
type RESTFactory struct {
	cfg RESTFactoryConfig
}

// NewRESTFactory creates a RESTFactory.
func NewRESTFactory(cfg RESTFactoryConfig) (*RESTFactory, error) {
	if cfg.URL == "" || cfg.AnonKey == "" {
		return nil, fmt.Errorf("rest factory: URL and anon key are required")
	}
	return &RESTFactory{cfg: cfg}, nil
}

// ForSession implements SessionClientFactory. The token is forwarded
// unverified; PostgREST rejects it if it is invalid.
func (f *RESTFactory) ForSession(_ context.Context, authorization string) (*Client, error) {
	token := bearerToken(authorization)
	if token == "" {
		return nil, fmt.Errorf("%w: empty bearer token", ErrTokenInvalid)
	}

	store, err := datastore.NewPostgREST(datastore.RESTConfig{
		URL:         f.cfg.URL,
		APIKey:      f.cfg.AnonKey,
		AccessToken: token,
		HTTPClient:  f.cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}

	principal := Principal{Role: "authenticated"}
	if claims, err := peekSessionClaims(token); err == nil {
		principal.ID = claims.Subject
		if role := claims.EffectiveRole(); role != "" {
			principal.Role = role
		}
	}
	return &Client{Store: store, Principal: principal}, nil
}

// Anonymous implements AnonymousClientFactory.
func (f *RESTFactory) Anonymous(_ context.Context) (*Client, error) {
	store, err := datastore.NewPostgREST(datastore.RESTConfig{
		URL:        f.cfg.URL,
		APIKey:     f.cfg.AnonKey,
		HTTPClient: f.cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	return &Client{Store: store, Principal: Principal{Role: RoleAnon}}, nil
}

// ForDevice implements PosClientFactory. The client runs with the service
// role key and forwards the device id and token for policies that use them.
func (f *RESTFactory) ForDevice(_ context.Context, posID, authToken string) (*Client, error) {
	store, err := f.serviceStore(map[string]string{
		HeaderPOSID:            posID,
		HeaderPOSAuthorization: authToken,
	})
	if err != nil {
		return nil, err
	}
	return &Client{Store: store, Principal: Principal{ID: posID, Role: RolePOS}}, nil
}

// ServiceStore returns a store running with the service role key. It backs
// the device registry, which must be readable before the caller is known.
func (f *RESTFactory) ServiceStore() (datastore.Store, error) {
	return f.serviceStore(nil)
}

func (f *RESTFactory) serviceStore(headers map[string]string) (*datastore.PostgREST, error) {
	if f.cfg.ServiceRoleKey == "" {
		return nil, fmt.Errorf("rest factory: service role key is required")
	}
	return datastore.NewPostgREST(datastore.RESTConfig{
		URL:        f.cfg.URL,
		APIKey:     f.cfg.ServiceRoleKey,
		Headers:    headers,
		HTTPClient: f.cfg.HTTPClient,
	})
}

// LocalFactory builds clients over one shared SQL store. Session tokens
// are verified locally with the configured HS256 secret.
type LocalFactory struct {
	store     datastore.Store
	jwtSecret string
}

// NewLocalFactory creates a LocalFactory.
func NewLocalFactory(store datastore.Store, jwtSecret string) *LocalFactory {
	return &LocalFactory{store: store, jwtSecret: jwtSecret}
}

// ForSession implements SessionClientFactory.
func (f *LocalFactory) ForSession(_ context.Context, authorization string) (*Client, error) {
	if f.jwtSecret == "" {
		return nil, fmt.Errorf("%w: no session secret configured", ErrTokenInvalid)
	}
	claims, err := ParseSessionToken(bearerToken(authorization), f.jwtSecret)
	if err != nil {
		return nil, err
	}
	return &Client{
		Store:     f.store,
		Principal: Principal{ID: claims.Subject, Role: claims.EffectiveRole()},
	}, nil
}

// Anonymous implements AnonymousClientFactory.
func (f *LocalFactory) Anonymous(_ context.Context) (*Client, error) {
	return &Client{Store: f.store, Principal: Principal{Role: RoleAnon}}, nil
}

// ForDevice implements PosClientFactory.
func (f *LocalFactory) ForDevice(_ context.Context, posID, _ string) (*Client, error) {
	return &Client{Store: f.store, Principal: Principal{ID: posID, Role: RolePOS}}, nil
}
