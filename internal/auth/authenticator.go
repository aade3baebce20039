package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/venue-core/internal/crypto"
)

// Request headers inspected by the Authenticator.
const (
	HeaderDeviceID      = "device-id"
	HeaderSignature     = "signature"
	HeaderAuthorization = "Authorization"
)

// Logger is the leveled logging port used by this package.
// *slog.Logger and *logging.Logger satisfy it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DeviceLookup reads POS credentials and sessions.
// *DeviceRepository is the production implementation.
type DeviceLookup interface {
	Credential(ctx context.Context, deviceID string) (*DeviceCredential, error)
	ActiveSession(ctx context.Context, deviceID, token string) (*DeviceSession, error)
}

// Deps holds the collaborators of an Authenticator.
type Deps struct {
	Devices   DeviceLookup
	Sessions  SessionClientFactory
	Anonymous AnonymousClientFactory
	POS       PosClientFactory

	// Logger defaults to a discarding logger.
	Logger Logger

	// Now defaults to time.Now. Session expiry is judged against it.
	Now func() time.Time
}

// Authenticator classifies callers and builds their client handles.
//
// Classification order, first match wins:
//  1. pos-id or device-id, pos-authorization and signature headers: POS flow
//  2. Authorization header: session client
//  3. anything else: anonymous client
//
// The Authenticator holds no per-request state and is safe for concurrent use.
type Authenticator struct {
	devices   DeviceLookup
	sessions  SessionClientFactory
	anonymous AnonymousClientFactory
	pos       PosClientFactory
	logger    Logger
	now       func() time.Time
}

// NewAuthenticator creates an Authenticator from its collaborators.
func NewAuthenticator(deps Deps) *Authenticator {
	a := &Authenticator{
		devices:   deps.Devices,
		sessions:  deps.Sessions,
		anonymous: deps.Anonymous,
		pos:       deps.POS,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if a.logger == nil {
		a.logger = slog.New(slog.DiscardHandler)
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Authenticate classifies the caller of r and returns its AuthContext.
//
// For POS callers a non-GET body is read to build the signed message and
// then restored, so later readers see it unchanged.
//
// Returns:
//   - *AuthContext: client handle, auth type and response flavor
//   - error: *Error with the status and code to report
func (a *Authenticator) Authenticate(r *http.Request) (*AuthContext, error) {
	ctx := r.Context()
	flavor := DetectFlavor(r.Header)

	switch ClassifyCaller(r.Header) {
	case AuthPOS:
		client, err := a.authenticatePOS(r)
		if err != nil {
			a.logger.Warn("pos authentication failed",
				"device_id", firstHeader(r.Header, HeaderDeviceID, HeaderPOSID),
				"method", r.Method,
				"error", err)
			return nil, err
		}
		return &AuthContext{Client: client, Type: AuthPOS, Flavor: flavor}, nil

	case AuthUser:
		client, err := a.sessions.ForSession(ctx, r.Header.Get(HeaderAuthorization))
		if err != nil {
			a.logger.Debug("session client rejected", "error", err)
			return nil, unauthorized("Invalid authorization token", err)
		}
		return &AuthContext{Client: client, Type: AuthUser, Flavor: flavor}, nil

	default:
		client, err := a.anonymous.Anonymous(ctx)
		if err != nil {
			a.logger.Error("anonymous client unavailable", "error", err)
			return nil, &Error{
				Status:  http.StatusInternalServerError,
				Code:    "INTERNAL_ERROR",
				Message: "Anonymous authentication failed",
				Err:     err,
			}
		}
		return &AuthContext{Client: client, Type: AuthAnon, Flavor: flavor}, nil
	}
}

// ClassifyCaller returns the auth type a request's headers select.
// Presence is what counts: an empty POS header still selects the POS
// flow, which then rejects it.
func ClassifyCaller(h http.Header) AuthType {
	hasPOSID := hasHeader(h, HeaderPOSID) || hasHeader(h, HeaderDeviceID)
	if hasPOSID && hasHeader(h, HeaderPOSAuthorization) && hasHeader(h, HeaderSignature) {
		return AuthPOS
	}
	if hasHeader(h, HeaderAuthorization) {
		return AuthUser
	}
	return AuthAnon
}

// DetectFlavor returns FlavorWeb if the request accepts HTML or carries a
// form body, FlavorAPI otherwise.
func DetectFlavor(h http.Header) Flavor {
	accept := h.Get("Accept")
	contentType := h.Get("Content-Type")
	if strings.Contains(accept, "text/html") ||
		strings.Contains(contentType, "application/x-www-form-urlencoded") ||
		strings.Contains(contentType, "multipart/form-data") {
		return FlavorWeb
	}
	return FlavorAPI
}

// authenticatePOS runs the device challenge verification.
func (a *Authenticator) authenticatePOS(r *http.Request) (*Client, error) {
	ctx := r.Context()
	posID := firstHeader(r.Header, HeaderPOSID, HeaderDeviceID)
	deviceID := firstHeader(r.Header, HeaderDeviceID, HeaderPOSID)
	token := r.Header.Get(HeaderPOSAuthorization)
	signature := r.Header.Get(HeaderSignature)

	switch {
	case posID == "":
		return nil, badRequest("Missing POS identifier (pos-id or device-id)", nil)
	case signature == "":
		return nil, badRequest("Missing signature header", nil)
	case token == "":
		return nil, badRequest("Missing pos-authorization header", nil)
	}

	cred, err := a.devices.Credential(ctx, deviceID)
	if err != nil {
		return nil, unauthorized("Invalid device-id", err)
	}
	if strings.TrimSpace(cred.PublicKey) == "" {
		return nil, badRequest("Device is missing public key", nil)
	}

	verifier, err := crypto.NewVerifier(cred.PublicKey)
	if err != nil {
		return nil, &Error{
			Status:  http.StatusUnauthorized,
			Code:    CodeInvalidDeviceKey,
			Message: "Device public key is invalid",
			Err:     err,
		}
	}

	session, err := a.devices.ActiveSession(ctx, deviceID, token)
	if err != nil {
		return nil, unauthorized("Invalid or expired authentication token", err)
	}
	if session.ExpiredAt(a.now()) {
		return nil, unauthorized("Token expired, please request a new one", nil)
	}

	message, err := signedMessage(r, posID)
	if err != nil {
		return nil, err
	}

	ok, err := verifier.Verify(message, signature)
	if err != nil {
		return nil, &Error{
			Status:  http.StatusUnauthorized,
			Code:    CodeInvalidSignatureFormat,
			Message: "Signature is not valid base64",
			Err:     err,
		}
	}
	if !ok {
		return nil, unauthorized("Invalid signature", nil)
	}

	client, err := a.pos.ForDevice(ctx, posID, token)
	if err != nil {
		return nil, unauthorized("POS client unavailable", err)
	}
	a.logger.Debug("pos device authenticated", "device_id", deviceID, "method", r.Method)
	return client, nil
}

// signedMessage returns the bytes a device signs for r.
//
// Bodiless verbs, and bodies that are empty or JSON null, sign the
// canonical form of {"data": posID}. Any other body signs its own
// canonical form.
func signedMessage(r *http.Request, posID string) ([]byte, error) {
	identity := func() ([]byte, error) {
		return crypto.CanonicalValue(map[string]any{"data": posID})
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodOptions:
		return identity()
	}

	body, err := readAndRestoreBody(r)
	if err != nil {
		return nil, badRequest("Unable to read request body", err)
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return identity()
	}

	message, err := crypto.CanonicalJSON(trimmed)
	if err != nil {
		return nil, badRequest("Invalid JSON in request body", err)
	}
	return message, nil
}

// readAndRestoreBody reads r.Body fully and replaces it with an
// equivalent unread reader.
func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(r.Body)
	closeErr := r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return body, closeErr
}

func hasHeader(h http.Header, key string) bool {
	return len(h.Values(key)) > 0
}

func firstHeader(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(h.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

// IsAuthError reports whether err carries an *Error and returns it.
func IsAuthError(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
