package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/venue-core/internal/crypto"
	"github.com/nerrad567/venue-core/internal/datastore"
	"github.com/nerrad567/venue-core/internal/infrastructure/database"
	_ "github.com/nerrad567/venue-core/migrations"
)

const (
	testSecret    = "test-session-secret-with-enough-length"
	testDeviceID  = "pos-1"
	liveToken     = "tok-live"
	inactiveToken = "tok-inactive"
)

// testNow is the fixed clock the authenticator tests run against.
var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var (
	keyOnce sync.Once
	keyPair *crypto.KeyPair
	keyErr  error
)

// testKeys returns one RSA key pair shared by the whole package.
func testKeys(t *testing.T) *crypto.KeyPair {
	t.Helper()
	keyOnce.Do(func() {
		keyPair, keyErr = crypto.GenerateKeyPair(crypto.DefaultKeyBits)
	})
	if keyErr != nil {
		t.Fatalf("GenerateKeyPair() error = %v", keyErr)
	}
	return keyPair
}

// openTestStore creates a temp-file SQLite store with the real migrations applied.
func openTestStore(t *testing.T) *datastore.SQLStore {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "auth.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Migrate(t.Context()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return datastore.NewSQLStore(db.DB)
}

// seedDevices registers pos-1 (valid key, live and inactive sessions),
// pos-nokey (no public key) and pos-pem (PEM armoured key).
func seedDevices(t *testing.T, s datastore.Store) {
	t.Helper()
	ctx := t.Context()
	keys := testKeys(t)

	devices := []datastore.Row{
		{"id": testDeviceID, "name": "Front bar", "status": "active", "public_key": keys.PublicKey},
		{"id": "pos-nokey", "name": "Cloakroom", "status": "inactive"},
		{"id": "pos-pem", "name": "Box office", "status": "active",
			"public_key": "-----BEGIN PUBLIC KEY-----\n" + keys.PublicKey + "\n-----END PUBLIC KEY-----"},
	}
	for _, d := range devices {
		if _, err := s.Insert(ctx, tablePointsOfSale, d); err != nil {
			t.Fatalf("seeding device %v: %v", d["id"], err)
		}
	}

	sessions := []datastore.Row{
		{"pos_id": testDeviceID, "auth_token": liveToken, "is_active": true, "expires_at": testNow.Add(time.Hour)},
		{"pos_id": testDeviceID, "auth_token": inactiveToken, "is_active": false, "expires_at": testNow.Add(time.Hour)},
		{"pos_id": "pos-nokey", "auth_token": liveToken, "is_active": true, "expires_at": testNow.Add(time.Hour)},
		{"pos_id": "pos-pem", "auth_token": liveToken, "is_active": true, "expires_at": testNow.Add(time.Hour)},
	}
	for _, sess := range sessions {
		if _, err := s.Insert(ctx, tablePOSSessions, sess); err != nil {
			t.Fatalf("seeding session %v: %v", sess["auth_token"], err)
		}
	}
}

// newTestAuthenticator wires an Authenticator over a seeded local store.
func newTestAuthenticator(t *testing.T, now func() time.Time) (*Authenticator, datastore.Store) {
	t.Helper()
	store := openTestStore(t)
	seedDevices(t, store)

	factory := NewLocalFactory(store, testSecret)
	if now == nil {
		now = func() time.Time { return testNow }
	}
	return NewAuthenticator(Deps{
		Devices:   NewDeviceRepository(store),
		Sessions:  factory,
		Anonymous: factory,
		POS:       factory,
		Now:       now,
	}), store
}

// signMessage signs message with the shared test private key.
func signMessage(t *testing.T, message string) string {
	t.Helper()
	keys := testKeys(t)
	v, err := crypto.NewVerifier(keys.PublicKey, crypto.WithPrivateKey(keys.PrivateKey))
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	sig, err := v.Sign([]byte(message))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	return sig
}

// posRequest builds a request carrying the three POS headers.
func posRequest(method, deviceID, token, signature, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, "/functions/v1/pos", nil)
	} else {
		r = httptest.NewRequest(method, "/functions/v1/pos", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	r.Header.Set(HeaderPOSID, deviceID)
	r.Header.Set(HeaderPOSAuthorization, token)
	r.Header.Set(HeaderSignature, signature)
	return r
}
