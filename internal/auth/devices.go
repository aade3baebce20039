package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/venue-core/internal/datastore"
)

// Tables owned by the POS registry.
const (
	tablePointsOfSale = "points_of_sale"
	tablePOSSessions  = "pos_sessions"
)

// DeviceCredential is the registered public key of a POS device.
type DeviceCredential struct {
	DeviceID  string
	PublicKey string
}

// DeviceSession is a challenge token issued to a POS device.
type DeviceSession struct {
	DeviceID  string
	AuthToken string
	IsActive  bool
	ExpiresAt time.Time
}

// ExpiredAt reports whether the session is expired at now.
// A session expiring exactly at now is expired.
func (s *DeviceSession) ExpiredAt(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// DeviceRepository reads POS credentials and sessions. It never writes.
type DeviceRepository struct {
	store datastore.Store
}

// NewDeviceRepository creates a repository over a store with read access to
// points_of_sale and pos_sessions regardless of the caller.
func NewDeviceRepository(store datastore.Store) *DeviceRepository {
	return &DeviceRepository{store: store}
}

// Credential returns the public key registered for deviceID.
//
// Returns:
//   - *DeviceCredential: the device row; PublicKey may be empty
//   - error: ErrNoCredential if the device is unknown
func (r *DeviceRepository) Credential(ctx context.Context, deviceID string) (*DeviceCredential, error) {
	q := datastore.From(tablePointsOfSale).Eq("id", deviceID)
	row, err := datastore.SelectOne(ctx, r.store, q)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return nil, fmt.Errorf("device %s: %w", deviceID, ErrNoCredential)
		}
		return nil, fmt.Errorf("looking up device %s: %w", deviceID, err)
	}
	return &DeviceCredential{
		DeviceID:  row.String("id"),
		PublicKey: row.String("public_key"),
	}, nil
}

// ActiveSession returns the active session of deviceID whose token equals token.
//
// Returns:
//   - *DeviceSession: the matching session, expired or not
//   - error: ErrNoSession if no active session carries the token
func (r *DeviceRepository) ActiveSession(ctx context.Context, deviceID, token string) (*DeviceSession, error) {
	q := datastore.From(tablePOSSessions).
		Eq("pos_id", deviceID).
		Eq("is_active", true).
		Eq("auth_token", token)
	row, err := datastore.SelectOne(ctx, r.store, q)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) || errors.Is(err, datastore.ErrMultipleRows) {
			return nil, fmt.Errorf("device %s: %w", deviceID, errors.Join(ErrNoSession, err))
		}
		return nil, fmt.Errorf("looking up session for %s: %w", deviceID, err)
	}

	expires, ok := row.Time("expires_at")
	if !ok {
		return nil, fmt.Errorf("session for %s has no readable expires_at", deviceID)
	}
	return &DeviceSession{
		DeviceID:  row.String("pos_id"),
		AuthToken: row.String("auth_token"),
		IsActive:  row.Bool("is_active"),
		ExpiresAt: expires,
	}, nil
}
