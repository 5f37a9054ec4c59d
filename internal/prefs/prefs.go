// Package prefs holds small per-user settings such as the access PIN and the
// notifications toggle. Values live in a key/value store so both the sqlite
// and the in-memory backends can carry them.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"unicode"
)

// Store persists preference values.
type Store interface {
	GetPref(ctx context.Context, key string) (value string, ok bool, err error)
	SetPref(ctx context.Context, key, value string) error
}

// Known preference keys.
const (
	KeyPIN           = "pin"
	KeyNotifications = "notifications_enabled"
	KeyLocale        = "locale"
	KeyCurrency      = "currency"
)

var knownKeys = map[string]bool{
	KeyPIN:           true,
	KeyNotifications: true,
	KeyLocale:        true,
	KeyCurrency:      true,
}

var (
	ErrUnknownKey = errors.New("unknown preference key")
	ErrInvalidPIN = errors.New("pin must be 4 to 6 digits")
)

// Service exposes typed accessors over the raw store.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get returns the raw value for a known key; ok is false when unset.
func (s *Service) Get(ctx context.Context, key string) (string, bool, error) {
	if !knownKeys[key] {
		return "", false, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return s.store.GetPref(ctx, key)
}

// Set stores the raw value for a known key. The PIN key goes through the
// typed setter so its format is always enforced.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if !knownKeys[key] {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if key == KeyPIN {
		return s.SetPIN(ctx, value)
	}
	return s.store.SetPref(ctx, key, value)
}

// PIN returns the stored access PIN, empty when none is set.
func (s *Service) PIN(ctx context.Context) (string, error) {
	value, _, err := s.store.GetPref(ctx, KeyPIN)
	return value, err
}

// SetPIN stores the access PIN. An empty value clears it.
func (s *Service) SetPIN(ctx context.Context, pin string) error {
	if pin != "" && !validPIN(pin) {
		return ErrInvalidPIN
	}
	return s.store.SetPref(ctx, KeyPIN, pin)
}

// CheckPIN reports whether the candidate matches the stored PIN. With no PIN
// set, every candidate passes.
func (s *Service) CheckPIN(ctx context.Context, candidate string) (bool, error) {
	stored, err := s.PIN(ctx)
	if err != nil {
		return false, err
	}
	if stored == "" {
		return true, nil
	}
	return stored == candidate, nil
}

// NotificationsEnabled defaults to true when the preference was never set.
func (s *Service) NotificationsEnabled(ctx context.Context) (bool, error) {
	value, ok, err := s.store.GetPref(ctx, KeyNotifications)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return true, nil
	}
	return enabled, nil
}

func (s *Service) SetNotificationsEnabled(ctx context.Context, enabled bool) error {
	return s.store.SetPref(ctx, KeyNotifications, strconv.FormatBool(enabled))
}

func validPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 6 {
		return false
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
