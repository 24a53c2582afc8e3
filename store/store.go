// Package store is the persistence port for viewer state that must survive restarts:
// the chat access token and display name, the chat panel toggle, the blocked flag and
// the player volume. Backends: in-memory (tests), a JSON file (default), and Postgres.
package store

import (
	"context"
	"fmt"
	"strconv"
)

// Persisted keys.
const (
	KeyAccessToken        = "accessToken"
	KeyUsername           = "username"
	KeyChatPanelDisplayed = "chatPanelDisplayed"
	KeyChatBlocked        = "chatBlocked"
	KeyPlayerVolume       = "playerVolume"
)

// Store is a small string key/value port. Get reports ok=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// GetString returns the value for key or "" when missing.
func GetString(ctx context.Context, s Store, key string) (string, error) {
	v, _, err := s.Get(ctx, key)
	return v, err
}

// GetBool parses a stored boolean, returning def when the key is missing.
func GetBool(ctx context.Context, s Store, key string, def bool) (bool, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

// SetBool stores a boolean.
func SetBool(ctx context.Context, s Store, key string, v bool) error {
	return s.Set(ctx, key, strconv.FormatBool(v))
}

// GetFloat parses a stored float, returning def when the key is missing.
func GetFloat(ctx context.Context, s Store, key string, def float64) (float64, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}

// SetFloat stores a float.
func SetFloat(ctx context.Context, s Store, key string, v float64) error {
	return s.Set(ctx, key, strconv.FormatFloat(v, 'f', -1, 64))
}
