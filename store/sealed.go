package store

import (
	"context"
	"fmt"

	"github.com/onnwee/livewatch/crypto"
)

// SealedStore encrypts the values of selected keys before handing them to the
// wrapped backend. Other keys pass through untouched.
type SealedStore struct {
	Inner     Store
	Encryptor crypto.Encryptor
	Keys      map[string]bool
}

// NewSealedStore seals KeyAccessToken by default.
func NewSealedStore(inner Store, enc crypto.Encryptor) *SealedStore {
	return &SealedStore{Inner: inner, Encryptor: enc, Keys: map[string]bool{KeyAccessToken: true}}
}

func (s *SealedStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.Inner.Get(ctx, key)
	if err != nil || !ok || !s.Keys[key] {
		return v, ok, err
	}
	plain, err := s.Encryptor.Open(v)
	if err != nil {
		return "", false, fmt.Errorf("open %s: %w", key, err)
	}
	return plain, true, nil
}

func (s *SealedStore) Set(ctx context.Context, key, value string) error {
	if !s.Keys[key] {
		return s.Inner.Set(ctx, key, value)
	}
	sealed, err := s.Encryptor.Seal(value)
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	return s.Inner.Set(ctx, key, sealed)
}

func (s *SealedStore) Delete(ctx context.Context, key string) error {
	return s.Inner.Delete(ctx, key)
}

// SealPlaintext rewrites plaintext values of the sealed keys in raw (an unwrapped
// backend) as sealed values. It returns the keys that were, or with dryRun would
// be, rewritten. Values already sealed are skipped.
func SealPlaintext(ctx context.Context, raw Store, enc crypto.Encryptor, keys []string, dryRun bool) ([]string, error) {
	var sealed []string
	for _, key := range keys {
		v, ok, err := raw.Get(ctx, key)
		if err != nil {
			return sealed, fmt.Errorf("read %s: %w", key, err)
		}
		if !ok || v == "" || crypto.IsSealed(v) {
			continue
		}
		if !dryRun {
			s, err := enc.Seal(v)
			if err != nil {
				return sealed, fmt.Errorf("seal %s: %w", key, err)
			}
			if err := raw.Set(ctx, key, s); err != nil {
				return sealed, fmt.Errorf("write %s: %w", key, err)
			}
		}
		sealed = append(sealed, key)
	}
	return sealed, nil
}
