package db

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	adminKeyPrefixLength = 7
	adminKeySecretLength = 32
)

// ErrAdminKeyFailedToParse is returned when a presented key string doesn't
// have the prefix.secret shape ValidateAdminKey expects.
var ErrAdminKeyFailedToParse = errors.New("failed to parse admin key")

// AdminKey gates nnpshare's diagnostic HTTP endpoint. It has nothing to do
// with the frontend/backend grant protocol, which per spec carries no
// authentication at all; this guards the operator-facing /sessions and
// /metrics surface only.
type AdminKey struct {
	ID     uint64 `gorm:"primary_key"`
	Prefix string `gorm:"uniqueIndex"`
	Hash   []byte

	CreatedAt  time.Time
	Expiration *time.Time
}

func randomURLSafeString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("nnpcore/db: generate random string: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CreateAdminKey generates a new key, stores its bcrypt hash, and returns
// the one-time plaintext value along with the stored record.
func (d *DB) CreateAdminKey(expiration *time.Time) (string, *AdminKey, error) {
	prefix, err := randomURLSafeString(adminKeyPrefixLength)
	if err != nil {
		return "", nil, err
	}
	secret, err := randomURLSafeString(adminKeySecretLength)
	if err != nil {
		return "", nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("nnpcore/db: hash admin key: %w", err)
	}

	key := AdminKey{
		Prefix:     prefix,
		Hash:       hash,
		CreatedAt:  time.Now(),
		Expiration: expiration,
	}
	if err := d.gorm.Save(&key).Error; err != nil {
		return "", nil, fmt.Errorf("nnpcore/db: save admin key: %w", err)
	}

	return prefix + "." + secret, &key, nil
}

// ListAdminKeys returns every admin key record.
func (d *DB) ListAdminKeys() ([]AdminKey, error) {
	var keys []AdminKey
	if err := d.gorm.Find(&keys).Error; err != nil {
		return nil, fmt.Errorf("nnpcore/db: list admin keys: %w", err)
	}
	return keys, nil
}

// GetAdminKey returns the key record for prefix.
func (d *DB) GetAdminKey(prefix string) (*AdminKey, error) {
	var key AdminKey
	if err := d.gorm.First(&key, "prefix = ?", prefix).Error; err != nil {
		return nil, fmt.Errorf("nnpcore/db: get admin key %q: %w", prefix, err)
	}
	return &key, nil
}

// DestroyAdminKey permanently removes key.
func (d *DB) DestroyAdminKey(key AdminKey) error {
	if err := d.gorm.Unscoped().Delete(&key).Error; err != nil {
		return fmt.Errorf("nnpcore/db: destroy admin key: %w", err)
	}
	return nil
}

// ExpireAdminKey marks key as expired as of now.
func (d *DB) ExpireAdminKey(key *AdminKey) error {
	now := time.Now()
	if err := d.gorm.Model(key).Update("Expiration", &now).Error; err != nil {
		return fmt.Errorf("nnpcore/db: expire admin key: %w", err)
	}
	return nil
}

// ValidateAdminKey reports whether keyStr names a known, unexpired key
// whose secret matches its stored bcrypt hash.
func (d *DB) ValidateAdminKey(keyStr string) (bool, error) {
	prefix, secret, found := strings.Cut(keyStr, ".")
	if !found {
		return false, ErrAdminKeyFailedToParse
	}

	key, err := d.GetAdminKey(prefix)
	if err != nil {
		return false, fmt.Errorf("nnpcore/db: validate admin key: %w", err)
	}

	if key.Expiration != nil && key.Expiration.Before(time.Now()) {
		return false, nil
	}

	if err := bcrypt.CompareHashAndPassword(key.Hash, []byte(secret)); err != nil {
		return false, nil
	}

	return true, nil
}
