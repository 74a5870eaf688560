package secretstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/syncforge/syncforge/internal/models"
	"gorm.io/gorm"
)

// localRefPrefix marks references issued by the local backend.
const localRefPrefix = "local:"

// LocalStore encrypts secrets with AES-256-GCM and persists them in the
// secrets table. The cipher key is derived from the configured passphrase.
type LocalStore struct {
	db   *gorm.DB
	aead cipher.AEAD
}

// NewLocalStore builds a LocalStore from the configured passphrase.
func NewLocalStore(db *gorm.DB, passphrase string) (*LocalStore, error) {
	if db == nil {
		return nil, errors.New("secretstore: nil db")
	}
	if strings.TrimSpace(passphrase) == "" {
		return nil, errors.New("secretstore: empty encryption key")
	}
	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("secretstore: cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secretstore: gcm: %w", err)
	}
	return &LocalStore{db: db, aead: aead}, nil
}

// Put upserts the secret row for (userID, name) and returns its reference.
func (s *LocalStore) Put(ctx context.Context, userID uint64, name, value string) (string, error) {
	sealed, err := s.seal(value)
	if err != nil {
		return "", err
	}

	var row models.Secret
	errFind := s.db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, name).
		First(&row).Error
	switch {
	case errFind == nil:
		row.Ciphertext = sealed
		if errSave := s.db.WithContext(ctx).Save(&row).Error; errSave != nil {
			return "", fmt.Errorf("secretstore: update secret: %w", errSave)
		}
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		row = models.Secret{
			UserID:     userID,
			Name:       name,
			Ref:        localRefPrefix + uuid.NewString(),
			Ciphertext: sealed,
		}
		if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
			return "", fmt.Errorf("secretstore: create secret: %w", errCreate)
		}
	default:
		return "", fmt.Errorf("secretstore: query secret: %w", errFind)
	}

	return row.Ref, nil
}

// Get resolves a local reference for the owning user.
func (s *LocalStore) Get(ctx context.Context, userID uint64, ref string) (string, error) {
	if !strings.HasPrefix(ref, localRefPrefix) {
		return "", ErrSecretNotFound
	}

	var row models.Secret
	errFind := s.db.WithContext(ctx).
		Where("user_id = ? AND ref = ?", userID, ref).
		First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("secretstore: query secret: %w", errFind)
	}

	return s.open(row.Ciphertext)
}

// Delete removes the secret row behind a local reference.
func (s *LocalStore) Delete(ctx context.Context, userID uint64, ref string) error {
	if !strings.HasPrefix(ref, localRefPrefix) {
		return nil
	}
	if errDelete := s.db.WithContext(ctx).
		Where("user_id = ? AND ref = ?", userID, ref).
		Delete(&models.Secret{}).Error; errDelete != nil {
		return fmt.Errorf("secretstore: delete secret: %w", errDelete)
	}
	return nil
}

// seal encrypts a plaintext into base64(nonce || ciphertext).
func (s *LocalStore) seal(value string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secretstore: nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(value), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// open reverses seal.
func (s *LocalStore) open(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("secretstore: decode ciphertext: %w", err)
	}
	if len(raw) < s.aead.NonceSize() {
		return "", errors.New("secretstore: ciphertext too short")
	}
	nonce, sealed := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("secretstore: decrypt: %w", err)
	}
	return string(plain), nil
}
