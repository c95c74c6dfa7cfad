package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/congo-pay/tokenledger/internal/storage"
)

var (
	// ErrWalletNotFound indicates no wallet has been created yet.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWalletExists is returned when a wallet has already been stored.
	ErrWalletExists = errors.New("wallet already exists")
)

// Repository persists the single wallet profile.
type Repository interface {
	Create(ctx context.Context, profile Profile) error
	Get(ctx context.Context) (Profile, error)
}

// storedWallet is the on-disk shape of storage.KeyWallet.
type storedWallet struct {
	Address             string `json:"address"`
	EncryptedPrivateKey string `json:"encryptedPrivateKey"`
	EncryptedMnemonic   string `json:"encryptedMnemonic,omitempty"`
	RevealPINHash       []byte `json:"revealPinHash,omitempty"`
}

// KVRepository keeps the profile under the wallet keys of a storage.Store.
type KVRepository struct {
	mu sync.Mutex
	kv storage.Store
}

// NewRepository builds a repository over kv.
func NewRepository(kv storage.Store) *KVRepository {
	return &KVRepository{kv: kv}
}

// Create stores the profile once. A second call returns ErrWalletExists.
func (r *KVRepository) Create(ctx context.Context, profile Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.get(ctx); err == nil {
		return ErrWalletExists
	} else if !errors.Is(err, ErrWalletNotFound) {
		return err
	}

	rawWallet, err := json.Marshal(storedWallet{
		Address:             profile.Address,
		EncryptedPrivateKey: profile.EncryptedPrivateKey,
		EncryptedMnemonic:   profile.EncryptedMnemonic,
		RevealPINHash:       profile.RevealPINHash,
	})
	if err != nil {
		return fmt.Errorf("encoding wallet: %w", err)
	}
	rawName, err := json.Marshal(profile.DisplayName)
	if err != nil {
		return fmt.Errorf("encoding display name: %w", err)
	}
	rawCreated, err := json.Marshal(profile.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("encoding created at: %w", err)
	}

	return r.kv.Put(ctx, map[string][]byte{
		storage.KeyWallet:            rawWallet,
		storage.KeyWalletDisplayName: rawName,
		storage.KeyWalletCreatedAt:   rawCreated,
	})
}

// Get loads the stored profile.
func (r *KVRepository) Get(ctx context.Context) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(ctx)
}

func (r *KVRepository) get(ctx context.Context) (Profile, error) {
	entries, err := r.kv.Get(ctx, storage.KeyWallet, storage.KeyWalletDisplayName, storage.KeyWalletCreatedAt)
	if err != nil {
		return Profile{}, err
	}
	raw, ok := entries[storage.KeyWallet]
	if !ok {
		return Profile{}, ErrWalletNotFound
	}

	var sw storedWallet
	if err := json.Unmarshal(raw, &sw); err != nil {
		return Profile{}, fmt.Errorf("decoding wallet: %w", err)
	}
	profile := Profile{
		Address:             sw.Address,
		EncryptedPrivateKey: sw.EncryptedPrivateKey,
		EncryptedMnemonic:   sw.EncryptedMnemonic,
		RevealPINHash:       sw.RevealPINHash,
	}

	if rawName, ok := entries[storage.KeyWalletDisplayName]; ok {
		if err := json.Unmarshal(rawName, &profile.DisplayName); err != nil {
			return Profile{}, fmt.Errorf("decoding display name: %w", err)
		}
	}
	if rawCreated, ok := entries[storage.KeyWalletCreatedAt]; ok {
		var s string
		if err := json.Unmarshal(rawCreated, &s); err != nil {
			return Profile{}, fmt.Errorf("decoding created at: %w", err)
		}
		if profile.CreatedAt, err = time.Parse(time.RFC3339, s); err != nil {
			return Profile{}, fmt.Errorf("parsing created at: %w", err)
		}
	}
	return profile, nil
}
