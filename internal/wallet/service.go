package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/tokenledger/internal/domain"
	"github.com/congo-pay/tokenledger/internal/keys"
	"github.com/congo-pay/tokenledger/internal/remote"
)

const (
	defaultDisplayName = "My Wallet"
	minPINLength       = 4
)

var (
	// ErrInvalidKeyMaterial is returned when the backend hands back an unusable wallet.
	ErrInvalidKeyMaterial = errors.New("backend returned invalid key material")

	// ErrInvalidPIN indicates the reveal PIN did not match.
	ErrInvalidPIN = errors.New("invalid PIN")

	// ErrWeakPIN rejects reveal PINs shorter than the minimum length.
	ErrWeakPIN = errors.New("PIN must be at least 4 characters")
)

// Service creates the wallet and guards access to its private key.
type Service struct {
	repo      Repository
	backend   remote.Backend
	decryptor *keys.Decryptor
	now       func() time.Time
}

// NewService builds a wallet service instance.
func NewService(repo Repository, backend remote.Backend, decryptor *keys.Decryptor) *Service {
	return &Service{repo: repo, backend: backend, decryptor: decryptor, now: time.Now}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	Label     string
	RevealPIN string
}

// Created is the result of Create. Secret is never stored and cannot be fetched again.
type Created struct {
	Profile Profile
	Secret  Secret
}

// Create asks the backend for a new wallet and stores it. Only one wallet may exist.
func (s *Service) Create(ctx context.Context, input CreateInput) (Created, error) {
	if _, err := s.repo.Get(ctx); err == nil {
		return Created{}, ErrWalletExists
	} else if !errors.Is(err, ErrWalletNotFound) {
		return Created{}, err
	}

	if input.RevealPIN != "" && len(input.RevealPIN) < minPINLength {
		return Created{}, ErrWeakPIN
	}
	label := strings.TrimSpace(input.Label)
	if label == "" {
		label = defaultDisplayName
	}

	km, err := s.backend.CreateWallet(ctx, label)
	if err != nil {
		return Created{}, err
	}
	if !domain.IsAddress(km.Address) {
		return Created{}, fmt.Errorf("%w: address %q", ErrInvalidKeyMaterial, km.Address)
	}
	if _, _, err := keys.Parse(km.EncryptedPrivateKey); err != nil {
		return Created{}, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	privateKey, err := s.decryptor.Decrypt(ctx, km.EncryptedPrivateKey)
	if err != nil {
		return Created{}, err
	}

	var sealedMnemonic string
	if km.Mnemonic != "" {
		if sealedMnemonic, err = s.decryptor.Seal(ctx, km.Mnemonic); err != nil {
			return Created{}, err
		}
	}

	profile := Profile{
		Address:             km.Address,
		EncryptedPrivateKey: km.EncryptedPrivateKey,
		EncryptedMnemonic:   sealedMnemonic,
		DisplayName:         label,
		CreatedAt:           s.now().UTC().Truncate(time.Second),
	}
	if input.RevealPIN != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.RevealPIN), bcrypt.DefaultCost)
		if err != nil {
			return Created{}, err
		}
		profile.RevealPINHash = hash
	}

	if err := s.repo.Create(ctx, profile); err != nil {
		return Created{}, err
	}
	return Created{Profile: profile, Secret: Secret{PrivateKey: privateKey, Mnemonic: km.Mnemonic}}, nil
}

// Get retrieves the wallet profile.
func (s *Service) Get(ctx context.Context) (Profile, error) {
	return s.repo.Get(ctx)
}

// Address returns the wallet address.
func (s *Service) Address(ctx context.Context) (string, error) {
	p, err := s.repo.Get(ctx)
	if err != nil {
		return "", err
	}
	return p.Address, nil
}

// Reveal decrypts the private key and mnemonic after checking the PIN, when
// one is set. Any decryption failure aborts the whole reveal.
func (s *Service) Reveal(ctx context.Context, pin string) (Secret, error) {
	p, err := s.repo.Get(ctx)
	if err != nil {
		return Secret{}, err
	}
	if p.HasPIN() {
		if err := bcrypt.CompareHashAndPassword(p.RevealPINHash, []byte(pin)); err != nil {
			return Secret{}, ErrInvalidPIN
		}
	}
	privateKey, err := s.decryptor.Decrypt(ctx, p.EncryptedPrivateKey)
	if err != nil {
		return Secret{}, err
	}
	secret := Secret{PrivateKey: privateKey}
	if p.EncryptedMnemonic != "" {
		if secret.Mnemonic, err = s.decryptor.Decrypt(ctx, p.EncryptedMnemonic); err != nil {
			return Secret{}, err
		}
	}
	return secret, nil
}
