package keys

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
)

// KeyProvider supplies the symmetric key used to decrypt wallet key material.
//
// The backend encrypts every wallet's private key under one pre-shared key, so
// whoever holds this key can read every private key it ever issued. StaticKey
// keeps that behaviour for demos; a real deployment should plug in a provider
// backed by per-user key derivation or a KMS.
type KeyProvider interface {
	Key(ctx context.Context) ([]byte, error)
}

// StaticKey is a fixed key handed in through configuration.
type StaticKey []byte

// Key returns a copy of the configured key.
func (k StaticKey) Key(_ context.Context) ([]byte, error) {
	if len(k) == 0 {
		return nil, errors.New("no decryption key configured")
	}
	out := make([]byte, len(k))
	copy(out, k)
	return out, nil
}

// EnvKey reads the key from the environment on every call so it can be rotated
// without restarting. Hex-encoded values are decoded when Hex is set.
type EnvKey struct {
	Var string
	Hex bool
}

// Key looks up the environment variable.
func (k EnvKey) Key(_ context.Context) ([]byte, error) {
	v := os.Getenv(k.Var)
	if v == "" {
		return nil, fmt.Errorf("%s is not set", k.Var)
	}
	if !k.Hex {
		return []byte(v), nil
	}
	b, err := hex.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", k.Var, err)
	}
	return b, nil
}
