package keys

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	// ErrMalformedCiphertext indicates the input is not "ivHex:cipherHex".
	ErrMalformedCiphertext = errors.New("malformed ciphertext")

	// ErrDecryption indicates the ciphertext could not be decrypted with the configured key.
	ErrDecryption = errors.New("decryption failed")

	// ErrInvalidKey indicates the key provider returned unusable key material.
	ErrInvalidKey = errors.New("invalid decryption key")
)

const separator = ":"

// Decryptor turns an encrypted private key blob into plaintext for display.
// It keeps no state besides its key provider and never logs what it decrypts.
type Decryptor struct {
	keys KeyProvider
}

// NewDecryptor builds a decryptor that obtains its AES key from provider.
func NewDecryptor(provider KeyProvider) *Decryptor {
	return &Decryptor{keys: provider}
}

// Decrypt parses "ivHex:cipherHex" and decrypts it with AES-CBC.
func (d *Decryptor) Decrypt(ctx context.Context, encrypted string) (string, error) {
	iv, ciphertext, err := Parse(encrypted)
	if err != nil {
		return "", err
	}

	key, err := d.keys.Key(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	block, err := newBlock(key)
	if err != nil {
		return "", err
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext is not a whole number of blocks", ErrDecryption)
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	unpadded, err := unpad(plain)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(unpadded) {
		return "", fmt.Errorf("%w: plaintext is not valid text", ErrDecryption)
	}
	return string(unpadded), nil
}

// Seal encrypts plaintext under the provider key with a fresh random IV.
// The result is accepted by Decrypt.
func (d *Decryptor) Seal(ctx context.Context, plaintext string) (string, error) {
	key, err := d.keys.Key(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generating iv: %w", err)
	}
	return Encrypt(key, iv, plaintext)
}

// Parse splits and hex-decodes an "ivHex:cipherHex" blob.
func Parse(encrypted string) (iv, ciphertext []byte, err error) {
	ivHex, cipherHex, ok := strings.Cut(encrypted, separator)
	if !ok {
		return nil, nil, fmt.Errorf("%w: missing %q separator", ErrMalformedCiphertext, separator)
	}
	if ivHex == "" || cipherHex == "" {
		return nil, nil, fmt.Errorf("%w: empty segment", ErrMalformedCiphertext)
	}
	if strings.Contains(cipherHex, separator) {
		return nil, nil, fmt.Errorf("%w: more than one separator", ErrMalformedCiphertext)
	}

	iv, err = hex.DecodeString(ivHex)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: iv: %v", ErrMalformedCiphertext, err)
	}
	if len(iv) != aes.BlockSize {
		return nil, nil, fmt.Errorf("%w: iv must be %d bytes, got %d", ErrMalformedCiphertext, aes.BlockSize, len(iv))
	}
	ciphertext, err = hex.DecodeString(cipherHex)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: ciphertext: %v", ErrMalformedCiphertext, err)
	}
	return iv, ciphertext, nil
}

// Encrypt produces an "ivHex:cipherHex" blob with PKCS#7 padding.
// The simulated backend uses it to mint key material.
func Encrypt(key, iv []byte, plaintext string) (string, error) {
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("iv must be %d bytes", aes.BlockSize)
	}
	block, err := newBlock(key)
	if err != nil {
		return "", err
	}
	padded := pad([]byte(plaintext))
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return hex.EncodeToString(iv) + separator + hex.EncodeToString(out), nil
}

func newBlock(key []byte) (cipher.Block, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: key must be 16, 24 or 32 bytes, got %d", ErrInvalidKey, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return block, nil
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrDecryption)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
		}
	}
	return b[:len(b)-n], nil
}
