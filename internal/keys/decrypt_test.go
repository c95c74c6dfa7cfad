package keys

import (
	"context"
	"errors"
	"strings"
	"testing"
)

var (
	testKey = []byte("0123456789abcdef0123456789abcdef")
	testIV  = []byte("fedcba9876543210")
)

const testPrivateKey = "ca2b7c89c92f93e4f733701f2dab75188ac6b46ec65ad14b392665a17da1d64b"

func mustEncrypt(t *testing.T, key []byte, plaintext string) string {
	t.Helper()
	blob, err := Encrypt(key, testIV, plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	return blob
}

func TestDecryptRoundTrip(t *testing.T) {
	for _, key := range [][]byte{testKey[:16], testKey[:24], testKey} {
		blob := mustEncrypt(t, key, testPrivateKey)
		d := NewDecryptor(StaticKey(key))

		got, err := d.Decrypt(context.Background(), blob)
		if err != nil {
			t.Fatalf("decrypt with %d-byte key: %v", len(key), err)
		}
		if got != testPrivateKey {
			t.Fatalf("plaintext = %q, want %q", got, testPrivateKey)
		}
	}
}

func TestDecryptDeterministic(t *testing.T) {
	blob := mustEncrypt(t, testKey, testPrivateKey)
	d := NewDecryptor(StaticKey(testKey))
	first, err := d.Decrypt(context.Background(), blob)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	for i := 0; i < 10; i++ {
		got, err := d.Decrypt(context.Background(), blob)
		if err != nil || got != first {
			t.Fatalf("decrypt not deterministic: got %q, %v", got, err)
		}
	}
}

func TestDecryptMalformed(t *testing.T) {
	valid := mustEncrypt(t, testKey, testPrivateKey)
	ivHex, cipherHex, _ := strings.Cut(valid, ":")

	tests := []struct {
		name  string
		input string
	}{
		{"no separator", "deadbeef"},
		{"empty", ""},
		{"empty iv", ":" + cipherHex},
		{"empty ciphertext", ivHex + ":"},
		{"two separators", ivHex + ":" + cipherHex + ":00"},
		{"non hex iv", "zz" + ivHex[2:] + ":" + cipherHex},
		{"non hex ciphertext", ivHex + ":" + cipherHex[:len(cipherHex)-1] + "q"},
		{"odd length hex", ivHex + ":" + cipherHex[:len(cipherHex)-1]},
		{"short iv", ivHex[:10] + ":" + cipherHex},
	}

	d := NewDecryptor(StaticKey(testKey))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Decrypt(context.Background(), tt.input)
			if !errors.Is(err, ErrMalformedCiphertext) {
				t.Fatalf("err = %v, want ErrMalformedCiphertext", err)
			}
			if got != "" {
				t.Fatalf("returned partial plaintext %q", got)
			}
		})
	}
}

func TestDecryptSingleHexAlteration(t *testing.T) {
	blob := mustEncrypt(t, testKey, testPrivateKey)
	d := NewDecryptor(StaticKey(testKey))

	for i, c := range blob {
		if c == ':' {
			continue
		}
		flipped := byte('0')
		if c == '0' {
			flipped = '1'
		}
		altered := blob[:i] + string(flipped) + blob[i+1:]

		got, err := d.Decrypt(context.Background(), altered)
		if err == nil && got == testPrivateKey {
			t.Fatalf("altering position %d passed through silently", i)
		}
		if err != nil && !errors.Is(err, ErrDecryption) {
			t.Fatalf("altering position %d: err = %v, want ErrDecryption", i, err)
		}
		if err != nil && got != "" {
			t.Fatalf("altering position %d returned partial plaintext", i)
		}
	}
}

func TestDecryptWrongKey(t *testing.T) {
	blob := mustEncrypt(t, testKey, testPrivateKey)
	other := []byte("ffffffffffffffffffffffffffffffff")

	got, err := NewDecryptor(StaticKey(other)).Decrypt(context.Background(), blob)
	if err == nil && got == testPrivateKey {
		t.Fatal("wrong key decrypted to the original plaintext")
	}
}

func TestDecryptPartialBlock(t *testing.T) {
	blob := mustEncrypt(t, testKey, testPrivateKey)
	truncated := blob[:len(blob)-2]

	_, err := NewDecryptor(StaticKey(testKey)).Decrypt(context.Background(), truncated)
	if !errors.Is(err, ErrDecryption) {
		t.Fatalf("err = %v, want ErrDecryption", err)
	}
}

func TestDecryptInvalidKeyLength(t *testing.T) {
	blob := mustEncrypt(t, testKey, testPrivateKey)
	_, err := NewDecryptor(StaticKey("short")).Decrypt(context.Background(), blob)
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("err = %v, want ErrInvalidKey", err)
	}

	_, err = NewDecryptor(StaticKey(nil)).Decrypt(context.Background(), blob)
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("err = %v, want ErrInvalidKey for empty key", err)
	}
}

func TestEnvKey(t *testing.T) {
	t.Setenv("TEST_WALLET_KEY", "30313233343536373839616263646566")

	key, err := EnvKey{Var: "TEST_WALLET_KEY", Hex: true}.Key(context.Background())
	if err != nil {
		t.Fatalf("EnvKey: %v", err)
	}
	if string(key) != "0123456789abcdef" {
		t.Fatalf("key = %q", key)
	}

	if _, err := (EnvKey{Var: "TEST_WALLET_KEY_MISSING"}).Key(context.Background()); err == nil {
		t.Fatal("expected error for missing env var")
	}
}

func TestSealRoundTrip(t *testing.T) {
	d := NewDecryptor(StaticKey([]byte("0123456789abcdef")))
	ctx := context.Background()

	a, err := d.Seal(ctx, "word word word")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	b, err := d.Seal(ctx, "word word word")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if a == b {
		t.Fatalf("expected a fresh iv per call")
	}
	plain, err := d.Decrypt(ctx, a)
	if err != nil || plain != "word word word" {
		t.Fatalf("decrypt sealed value: %q, %v", plain, err)
	}

	if _, err := NewDecryptor(StaticKey(nil)).Seal(ctx, "x"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}
