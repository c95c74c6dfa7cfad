package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/tokenledger/internal/domain"
	"github.com/congo-pay/tokenledger/internal/keys"
	"github.com/congo-pay/tokenledger/internal/ledger"
	"github.com/congo-pay/tokenledger/internal/logging"
	"github.com/congo-pay/tokenledger/internal/payments"
	"github.com/congo-pay/tokenledger/internal/remote"
	"github.com/congo-pay/tokenledger/internal/storage"
	"github.com/congo-pay/tokenledger/internal/wallet"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestEnv() *env {
	provider := keys.StaticKey(testKey)
	backend := remote.NewSimulator(provider)
	l := ledger.NewInMemory()
	ledger.SeedBalance(l, domain.TokenBalance{ID: "0xusdt", Symbol: "USDT", Decimals: 6, UnitPrice: decimal.NewFromInt(1)}, "100")
	ledger.SeedBalance(l, domain.TokenBalance{ID: "0xlink", Symbol: "LINK", Decimals: 18, UnitPrice: decimal.NewFromInt(10)}, "0")
	decryptor := keys.NewDecryptor(provider)
	return &env{
		ledger:    l,
		payments:  payments.NewService(l, backend, logging.Discard()),
		wallets:   wallet.NewService(wallet.NewRepository(storage.NewMemory()), backend, decryptor),
		decryptor: decryptor,
	}
}

func runCmd(t *testing.T, e *env, args ...string) (string, error) {
	t.Helper()
	app := newApp(func(context.Context) (*env, error) { return e, nil })
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out
	err := app.RunContext(context.Background(), append([]string{"walletctl"}, args...))
	return out.String(), err
}

func TestBalancesCommand(t *testing.T) {
	out, err := runCmd(t, newTestEnv(), "balances")
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if !strings.Contains(out, "USDT") || !strings.Contains(out, "100.00") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestSendAndReceiveBySymbol(t *testing.T) {
	e := newTestEnv()
	if _, err := runCmd(t, e, "send", "--token", "usdt", "--to", "0x2222222222222222222222222222222222222222", "--amount", "30", "-k", "s1"); err != nil {
		t.Fatalf("send: %v", err)
	}
	out, err := runCmd(t, e, "send", "--token", "usdt", "--to", "0x2222222222222222222222222222222222222222", "--amount", "30", "-k", "s1")
	if err != nil {
		t.Fatalf("repeated send: %v", err)
	}
	if !strings.Contains(out, "already recorded") {
		t.Fatalf("expected duplicate notice, got %q", out)
	}
	if _, err := runCmd(t, e, "receive", "--token", "0xlink", "--amount", "2"); err != nil {
		t.Fatalf("receive: %v", err)
	}

	usdt, _ := e.ledger.Balance("0xusdt")
	link, _ := e.ledger.Balance("0xlink")
	if !usdt.Balance.Equal(decimal.NewFromInt(70)) || !link.Balance.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unexpected balances usdt=%s link=%s", usdt.Balance, link.Balance)
	}

	out, err = runCmd(t, e, "transactions", "--token", "USDT")
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if !strings.Contains(out, "Sent 30 USDT") || strings.Contains(out, "LINK") {
		t.Fatalf("unexpected history:\n%s", out)
	}
}

func TestSendRejectsOverdraft(t *testing.T) {
	_, err := runCmd(t, newTestEnv(), "send", "--token", "USDT", "--to", "0x2222222222222222222222222222222222222222", "--amount", "500")
	if err == nil || !strings.Contains(err.Error(), "insufficient balance") {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestQuoteCommand(t *testing.T) {
	out, err := runCmd(t, newTestEnv(), "quote", "--from", "USDT", "--to", "LINK", "--amount", "10")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !strings.Contains(out, "-> 0.99") {
		t.Fatalf("unexpected quote %q", out)
	}
}

func TestWalletSwapAndDecrypt(t *testing.T) {
	e := newTestEnv()
	if _, err := runCmd(t, e, "swap", "--from", "USDT", "--to", "LINK", "--amount", "10"); err == nil {
		t.Fatalf("expected swap without wallet to fail")
	}

	out, err := runCmd(t, e, "wallet", "create", "--pin", "2468")
	if err != nil {
		t.Fatalf("wallet create: %v", err)
	}
	if !strings.Contains(out, "mnemonic:") {
		t.Fatalf("unexpected create output %q", out)
	}
	if _, err := runCmd(t, e, "wallet", "reveal", "--pin", "0000"); err == nil {
		t.Fatalf("expected reveal with wrong pin to fail")
	}
	revealed, err := runCmd(t, e, "wallet", "reveal", "--pin", "2468")
	if err != nil {
		t.Fatalf("wallet reveal: %v", err)
	}
	if revealed != out[strings.Index(out, "private key:"):] {
		t.Fatalf("reveal output %q does not match creation output %q", revealed, out)
	}

	if _, err := runCmd(t, e, "swap", "--from", "USDT", "--to", "LINK", "--amount", "10"); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if link, _ := e.ledger.Balance("0xlink"); !link.Balance.Equal(decimal.RequireFromString("0.99")) {
		t.Fatalf("expected 0.99 LINK, got %s", link.Balance)
	}

	iv := []byte("fedcba9876543210")
	payload, err := keys.Encrypt(testKey, iv, "0xsecret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	out, err = runCmd(t, e, "decrypt", payload)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if strings.TrimSpace(out) != "0xsecret" {
		t.Fatalf("unexpected plaintext %q", out)
	}
	if _, err := runCmd(t, e, "decrypt"); err == nil {
		t.Fatalf("expected missing payload error")
	}
}
