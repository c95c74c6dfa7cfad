package remote

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/tokenledger/internal/domain"
	"github.com/congo-pay/tokenledger/internal/keys"
)

var mnemonicWords = []string{
	"abandon", "ability", "access", "anchor", "april", "basket", "bridge", "cable",
	"canyon", "cargo", "danger", "dolphin", "eagle", "engine", "fabric", "galaxy",
	"harbor", "island", "jungle", "kitten", "ladder", "marble", "needle", "orbit",
	"pepper", "quartz", "rocket", "saddle", "timber", "uniform", "velvet", "window",
}

// Simulator stands in for the custodial backend in local and demo setups.
// It mints real secp256k1 wallets whose key is encrypted under the configured
// key and approves every swap with a synthetic hash.
type Simulator struct {
	keys keys.KeyProvider
}

// NewSimulator constructs a simulator that encrypts generated keys with provider.
func NewSimulator(provider keys.KeyProvider) *Simulator {
	return &Simulator{keys: provider}
}

// CreateWallet generates a secp256k1 key and derives its address.
func (s *Simulator) CreateWallet(ctx context.Context, _ string) (domain.WalletKeyMaterial, error) {
	key, err := s.keys.Key(ctx)
	if err != nil {
		return domain.WalletKeyMaterial{}, err
	}
	priv, err := crypto.GenerateKey()
	if err != nil {
		return domain.WalletKeyMaterial{}, fmt.Errorf("generating key: %w", err)
	}
	iv := make([]byte, 16)
	if _, err := rand.Read(iv); err != nil {
		return domain.WalletKeyMaterial{}, fmt.Errorf("generating iv: %w", err)
	}
	encrypted, err := keys.Encrypt(key, iv, hexutil.Encode(crypto.FromECDSA(priv)))
	if err != nil {
		return domain.WalletKeyMaterial{}, err
	}
	mnemonic, err := randomMnemonic(12)
	if err != nil {
		return domain.WalletKeyMaterial{}, err
	}
	return domain.WalletKeyMaterial{
		Address:             crypto.PubkeyToAddress(priv.PublicKey).Hex(),
		EncryptedPrivateKey: encrypted,
		Mnemonic:            mnemonic,
	}, nil
}

// ExecuteSwap approves the swap with a random transaction hash.
func (s *Simulator) ExecuteSwap(_ context.Context, _ SwapRequest) (SwapReceipt, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return SwapReceipt{}, fmt.Errorf("reading random bytes: %w", err)
	}
	return SwapReceipt{ExternalTxHash: hexutil.Encode(b)}, nil
}

// FetchOnChainBalance is not available without a chain.
func (s *Simulator) FetchOnChainBalance(_ context.Context, _, _ string) (decimal.Decimal, error) {
	return decimal.Zero, ErrUnsupported
}

func randomMnemonic(n int) (string, error) {
	words := make([]string, n)
	max := big.NewInt(int64(len(mnemonicWords)))
	for i := range words {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("picking mnemonic word: %w", err)
		}
		words[i] = mnemonicWords[idx.Int64()]
	}
	return strings.Join(words, " "), nil
}
