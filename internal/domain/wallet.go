package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsAddress reports whether s is "0x" followed by exactly 40 hex characters.
func IsAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// WalletKeyMaterial is what the backend hands back when a wallet is created.
// The private key is only ever held encrypted as "ivHex:cipherHex".
type WalletKeyMaterial struct {
	Address             string `json:"address"`
	EncryptedPrivateKey string `json:"encryptedPrivateKey"`
	Mnemonic            string `json:"mnemonic"`
}
