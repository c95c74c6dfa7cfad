package wallet

import "time"

// Profile is the stored wallet. The private key and mnemonic are only held encrypted.
type Profile struct {
	Address             string    `json:"address"`
	EncryptedPrivateKey string    `json:"encryptedPrivateKey"`
	EncryptedMnemonic   string    `json:"-"`
	DisplayName         string    `json:"displayName"`
	CreatedAt           time.Time `json:"createdAt"`
	RevealPINHash       []byte    `json:"-"`
}

// HasPIN reports whether revealing the key requires a PIN.
func (p Profile) HasPIN() bool {
	return len(p.RevealPINHash) > 0
}

// Secret is the plaintext key material handed out at creation and on reveal.
type Secret struct {
	PrivateKey string `json:"privateKey"`
	Mnemonic   string `json:"mnemonic"`
}
