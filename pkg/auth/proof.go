package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"
)

// Proof is a wallet-ownership proof: an ed25519 signature over a message that
// must embed the wallet address. Wallet addresses are hex-encoded ed25519
// public keys, so the address itself is the verification key.
type Proof struct {
	Wallet    string `json:"wallet"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// VerifyProof checks that the signature was produced by the wallet's key over
// the message, and that the message binds to the wallet address. A proof for
// one wallet can never be replayed for another. Returns the normalized
// (lowercase) wallet address; callers must use it, not the raw proof field,
// for store lookups so mixed-case submissions hit the same rows.
func VerifyProof(p Proof) (string, error) {
	wallet := strings.ToLower(strings.TrimSpace(p.Wallet))
	if wallet == "" {
		return "", fmt.Errorf("proof missing wallet")
	}

	pub, err := hex.DecodeString(wallet)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("wallet %q is not a valid public key", p.Wallet)
	}

	if !strings.Contains(strings.ToLower(p.Message), wallet) {
		return "", fmt.Errorf("proof message does not reference wallet")
	}

	sig, err := hex.DecodeString(p.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return "", fmt.Errorf("malformed signature")
	}

	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(p.Message), sig) {
		return "", fmt.Errorf("signature verification failed")
	}
	return wallet, nil
}
