package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pump-pill/arenax/pkg/utils"
)

// SessionTTL is how long a wallet session stays valid after a proof.
const SessionTTL = 8 * time.Hour

// Sessions mints and parses wallet session tokens so wallets prove ownership
// once and then call the authenticated endpoints with a bearer token.
type Sessions struct {
	secret []byte
}

// NewSessions builds a session minter from WALLET_JWT_SECRET.
func NewSessions() *Sessions {
	return &Sessions{secret: []byte(utils.Env("WALLET_JWT_SECRET", "dev-wallet-secret"))}
}

// Mint issues a signed session token for a verified wallet.
func (s *Sessions) Mint(wallet string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": wallet,
		"exp": time.Now().Add(SessionTTL).Unix(),
		"iat": time.Now().Unix(),
	})
	return token.SignedString(s.secret)
}

// Parse validates a session token and returns the wallet it was minted for.
func (s *Sessions) Parse(raw string) (string, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) { return s.secret, nil })
	if err != nil || !tok.Valid {
		return "", fmt.Errorf("invalid session token")
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid session claims")
	}
	wallet, _ := claims["sub"].(string)
	if wallet == "" {
		return "", fmt.Errorf("session missing wallet")
	}
	return wallet, nil
}
