package auth_test

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pump-pill/arenax/pkg/auth"
)

func newWallet(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return hex.EncodeToString(pub), priv
}

func TestVerifyProof(t *testing.T) {
	wallet, priv := newWallet(t)
	message := "link " + wallet + " to pump pill arena"
	signature := hex.EncodeToString(ed25519.Sign(priv, []byte(message)))

	t.Run("valid proof", func(t *testing.T) {
		got, err := auth.VerifyProof(auth.Proof{
			Wallet:    wallet,
			Message:   message,
			Signature: signature,
		})
		require.NoError(t, err)
		assert.Equal(t, wallet, got)
	})

	t.Run("mixed-case wallet normalizes to lowercase", func(t *testing.T) {
		got, err := auth.VerifyProof(auth.Proof{
			Wallet:    strings.ToUpper(wallet),
			Message:   message,
			Signature: signature,
		})
		require.NoError(t, err)
		// The returned address is the store key; it must match the
		// lowercase form grants are written under.
		assert.Equal(t, wallet, got)
	})

	t.Run("message must reference wallet", func(t *testing.T) {
		msg := "claim my rewards"
		sig := hex.EncodeToString(ed25519.Sign(priv, []byte(msg)))
		_, err := auth.VerifyProof(auth.Proof{
			Wallet:    wallet,
			Message:   msg,
			Signature: sig,
		})
		assert.Error(t, err)
	})

	t.Run("signature from another key rejected", func(t *testing.T) {
		_, otherPriv := newWallet(t)
		sig := hex.EncodeToString(ed25519.Sign(otherPriv, []byte(message)))
		_, err := auth.VerifyProof(auth.Proof{
			Wallet:    wallet,
			Message:   message,
			Signature: sig,
		})
		assert.Error(t, err)
	})

	t.Run("proof not transferable between wallets", func(t *testing.T) {
		otherWallet, _ := newWallet(t)
		_, err := auth.VerifyProof(auth.Proof{
			Wallet:    otherWallet,
			Message:   message,
			Signature: signature,
		})
		assert.Error(t, err)
	})

	t.Run("malformed inputs", func(t *testing.T) {
		for _, p := range []auth.Proof{
			{Wallet: "", Message: message, Signature: signature},
			{Wallet: "not-hex", Message: message, Signature: signature},
			{Wallet: "abcd", Message: message, Signature: signature},
			{Wallet: wallet, Message: message, Signature: "zz"},
		} {
			_, err := auth.VerifyProof(p)
			assert.Error(t, err)
		}
	})
}

func TestSessions(t *testing.T) {
	sessions := auth.NewSessions()
	wallet, _ := newWallet(t)

	token, err := sessions.Mint(wallet)
	require.NoError(t, err)

	parsed, err := sessions.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, wallet, parsed)

	_, err = sessions.Parse(token + "tampered")
	assert.Error(t, err)

	_, err = sessions.Parse("not-a-token")
	assert.Error(t, err)
}
