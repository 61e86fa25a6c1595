package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sable/internal/crypto"
	"sable/internal/domain"
)

func TestDHIsCommutative(t *testing.T) {
	a, err := crypto.NewKeyPair()
	require.NoError(t, err)
	b, err := crypto.NewKeyPair()
	require.NoError(t, err)

	s1, err := crypto.DH(a.Private, b.Public)
	require.NoError(t, err)
	s2, err := crypto.DH(b.Private, a.Public)
	require.NoError(t, err)
	require.Equal(t, s1, s2)
}

func TestDHRejectsLowOrderPoint(t *testing.T) {
	kp, err := crypto.NewKeyPair()
	require.NoError(t, err)

	var zero domain.X25519Public
	_, err = crypto.DH(kp.Private, zero)
	require.ErrorIs(t, err, crypto.ErrInvalidPublicKey)
}

func TestKeyPairFromPrivateIsStable(t *testing.T) {
	kp, err := crypto.NewKeyPair()
	require.NoError(t, err)

	again, err := crypto.KeyPairFromPrivate(kp.Private)
	require.NoError(t, err)
	require.Equal(t, kp.Public, again.Public)
}

func TestFingerprint(t *testing.T) {
	a, err := crypto.NewKeyPair()
	require.NoError(t, err)
	b, err := crypto.NewKeyPair()
	require.NoError(t, err)

	require.Len(t, crypto.Fingerprint(a.Public), 20)
	require.NotEqual(t, crypto.Fingerprint(a.Public), crypto.Fingerprint(b.Public))
}
