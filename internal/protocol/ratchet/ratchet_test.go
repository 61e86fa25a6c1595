package ratchet_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sable/internal/crypto"
	"sable/internal/domain"
	"sable/internal/protocol/ratchet"
)

func makeKeyPair(t *testing.T) domain.KeyPair {
	t.Helper()
	kp, err := crypto.NewKeyPair()
	require.NoError(t, err)
	return kp
}

func TestBootstrapRoundTrip(t *testing.T) {
	alice, err := ratchet.BootstrapInitiator()
	require.NoError(t, err)
	bob := ratchet.BootstrapResponder()

	sealed, alice, err := ratchet.Encrypt(alice, "hi")
	require.NoError(t, err)

	text, bob, err := ratchet.Decrypt(bob, sealed)
	require.NoError(t, err)
	require.Equal(t, "hi", text)

	// Bob's state now carries Alice's ephemeral key, so he can reply.
	sealed, _, err = ratchet.Encrypt(bob, "welcome")
	require.NoError(t, err)

	text, _, err = ratchet.Decrypt(alice, sealed)
	require.NoError(t, err)
	require.Equal(t, "welcome", text)
}

func TestDirectoryModeSharesRoot(t *testing.T) {
	kpA := makeKeyPair(t)
	kpB := makeKeyPair(t)

	alice, err := ratchet.NewWithPeer(kpA, kpB.Public)
	require.NoError(t, err)
	bob, err := ratchet.NewWithPeer(kpB, kpA.Public)
	require.NoError(t, err)

	// The raw DH is symmetric, so both sides start from the same root.
	require.Equal(t, alice.Root, bob.Root)

	sealed, _, err := ratchet.Encrypt(alice, "hello bob")
	require.NoError(t, err)
	text, _, err := ratchet.Decrypt(bob, sealed)
	require.NoError(t, err)
	require.Equal(t, "hello bob", text)
}

func TestConsecutiveSendsOneDirection(t *testing.T) {
	kpA := makeKeyPair(t)
	kpB := makeKeyPair(t)
	alice, err := ratchet.NewWithPeer(kpA, kpB.Public)
	require.NoError(t, err)
	bob, err := ratchet.NewWithPeer(kpB, kpA.Public)
	require.NoError(t, err)

	for _, msg := range []string{"one", "two", "three"} {
		var sealed ratchet.Sealed
		sealed, alice, err = ratchet.Encrypt(alice, msg)
		require.NoError(t, err)
		var text string
		text, bob, err = ratchet.Decrypt(bob, sealed)
		require.NoError(t, err)
		require.Equal(t, msg, text)
	}
}

func TestDerivationsAreDeterministic(t *testing.T) {
	kp := makeKeyPair(t)
	peer := makeKeyPair(t)
	var root domain.RootKey
	copy(root[:], []byte("fixed root key for determinism.."))

	r1, c1, err := ratchet.DeriveRootStep(root, kp.Private, peer.Public)
	require.NoError(t, err)
	r2, c2, err := ratchet.DeriveRootStep(root, kp.Private, peer.Public)
	require.NoError(t, err)
	require.Equal(t, r1, r2)
	require.Equal(t, c1, c2)
	require.NotEqual(t, root, r1)

	n1, mk1 := ratchet.DeriveMessageKey(c1)
	n2, mk2 := ratchet.DeriveMessageKey(c1)
	require.Equal(t, n1, n2)
	require.Equal(t, mk1, mk2)
	require.Equal(t, uint32(0), n1.Counter)
}

func TestFreshEphemeralPerMessage(t *testing.T) {
	kpA := makeKeyPair(t)
	kpB := makeKeyPair(t)
	alice, err := ratchet.NewWithPeer(kpA, kpB.Public)
	require.NoError(t, err)

	s1, _, err := ratchet.Encrypt(alice, "same plaintext")
	require.NoError(t, err)
	s2, _, err := ratchet.Encrypt(alice, "same plaintext")
	require.NoError(t, err)

	require.NotEqual(t, s1.Ephemeral, s2.Ephemeral)
	require.NotEqual(t, s1.Ciphertext, s2.Ciphertext)
}

func TestEncryptNeedsPeerKey(t *testing.T) {
	bob := ratchet.BootstrapResponder()
	_, st, err := ratchet.Encrypt(bob, "too early")
	require.ErrorIs(t, err, ratchet.ErrNoPeerKey)
	// The failed call hands back a usable state.
	require.Equal(t, bob, st)
}

func TestDecryptRejectsNonTextPlaintext(t *testing.T) {
	alice, err := ratchet.BootstrapInitiator()
	require.NoError(t, err)
	bob := ratchet.BootstrapResponder()

	sealed, _, err := ratchet.Encrypt(alice, string([]byte{0xff, 0xfe, 0xfd}))
	require.NoError(t, err)

	_, after, err := ratchet.Decrypt(bob, sealed)
	require.ErrorIs(t, err, ratchet.ErrNotText)
	require.Equal(t, bob, after)
}

func TestDecryptFailureLeavesStateUsable(t *testing.T) {
	alice, err := ratchet.BootstrapInitiator()
	require.NoError(t, err)
	bob := ratchet.BootstrapResponder()

	sealed, _, err := ratchet.Encrypt(alice, "hi")
	require.NoError(t, err)

	tampered := sealed
	tampered.Ciphertext = append([]byte(nil), sealed.Ciphertext...)
	tampered.Ciphertext[len(tampered.Ciphertext)-1] ^= 0xff

	_, after, err := ratchet.Decrypt(bob, tampered)
	require.ErrorIs(t, err, ratchet.ErrDecrypt)
	require.Equal(t, bob, after)

	text, _, err := ratchet.Decrypt(bob, sealed)
	require.NoError(t, err)
	require.Equal(t, "hi", text)
}
