package domain

// RootKey is the current trunk of the key derivation. It is replaced, never
// mutated, every time a fresh shared secret is folded in.
type RootKey [32]byte

// Slice returns the key as a []byte.
func (r RootKey) Slice() []byte { return r[:] }

// ChainKey is one step of symmetric derivation between the root key and a
// concrete message key. Every derivation resets Counter to zero; the chain
// is never advanced message-to-message because each message performs a full
// Diffie-Hellman step.
type ChainKey struct {
	Key     [32]byte
	Counter uint32
}

// RatchetState is the per-peer ratchet state, one value per
// (local identity, remote peer) pair. All ratchet operations take a state by
// value and return a replacement; a failed operation leaves the caller's
// copy untouched.
type RatchetState struct {
	// KeyPair is the pair the next inbound message will be decrypted
	// against. After a send it is the ephemeral pair of that send.
	KeyPair KeyPair

	// PeerPublic is the peer's last seen public key. Nil until the first
	// key exchange with that peer.
	PeerPublic *X25519Public

	Root RootKey

	// Chain is the chain key derived by the last successful step, if any.
	Chain *ChainKey
}
