package domain

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// KeyPair holds an X25519 key pair. A pair is immutable once created; a
// ratchet step that needs new key material generates a fresh pair instead
// of touching an existing one.
type KeyPair struct {
	Private X25519Private
	Public  X25519Public
}
