package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"sable/internal/domain"
)

// ErrInvalidPublicKey is returned when peer key bytes do not decode to a
// usable curve point (for example a low-order point).
var ErrInvalidPublicKey = errors.New("x25519: invalid public key")

// NewKeyPair returns a fresh Curve25519 key pair.
// The private key is clamped per RFC 7748.
func NewKeyPair() (domain.KeyPair, error) {
	var priv domain.X25519Private
	if _, err := rand.Read(priv[:]); err != nil {
		return domain.KeyPair{}, err
	}
	clamp(&priv)
	return KeyPairFromPrivate(priv)
}

// KeyPairFromPrivate derives the public half of priv.
func KeyPairFromPrivate(priv domain.X25519Private) (domain.KeyPair, error) {
	pb, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return domain.KeyPair{}, err
	}
	kp := domain.KeyPair{Private: priv}
	copy(kp.Public[:], pb)
	return kp, nil
}

// DH computes the X25519 shared secret between priv and pub.
func DH(priv domain.X25519Private, pub domain.X25519Public) (out [32]byte, err error) {
	secret, err := curve25519.X25519(priv.Slice(), pub.Slice())
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	copy(out[:], secret)
	return out, nil
}

func clamp(k *domain.X25519Private) {
	kb := k[:]
	kb[0] &= 248
	kb[31] &= 127
	kb[31] |= 64
}
