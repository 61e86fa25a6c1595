package ratchet

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"sable/internal/crypto"
	"sable/internal/domain"
	"sable/internal/util/memzero"
)

// kdfInfo is the protocol constant fed to both HKDF expansions. Both ends of
// a conversation must agree on it, so it never changes.
var kdfInfo = []byte{0xfe, 0xe1, 0xde, 0xad}

var (
	// ErrNoPeerKey is returned by Encrypt before the peer's public key is known.
	ErrNoPeerKey = errors.New("ratchet: peer public key not yet known")
	// ErrEncrypt wraps a cipher failure during Encrypt. With fixed 32-byte
	// keys this indicates an invariant violation, not bad input.
	ErrEncrypt = errors.New("ratchet: encrypt failed")
	// ErrDecrypt covers authentication failure: wrong key, corrupted
	// ciphertext, or a desynchronised session.
	ErrDecrypt = errors.New("ratchet: decrypt failed")
	// ErrNotText is returned when decrypted bytes are not valid UTF-8.
	ErrNotText = errors.New("ratchet: plaintext is not valid UTF-8")
)

// Sealed is one encrypted payload together with the ephemeral public key
// that produced it. The ciphertext carries its nonce as a prefix.
type Sealed struct {
	Ciphertext []byte
	Ephemeral  domain.X25519Public
}

// NewWithPeer builds the initial state for a peer learned through the
// directory. The raw Diffie-Hellman of our identity private and the peer's
// public key becomes the first root key; both sides compute the same value.
func NewWithPeer(kp domain.KeyPair, peer domain.X25519Public) (domain.RatchetState, error) {
	secret, err := crypto.DH(kp.Private, peer)
	if err != nil {
		return domain.RatchetState{}, err
	}
	p := peer
	return domain.RatchetState{
		KeyPair:    kp,
		PeerPublic: &p,
		Root:       domain.RootKey(secret),
	}, nil
}

// NewPreShared builds the initial state for a hard-coded two-party setup
// where the root key was agreed out of band. peer is nil on the side that
// has not yet seen the other's key.
func NewPreShared(kp domain.KeyPair, peer *domain.X25519Public, root domain.RootKey) domain.RatchetState {
	var p *domain.X25519Public
	if peer != nil {
		cp := *peer
		p = &cp
	}
	return domain.RatchetState{KeyPair: kp, PeerPublic: p, Root: root}
}

// DeriveRootStep folds a fresh Diffie-Hellman secret into the root key.
// The DH output is the HKDF secret, the current root key the salt; the
// 64-byte output splits into the new root key and a chain key at counter
// zero. Deterministic, so the two ends of a conversation stay in step.
func DeriveRootStep(root domain.RootKey, priv domain.X25519Private, peer domain.X25519Public) (domain.RootKey, domain.ChainKey, error) {
	secret, err := crypto.DH(priv, peer)
	if err != nil {
		return domain.RootKey{}, domain.ChainKey{}, err
	}
	var okm [64]byte
	r := hkdf.New(sha256.New, secret[:], root.Slice(), kdfInfo)
	if _, err := io.ReadFull(r, okm[:]); err != nil {
		return domain.RootKey{}, domain.ChainKey{}, err
	}
	memzero.Zero(secret[:])

	var newRoot domain.RootKey
	copy(newRoot[:], okm[:32])
	var ck domain.ChainKey
	copy(ck.Key[:], okm[32:])
	memzero.Zero(okm[:])
	return newRoot, ck, nil
}

// DeriveMessageKey turns a chain key into its successor and a one-time
// message key. No salt; same info label as the root step. Deterministic.
func DeriveMessageKey(ck domain.ChainKey) (domain.ChainKey, [32]byte) {
	var okm [64]byte
	r := hkdf.New(sha256.New, ck.Key[:], nil, kdfInfo)
	_, _ = io.ReadFull(r, okm[:])

	var next domain.ChainKey
	copy(next.Key[:], okm[:32])
	var mk [32]byte
	copy(mk[:], okm[32:])
	memzero.Zero(okm[:])
	return next, mk
}

// Encrypt seals plaintext under a key derived from a fresh ephemeral pair
// and the peer's current public key. Every message is independently re-keyed
// by a full root step rather than by advancing a long symmetric chain.
//
// The returned state carries the ephemeral pair as its key pair; st itself
// is not modified and remains usable if Encrypt fails.
func Encrypt(st domain.RatchetState, plaintext string) (Sealed, domain.RatchetState, error) {
	if st.PeerPublic == nil {
		return Sealed{}, st, ErrNoPeerKey
	}
	eph, err := crypto.NewKeyPair()
	if err != nil {
		return Sealed{}, st, err
	}
	root, ck, err := DeriveRootStep(st.Root, eph.Private, *st.PeerPublic)
	if err != nil {
		return Sealed{}, st, err
	}
	next, mk := DeriveMessageKey(ck)

	aead, err := chacha20poly1305.New(mk[:])
	if err != nil {
		return Sealed{}, st, fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Sealed{}, st, fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	ct := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	memzero.Zero(mk[:])

	return Sealed{Ciphertext: ct, Ephemeral: eph.Public},
		domain.RatchetState{
			KeyPair:    eph,
			PeerPublic: st.PeerPublic,
			Root:       root,
			Chain:      &next,
		}, nil
}

// Decrypt opens a sealed payload using our existing private key and the
// ephemeral public key carried alongside the ciphertext. The returned state
// adopts that ephemeral key as the peer's current public key.
func Decrypt(st domain.RatchetState, sealed Sealed) (string, domain.RatchetState, error) {
	root, ck, err := DeriveRootStep(st.Root, st.KeyPair.Private, sealed.Ephemeral)
	if err != nil {
		return "", st, err
	}
	next, mk := DeriveMessageKey(ck)

	aead, err := chacha20poly1305.New(mk[:])
	if err != nil {
		return "", st, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(sealed.Ciphertext) < chacha20poly1305.NonceSize {
		return "", st, ErrDecrypt
	}
	nonce := sealed.Ciphertext[:chacha20poly1305.NonceSize]
	pt, err := aead.Open(nil, nonce, sealed.Ciphertext[chacha20poly1305.NonceSize:], nil)
	memzero.Zero(mk[:])
	if err != nil {
		return "", st, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if !utf8.Valid(pt) {
		return "", st, ErrNotText
	}

	peer := sealed.Ephemeral
	return string(pt), domain.RatchetState{
		KeyPair:    st.KeyPair,
		PeerPublic: &peer,
		Root:       root,
		Chain:      &next,
	}, nil
}
