package ratchet

import (
	"sable/internal/crypto"
	"sable/internal/domain"
)

// Pre-shared demo material for running a closed two-party conversation
// without a directory: an all-zero root key and a fixed responder identity.
// Real deployments learn roots via NewWithPeer instead.
var (
	// DemoRoot is the out-of-band agreed root key.
	DemoRoot = domain.RootKey{}

	// DemoResponderPublic is the public half of the fixed responder pair.
	DemoResponderPublic = domain.X25519Public{
		0xa4, 0xe0, 0x92, 0x92, 0xb6, 0x51, 0xc2, 0x78,
		0xb9, 0x77, 0x2c, 0x56, 0x9f, 0x5f, 0xa9, 0xbb,
		0x13, 0xd9, 0x06, 0xb4, 0x6a, 0xb6, 0x8c, 0x9d,
		0xf9, 0xdc, 0x2b, 0x44, 0x09, 0xf8, 0xa2, 0x09,
	}

	demoResponderPrivate = domain.X25519Private{
		0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01,
		0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01,
		0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01,
		0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01,
	}
)

// BootstrapInitiator seeds the initiating side of the demo pair: a fresh
// identity pair pointed at the fixed responder key.
func BootstrapInitiator() (domain.RatchetState, error) {
	kp, err := crypto.NewKeyPair()
	if err != nil {
		return domain.RatchetState{}, err
	}
	return NewPreShared(kp, &DemoResponderPublic, DemoRoot), nil
}

// BootstrapResponder seeds the responding side: the fixed identity pair and
// no peer key until the initiator's first envelope arrives.
func BootstrapResponder() domain.RatchetState {
	kp := domain.KeyPair{
		Private: demoResponderPrivate,
		Public:  DemoResponderPublic,
	}
	return NewPreShared(kp, nil, DemoRoot)
}
