// Package protocol defines the closed wire envelope set and its line codec.
//
// An envelope is one JSON object per line, discriminated by a kind tag.
// Parsing is total for the five kinds; anything else is ErrMalformed and the
// line is dropped without retaining partial state.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"sable/internal/domain"
)

// Kind discriminates the envelope variants.
type Kind string

const (
	KindRegister  Kind = "register"
	KindPublicKey Kind = "public_key"
	KindEncrypted Kind = "encrypted"
	KindInfo      Kind = "info"
	KindError     Kind = "error"
)

// ErrMalformed reports an unparseable line, an unknown kind, or a missing
// required field.
var ErrMalformed = errors.New("protocol: malformed envelope")

// WireKey is an X25519 public key in its wire form (base64).
type WireKey domain.X25519Public

func (k WireKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(k[:]))
}

func (k *WireKey) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return err
	}
	if len(raw) != len(k) {
		return fmt.Errorf("public key must be %d bytes, got %d", len(k), len(raw))
	}
	copy(k[:], raw)
	return nil
}

// Register is the first envelope a client must send on a new connection.
type Register struct {
	Name string `json:"client_name"`
}

// PublicKeyAnnounce distributes a peer's identity public key.
type PublicKeyAnnounce struct {
	User string  `json:"user"`
	Key  WireKey `json:"public_key"`
}

// Encrypted carries an opaque ciphertext between two named clients, plus the
// sender's ephemeral public key for that message. The relay forwards it
// verbatim and never inspects the payload.
type Encrypted struct {
	Sender     string  `json:"sender_name"`
	Recipient  string  `json:"recv_name"`
	Ciphertext []byte  `json:"ciphertext"`
	Ephemeral  WireKey `json:"public_key"`
}

// Info is a human-readable notice from the relay.
type Info struct {
	Text string `json:"text"`
}

// ErrorText reports a relay-side failure to a client.
type ErrorText struct {
	Text string `json:"text"`
}

// Envelope is the tagged union crossing the wire. Exactly one payload field
// matching Kind is set.
type Envelope struct {
	Kind      Kind               `json:"kind"`
	Register  *Register          `json:"register,omitempty"`
	PublicKey *PublicKeyAnnounce `json:"announce,omitempty"`
	Encrypted *Encrypted         `json:"encrypted,omitempty"`
	Info      *Info              `json:"info,omitempty"`
	Error     *ErrorText         `json:"error,omitempty"`
}

// NewRegister builds a registration envelope.
func NewRegister(name string) Envelope {
	return Envelope{Kind: KindRegister, Register: &Register{Name: name}}
}

// NewPublicKeyAnnounce builds a key announcement envelope.
func NewPublicKeyAnnounce(user string, key domain.X25519Public) Envelope {
	return Envelope{Kind: KindPublicKey, PublicKey: &PublicKeyAnnounce{User: user, Key: WireKey(key)}}
}

// NewEncrypted builds an encrypted payload envelope.
func NewEncrypted(sender, recipient string, ciphertext []byte, ephemeral domain.X25519Public) Envelope {
	return Envelope{Kind: KindEncrypted, Encrypted: &Encrypted{
		Sender:     sender,
		Recipient:  recipient,
		Ciphertext: ciphertext,
		Ephemeral:  WireKey(ephemeral),
	}}
}

// NewInfo builds an informational envelope.
func NewInfo(text string) Envelope {
	return Envelope{Kind: KindInfo, Info: &Info{Text: text}}
}

// NewError builds an error envelope.
func NewError(text string) Envelope {
	return Envelope{Kind: KindError, Error: &ErrorText{Text: text}}
}

// Encode serialises an envelope to one line, without the trailing newline.
func Encode(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses one line into an envelope and validates that the payload for
// its kind is present and complete. Each line stands alone; a failed decode
// leaves nothing behind.
func Decode(line []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(line, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch e.Kind {
	case KindRegister:
		if e.Register == nil || e.Register.Name == "" {
			return Envelope{}, fmt.Errorf("%w: register needs client_name", ErrMalformed)
		}
	case KindPublicKey:
		if e.PublicKey == nil || e.PublicKey.User == "" {
			return Envelope{}, fmt.Errorf("%w: announce needs user", ErrMalformed)
		}
	case KindEncrypted:
		if e.Encrypted == nil || e.Encrypted.Sender == "" || e.Encrypted.Recipient == "" || len(e.Encrypted.Ciphertext) == 0 {
			return Envelope{}, fmt.Errorf("%w: encrypted needs sender, recipient and ciphertext", ErrMalformed)
		}
	case KindInfo:
		if e.Info == nil || e.Info.Text == "" {
			return Envelope{}, fmt.Errorf("%w: info needs text", ErrMalformed)
		}
	case KindError:
		if e.Error == nil || e.Error.Text == "" {
			return Envelope{}, fmt.Errorf("%w: error needs text", ErrMalformed)
		}
	default:
		return Envelope{}, fmt.Errorf("%w: unknown kind %q", ErrMalformed, e.Kind)
	}
	return e, nil
}
