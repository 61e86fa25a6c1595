// Package ratchet implements the per-message key ratchet.
//
// Unlike a full Double Ratchet there are no send/receive chains spanning
// multiple messages: every Encrypt generates a fresh ephemeral X25519 pair
// and performs a complete root-key step, so each message key is derived from
// a new Diffie-Hellman contribution. This trades efficiency for a small,
// auditable state machine. All state transitions are pure; callers replace
// their state with the returned value only on success.
//
// The AEAD is ChaCha20-Poly1305 with a random nonce prefixed to the
// ciphertext. Message keys are single-use, so nonce uniqueness is not load
// bearing, but a random nonce keeps the construction within its standard
// security argument.
package ratchet
