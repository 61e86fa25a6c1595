// Package crypto exposes the primitives used by sable: X25519 key
// generation, clamping and Diffie-Hellman, plus short public-key
// fingerprints for display and logging. All functions return the fixed-size
// array types defined in internal/domain to avoid accidental reallocation of
// secret material.
package crypto
