// Package domain defines the fixed-size key types and ratchet state shared
// across sable. Keys are array types rather than slices to avoid accidental
// reallocation of secret material.
package domain
