// Package relay implements the server side: a directory of connected peers
// and one connection actor per socket. The relay routes opaque envelopes by
// name and never sees plaintext or long-term secrets.
package relay
