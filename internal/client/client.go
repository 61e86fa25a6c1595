// Package client implements the chat client core: a per-peer ratchet
// session map, a roster of announced public keys, and an event loop that
// multiplexes user input against envelopes from the relay. How input lines
// are produced (stdin, a UI) is the caller's business; the core consumes a
// channel of lines.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"

	"gopkg.in/op/go-logging.v1"

	"sable/internal/crypto"
	"sable/internal/domain"
	"sable/internal/protocol"
)

const (
	scanBufSize = 64 * 1024
	scanMaxLine = 1024 * 1024
)

var (
	// ErrServerClosed is returned by Run when the relay closes the connection.
	ErrServerClosed = errors.New("client: server closed connection")

	errSelfMessage = errors.New("cannot message yourself")
	errUnknownPeer = errors.New("no public key for that user yet")
)

// Client is the protocol core for one user.
type Client struct {
	name string
	kp   domain.KeyPair
	conn net.Conn
	log  *logging.Logger

	keys     map[string]domain.X25519Public
	sessions map[string]domain.RatchetState

	// OnMessage receives each decrypted message. Defaults to logging.
	OnMessage func(from, text string)
}

// New wraps an established connection. The identity key pair is generated
// here and lives only as long as the process.
func New(name string, conn net.Conn, log *logging.Logger) (*Client, error) {
	kp, err := crypto.NewKeyPair()
	if err != nil {
		return nil, err
	}
	c := &Client{
		name:     name,
		kp:       kp,
		conn:     conn,
		log:      log,
		keys:     make(map[string]domain.X25519Public),
		sessions: make(map[string]domain.RatchetState),
	}
	c.OnMessage = func(from, text string) {
		c.log.Noticef("%s: %s", from, text)
	}
	return c, nil
}

// Dial connects to the relay at addr. A connect failure aborts startup.
func Dial(name, addr string, log *logging.Logger) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: connect to %s: %w", addr, err)
	}
	return New(name, conn, log)
}

// Name returns the client's display name.
func (c *Client) Name() string { return c.name }

// PublicKey returns the identity public key announced to the relay.
func (c *Client) PublicKey() domain.X25519Public { return c.kp.Public }

// SeedSession installs a pre-built ratchet state for peer, used by the
// hard-coded demo mode instead of directory key exchange.
func (c *Client) SeedSession(peer string, st domain.RatchetState) {
	c.sessions[peer] = st
	if st.PeerPublic != nil {
		c.keys[peer] = *st.PeerPublic
	}
}

// Run registers with the relay, announces our public key, then services
// input lines and inbound envelopes until ctx is cancelled or the
// connection drops.
func (c *Client) Run(ctx context.Context, input <-chan string) error {
	defer c.conn.Close()

	if err := c.send(protocol.NewRegister(c.name)); err != nil {
		return err
	}
	if err := c.send(protocol.NewPublicKeyAnnounce(c.name, c.kp.Public)); err != nil {
		return err
	}
	c.log.Infof("fingerprint %s", crypto.Fingerprint(c.kp.Public))

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.conn)
		scanner.Buffer(make([]byte, 0, scanBufSize), scanMaxLine)
		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-input:
			if !ok {
				return nil
			}
			c.handleInput(line)
		case line := <-lines:
			c.handleEnvelope(line)
		case err := <-readErr:
			if err != nil {
				return err
			}
			return ErrServerClosed
		}
	}
}

func (c *Client) send(env protocol.Envelope) error {
	line, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	_, err = c.conn.Write(append(line, '\n'))
	return err
}
