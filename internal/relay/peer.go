package relay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/op/go-logging.v1"

	"sable/internal/domain"
	"sable/internal/protocol"
)

// scanner limits: one envelope per line, so a line bounds one message.
const (
	scanBufSize = 64 * 1024
	scanMaxLine = 1024 * 1024
)

var (
	// errPeerClosed marks a clean end-of-stream from the remote side.
	errPeerClosed = errors.New("relay: peer closed connection")
	// errNotAdmitted ends a connection that never made it past registration.
	errNotAdmitted = errors.New("relay: connection not admitted")
)

// Peer owns one accepted connection. Lifecycle: the first line must be a
// registration; once admitted it concurrently drains its outbound queue and
// dispatches inbound envelopes; on any exit it removes itself from the
// directory.
type Peer struct {
	conn net.Conn
	dir  *Directory
	log  *logging.Logger
	out  *Queue
	name string
}

// NewPeer wraps an accepted connection.
func NewPeer(conn net.Conn, dir *Directory, log *logging.Logger) *Peer {
	return &Peer{conn: conn, dir: dir, log: log, out: NewQueue()}
}

// Run drives the connection until the remote side closes, a fatal I/O error
// occurs, or ctx is cancelled.
func (p *Peer) Run(ctx context.Context) error {
	defer p.conn.Close()

	scanner := bufio.NewScanner(p.conn)
	scanner.Buffer(make([]byte, 0, scanBufSize), scanMaxLine)

	if err := p.register(scanner); err != nil {
		if errors.Is(err, errNotAdmitted) {
			return nil
		}
		return err
	}
	defer func() {
		p.dir.Remove(p.name)
		p.log.Infof("%s has disconnected", p.name)
	}()

	p.admit()

	g, ctx := errgroup.WithContext(ctx)
	// The reader blocks in Scan with no way to observe ctx; closing the
	// socket is what unblocks it when the writer side gives up first.
	stop := context.AfterFunc(ctx, func() { p.conn.Close() })
	defer stop()
	g.Go(func() error { return p.writeLoop(ctx) })
	g.Go(func() error { return p.readLoop(scanner) })
	err := g.Wait()
	if errors.Is(err, errPeerClosed) || errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// register handles the AwaitingRegistration state. Anything but a valid,
// non-conflicting Register terminates the connection; only success mutates
// the directory.
func (p *Peer) register(scanner *bufio.Scanner) error {
	if !scanner.Scan() {
		p.log.Debugf("%s closed before registering", p.conn.RemoteAddr())
		if err := scanner.Err(); err != nil {
			return err
		}
		return errNotAdmitted
	}
	env, err := protocol.Decode(scanner.Bytes())
	if err != nil {
		p.log.Errorf("%s sent garbage instead of a registration: %v", p.conn.RemoteAddr(), err)
		return errNotAdmitted
	}
	if env.Kind != protocol.KindRegister {
		p.log.Errorf("%s sent %q before registering", p.conn.RemoteAddr(), env.Kind)
		return errNotAdmitted
	}
	name := env.Register.Name
	if err := p.dir.Register(name, p.out, p.conn.RemoteAddr()); err != nil {
		if errors.Is(err, ErrAlreadyRegistered) {
			p.log.Infof("%s tried to register taken name %q", p.conn.RemoteAddr(), name)
			p.sendDirect(protocol.NewError(fmt.Sprintf("name %q already taken", name)))
			return errNotAdmitted
		}
		return err
	}
	p.name = name
	p.log.Infof("%s has connected as %s", p.conn.RemoteAddr(), name)
	return nil
}

// admit enters the Active state: a welcome notice plus a one-time dump of
// every already-known public key, addressed individually to the new peer.
func (p *Peer) admit() {
	roster := p.dir.Roster()
	p.enqueue(protocol.NewInfo(fmt.Sprintf("registered as %s; online: %s",
		p.name, strings.Join(roster, ", "))))
	for user, key := range p.dir.KeysExcept(p.name) {
		p.enqueue(protocol.NewPublicKeyAnnounce(user, key))
	}
}

func (p *Peer) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.out.Wait():
			for {
				line, ok := p.out.Pop()
				if !ok {
					break
				}
				if _, err := p.conn.Write(append(line, '\n')); err != nil {
					return err
				}
			}
			if p.out.Closed() {
				return errPeerClosed
			}
		}
	}
}

func (p *Peer) readLoop(scanner *bufio.Scanner) error {
	for scanner.Scan() {
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		p.dispatch(line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errPeerClosed
}

// dispatch routes one inbound line. Per-message failures are logged and the
// message dropped; they never tear down the connection.
func (p *Peer) dispatch(line []byte) {
	env, err := protocol.Decode(line)
	if err != nil {
		p.log.Errorf("dropping malformed line from %s: %v", p.name, err)
		return
	}
	switch env.Kind {
	case protocol.KindEncrypted:
		if err := p.dir.Route(env.Encrypted.Recipient, line); err != nil {
			p.log.Infof("%s -> %s: %v", p.name, env.Encrypted.Recipient, err)
			p.enqueue(protocol.NewError(fmt.Sprintf("no such user: %s", env.Encrypted.Recipient)))
		}
	case protocol.KindPublicKey:
		// A client may only announce its own key; anything else would let it
		// squat a key for a name before its owner speaks.
		if env.PublicKey.User != p.name {
			p.log.Infof("%s tried to announce a key for %s", p.name, env.PublicKey.User)
			p.enqueue(protocol.NewError(fmt.Sprintf("cannot announce a key for %s", env.PublicKey.User)))
			return
		}
		if !p.dir.AnnouncePublicKey(env.PublicKey.User, domain.X25519Public(env.PublicKey.Key)) {
			p.log.Debugf("ignoring repeat key announcement for %s", env.PublicKey.User)
			return
		}
		p.dir.BroadcastExcept(p.name, line)
	case protocol.KindRegister, protocol.KindInfo, protocol.KindError:
		// Not meaningful from an active client.
	}
}

func (p *Peer) enqueue(env protocol.Envelope) {
	line, err := protocol.Encode(env)
	if err != nil {
		p.log.Errorf("encode: %v", err)
		return
	}
	p.out.Push(line)
}

// sendDirect writes an envelope straight to the socket, for use before the
// writer loop exists.
func (p *Peer) sendDirect(env protocol.Envelope) {
	line, err := protocol.Encode(env)
	if err != nil {
		p.log.Errorf("encode: %v", err)
		return
	}
	if _, err := p.conn.Write(append(line, '\n')); err != nil {
		p.log.Debugf("write to %s: %v", p.conn.RemoteAddr(), err)
	}
}
