package relay

import (
	"errors"
	"net"
	"sort"
	"sync"

	"sable/internal/domain"
)

var (
	// ErrAlreadyRegistered rejects a second registration under a live name.
	ErrAlreadyRegistered = errors.New("relay: name already registered")
	// ErrUnknownRecipient reports a routing miss.
	ErrUnknownRecipient = errors.New("relay: unknown recipient")
	// ErrDirectoryClosed reports an operation against a shut-down directory.
	ErrDirectoryClosed = errors.New("relay: directory closed")
)

// PeerRecord is the directory's view of one admitted connection.
type PeerRecord struct {
	Name      string
	Addr      net.Addr
	Out       *Queue
	PublicKey *domain.X25519Public
}

// Directory maps display names to live peer records. It is a single-owner
// actor: one goroutine owns the map and executes commands from a channel one
// at a time, so every operation, the broadcast loop included, is atomic with
// respect to the others without any cross-goroutine lock.
type Directory struct {
	cmds     chan func(map[string]*PeerRecord)
	quit     chan struct{}
	quitOnce sync.Once
}

// NewDirectory starts the owning goroutine.
func NewDirectory() *Directory {
	d := &Directory{
		cmds: make(chan func(map[string]*PeerRecord)),
		quit: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Directory) run() {
	peers := make(map[string]*PeerRecord)
	for {
		select {
		case fn := <-d.cmds:
			fn(peers)
		case <-d.quit:
			for _, p := range peers {
				p.Out.Close()
			}
			return
		}
	}
}

// exec runs fn on the owner goroutine and waits for it to finish. cmds is
// unbuffered, so a completed send means the owner holds fn and will run it:
// an accepted command is always reported as executed, even if the directory
// shuts down in the same instant.
func (d *Directory) exec(fn func(map[string]*PeerRecord)) error {
	done := make(chan struct{})
	select {
	case d.cmds <- func(peers map[string]*PeerRecord) {
		fn(peers)
		close(done)
	}:
		<-done
		return nil
	case <-d.quit:
		return ErrDirectoryClosed
	}
}

// Register inserts a record for name iff none exists. A conflict never
// disturbs the existing registration.
func (d *Directory) Register(name string, out *Queue, addr net.Addr) error {
	var dup bool
	if err := d.exec(func(peers map[string]*PeerRecord) {
		if _, ok := peers[name]; ok {
			dup = true
			return
		}
		peers[name] = &PeerRecord{Name: name, Addr: addr, Out: out}
	}); err != nil {
		return err
	}
	if dup {
		return ErrAlreadyRegistered
	}
	return nil
}

// AnnouncePublicKey records name's public key if it has none yet and reports
// whether the announcement took effect. First announcement wins; later ones
// never clobber an established key.
func (d *Directory) AnnouncePublicKey(name string, key domain.X25519Public) bool {
	var took bool
	_ = d.exec(func(peers map[string]*PeerRecord) {
		p, ok := peers[name]
		if !ok || p.PublicKey != nil {
			return
		}
		k := key
		p.PublicKey = &k
		took = true
	})
	return took
}

// Route enqueues line, verbatim, for the named recipient. Enqueue is best
// effort: a peer whose queue is already closed is reported as unknown, and a
// miss never mutates the directory.
func (d *Directory) Route(recipient string, line []byte) error {
	var routeErr error
	if err := d.exec(func(peers map[string]*PeerRecord) {
		p, ok := peers[recipient]
		if !ok || !p.Out.Push(line) {
			routeErr = ErrUnknownRecipient
		}
	}); err != nil {
		return err
	}
	return routeErr
}

// BroadcastExcept enqueues line to every record except the named one.
func (d *Directory) BroadcastExcept(exclude string, line []byte) {
	_ = d.exec(func(peers map[string]*PeerRecord) {
		for name, p := range peers {
			if name == exclude {
				continue
			}
			p.Out.Push(line)
		}
	})
}

// KeysExcept snapshots the known public keys of everyone but the named
// peer, for the admission dump sent to a newly registered client.
func (d *Directory) KeysExcept(exclude string) map[string]domain.X25519Public {
	keys := make(map[string]domain.X25519Public)
	_ = d.exec(func(peers map[string]*PeerRecord) {
		for name, p := range peers {
			if name == exclude || p.PublicKey == nil {
				continue
			}
			keys[name] = *p.PublicKey
		}
	})
	return keys
}

// Remove deletes the record for name and closes its queue. Removing an
// absent name is a no-op.
func (d *Directory) Remove(name string) {
	_ = d.exec(func(peers map[string]*PeerRecord) {
		if p, ok := peers[name]; ok {
			p.Out.Close()
			delete(peers, name)
		}
	})
}

// Roster returns the sorted names currently registered.
func (d *Directory) Roster() []string {
	var names []string
	_ = d.exec(func(peers map[string]*PeerRecord) {
		for name := range peers {
			names = append(names, name)
		}
	})
	sort.Strings(names)
	return names
}

// Close shuts the directory down. Outstanding queues are closed so their
// writers drain and exit.
func (d *Directory) Close() {
	d.quitOnce.Do(func() { close(d.quit) })
}
