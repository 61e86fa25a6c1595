package relay

import (
	"context"
	"errors"
	"fmt"
	"net"

	"sable/internal/logging"
)

// Server accepts connections and runs one Peer actor per socket. The
// directory is the only state shared between actors.
type Server struct {
	cfg Config
	log *logging.Backend
	l   net.Listener
	dir *Directory
}

// NewServer builds a server from cfg. Call Listen then Serve.
func NewServer(cfg Config, logBackend *logging.Backend) *Server {
	return &Server{
		cfg: cfg,
		log: logBackend,
		dir: NewDirectory(),
	}
}

// Listen binds the configured address. A bind failure is fatal to startup.
func (s *Server) Listen() error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("relay: listen on %s: %w", s.cfg.Addr, err)
	}
	s.l = l
	return nil
}

// Addr returns the bound address, for callers that listened on port 0.
func (s *Server) Addr() net.Addr {
	return s.l.Addr()
}

// Serve runs the accept loop until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	log := s.log.GetLogger("relay")
	log.Infof("server running on %s", s.l.Addr())

	go func() {
		<-ctx.Done()
		s.l.Close()
		s.dir.Close()
	}()

	peerLog := s.log.GetLogger("peer")
	for {
		conn, err := s.l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		log.Infof("accepted connection from %s", conn.RemoteAddr())
		p := NewPeer(conn, s.dir, peerLog)
		go func() {
			if err := p.Run(ctx); err != nil {
				log.Infof("connection %s ended: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}

// Directory exposes the server's directory, used by tests to observe
// routing state.
func (s *Server) Directory() *Directory {
	return s.dir
}
