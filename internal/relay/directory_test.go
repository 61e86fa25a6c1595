package relay

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sable/internal/domain"
)

var testAddr = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000}

func TestRegisterRejectsDuplicates(t *testing.T) {
	d := NewDirectory()
	defer d.Close()

	require.NoError(t, d.Register("alice", NewQueue(), testAddr))
	require.ErrorIs(t, d.Register("alice", NewQueue(), testAddr), ErrAlreadyRegistered)
	require.Equal(t, []string{"alice"}, d.Roster())
}

func TestRegisterConcurrentDuplicate(t *testing.T) {
	d := NewDirectory()
	defer d.Close()

	const attempts = 16
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- d.Register("alice", NewQueue(), testAddr)
		}()
	}
	wg.Wait()
	close(errs)

	var wins, rejections int
	for err := range errs {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, ErrAlreadyRegistered)
			rejections++
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, attempts-1, rejections)
	require.Equal(t, []string{"alice"}, d.Roster())
}

func TestRouteDeliversVerbatim(t *testing.T) {
	d := NewDirectory()
	defer d.Close()

	q := NewQueue()
	require.NoError(t, d.Register("bob", q, testAddr))

	payload := []byte(`{"kind":"encrypted","encrypted":{"sender_name":"a","recv_name":"bob","ciphertext":"enc"}}`)
	require.NoError(t, d.Route("bob", payload))

	line, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, payload, line)
}

func TestRouteUnknownRecipient(t *testing.T) {
	d := NewDirectory()
	defer d.Close()

	require.NoError(t, d.Register("alice", NewQueue(), testAddr))
	require.ErrorIs(t, d.Route("nobody", []byte("x")), ErrUnknownRecipient)
	// A miss never mutates the directory.
	require.Equal(t, []string{"alice"}, d.Roster())
}

func TestAnnounceFirstWins(t *testing.T) {
	d := NewDirectory()
	defer d.Close()

	require.NoError(t, d.Register("alice", NewQueue(), testAddr))

	var first, second domain.X25519Public
	first[0], second[0] = 1, 2

	require.True(t, d.AnnouncePublicKey("alice", first))
	require.False(t, d.AnnouncePublicKey("alice", second))
	require.False(t, d.AnnouncePublicKey("ghost", first))

	keys := d.KeysExcept("nobody")
	require.Equal(t, map[string]domain.X25519Public{"alice": first}, keys)
	require.Empty(t, d.KeysExcept("alice"))
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	d := NewDirectory()
	defer d.Close()

	qa, qb, qc := NewQueue(), NewQueue(), NewQueue()
	require.NoError(t, d.Register("alice", qa, testAddr))
	require.NoError(t, d.Register("bob", qb, testAddr))
	require.NoError(t, d.Register("carol", qc, testAddr))

	d.BroadcastExcept("alice", []byte("announce"))

	_, ok := qa.Pop()
	require.False(t, ok)
	for _, q := range []*Queue{qb, qc} {
		line, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, "announce", string(line))
		_, ok = q.Pop()
		require.False(t, ok)
	}
}

func TestRemoveFreesName(t *testing.T) {
	d := NewDirectory()
	defer d.Close()

	q := NewQueue()
	require.NoError(t, d.Register("bob", q, testAddr))

	d.Remove("bob")
	require.True(t, q.Closed())
	require.ErrorIs(t, d.Route("bob", []byte("x")), ErrUnknownRecipient)

	d.Remove("bob") // idempotent

	// The name is free for re-registration.
	require.NoError(t, d.Register("bob", NewQueue(), testAddr))
}

func TestRosterSorted(t *testing.T) {
	d := NewDirectory()
	defer d.Close()

	for _, name := range []string{"mallory", "alice", "bob"} {
		require.NoError(t, d.Register(name, NewQueue(), testAddr))
	}
	require.Equal(t, []string{"alice", "bob", "mallory"}, d.Roster())
}

func TestClosedDirectoryRejectsOps(t *testing.T) {
	d := NewDirectory()
	q := NewQueue()
	require.NoError(t, d.Register("alice", q, testAddr))

	d.Close()
	require.Eventually(t, q.Closed, time.Second, 10*time.Millisecond)
	require.ErrorIs(t, d.Register("bob", NewQueue(), testAddr), ErrDirectoryClosed)
}

func TestAcceptedCommandReportsExecutedAcrossShutdown(t *testing.T) {
	d := NewDirectory()

	// The command itself shuts the directory down, so done and quit are
	// both ready when exec picks a result. An accepted command must still
	// be reported as executed.
	var ran bool
	err := d.exec(func(map[string]*PeerRecord) {
		ran = true
		d.Close()
	})
	require.NoError(t, err)
	require.True(t, ran)
}
