package client

import (
	"strings"

	"sable/internal/domain"
	"sable/internal/protocol"
	"sable/internal/protocol/ratchet"
)

// handleInput parses one line of user input. Messages use "peer>text";
// lines starting with '!' are local commands.
func (c *Client) handleInput(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return
	}
	if strings.HasPrefix(line, "!") {
		c.handleCommand(line)
		return
	}
	peer, text, ok := strings.Cut(line, ">")
	if !ok {
		c.log.Info(`wrong message format, to write a message use "<user>><msg>"`)
		return
	}
	peer = strings.TrimSpace(peer)
	if err := c.SendTo(peer, text); err != nil {
		c.log.Errorf("to %s: %v", peer, err)
	}
}

func (c *Client) handleCommand(line string) {
	switch {
	case strings.HasPrefix(line, "!help"):
		c.log.Notice("to message someone type: username>message; !list shows who is online")
	case strings.HasPrefix(line, "!list"):
		peers := make([]string, 0, len(c.keys))
		for name := range c.keys {
			peers = append(peers, name)
		}
		c.log.Noticef("known users: %s", strings.Join(append(peers, c.name), ", "))
	default:
		c.log.Infof("unknown command %q, try !help", line)
	}
}

// SendTo encrypts text for peer under the current session state and ships
// the envelope. A failed encrypt leaves the session state unchanged.
func (c *Client) SendTo(peer, text string) error {
	if peer == c.name {
		return errSelfMessage
	}
	st, ok := c.sessions[peer]
	if !ok {
		key, known := c.keys[peer]
		if !known {
			return errUnknownPeer
		}
		var err error
		st, err = ratchet.NewWithPeer(c.kp, key)
		if err != nil {
			return err
		}
	}
	sealed, next, err := ratchet.Encrypt(st, text)
	if err != nil {
		return err
	}
	env := protocol.NewEncrypted(c.name, peer, sealed.Ciphertext, sealed.Ephemeral)
	if err := c.send(env); err != nil {
		return err
	}
	c.sessions[peer] = next
	return nil
}

// handleEnvelope dispatches one line from the relay. Per-message failures
// are logged and the message dropped; the affected session state is left as
// it was so a later message can still be tried.
func (c *Client) handleEnvelope(line []byte) {
	env, err := protocol.Decode(line)
	if err != nil {
		c.log.Errorf("dropping malformed envelope: %v", err)
		return
	}
	switch env.Kind {
	case protocol.KindEncrypted:
		c.handleEncrypted(env.Encrypted)
	case protocol.KindPublicKey:
		c.handleAnnounce(env.PublicKey)
	case protocol.KindInfo:
		c.log.Noticef("%s", env.Info.Text)
	case protocol.KindError:
		c.log.Errorf("server returned error: %s", env.Error.Text)
	case protocol.KindRegister:
		// Clients never receive registrations.
	}
}

func (c *Client) handleEncrypted(m *protocol.Encrypted) {
	st, ok := c.sessions[m.Sender]
	if !ok {
		key, known := c.keys[m.Sender]
		if !known {
			c.log.Errorf("message from %s but no key or session for them", m.Sender)
			return
		}
		var err error
		st, err = ratchet.NewWithPeer(c.kp, key)
		if err != nil {
			c.log.Errorf("session with %s: %v", m.Sender, err)
			return
		}
	}
	text, next, err := ratchet.Decrypt(st, ratchet.Sealed{
		Ciphertext: m.Ciphertext,
		Ephemeral:  domain.X25519Public(m.Ephemeral),
	})
	if err != nil {
		c.log.Errorf("message from %s dropped: %v", m.Sender, err)
		return
	}
	c.sessions[m.Sender] = next
	c.OnMessage(m.Sender, strings.TrimSpace(text))
}

func (c *Client) handleAnnounce(a *protocol.PublicKeyAnnounce) {
	if a.User == c.name {
		return
	}
	key := domain.X25519Public(a.Key)
	c.keys[a.User] = key
	if _, ok := c.sessions[a.User]; !ok {
		st, err := ratchet.NewWithPeer(c.kp, key)
		if err != nil {
			c.log.Errorf("key for %s rejected: %v", a.User, err)
			return
		}
		c.sessions[a.User] = st
	}
}
