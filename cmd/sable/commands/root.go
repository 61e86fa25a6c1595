// Package commands wires the chat client: flags, logging, the stdin reader
// feeding the protocol core, and the optional hard-coded demo mode.
package commands

import (
	"bufio"
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sable/internal/client"
	"sable/internal/domain"
	"sable/internal/logging"
	"sable/internal/protocol/ratchet"
	"sable/internal/relay"
)

var (
	name     string
	addr     string
	logLevel string
	demoRole string
	demoPeer string
)

func Execute() error {
	root := &cobra.Command{
		Use:   "sable",
		Short: "End-to-end encrypted chat client",
		Long: `Connects to a sable relay, announces a fresh identity key, and chats with
other connected users. Type "username>message" to send, !list to see who is
online, !help for help.`,
		RunE: run,
	}

	root.Flags().StringVar(&name, "name", "", "display name (default: random)")
	root.Flags().StringVar(&addr, "addr", relay.DefaultAddr, "relay address")
	root.Flags().StringVar(&logLevel, "log-level", "INFO", "log level (ERROR..DEBUG)")
	root.Flags().StringVar(&demoRole, "demo", "", "pre-shared demo role: initiator or responder")
	root.Flags().StringVar(&demoPeer, "demo-peer", "", "peer name for the demo session")

	return root.Execute()
}

func run(cmd *cobra.Command, args []string) error {
	if name == "" {
		name = randomName(8)
	}

	backend, err := logging.New("", logLevel, false)
	if err != nil {
		return err
	}
	log := backend.GetLogger("client")

	c, err := client.Dial(name, addr, log)
	if err != nil {
		return err
	}
	c.OnMessage = func(from, text string) {
		fmt.Printf("%s: %s\n", from, text)
	}

	if demoRole != "" {
		if demoPeer == "" {
			return fmt.Errorf("--demo requires --demo-peer")
		}
		st, err := demoState(demoRole)
		if err != nil {
			return err
		}
		c.SeedSession(demoPeer, st)
		log.Infof("demo session with %s seeded as %s", demoPeer, demoRole)
	}

	// Blocking stdin reads stay out of the protocol loop: a dedicated
	// reader feeds lines through a channel the core selects on.
	input := make(chan string)
	go func() {
		defer close(input)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			input <- scanner.Text()
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.Run(ctx, input)
}

func demoState(role string) (st domain.RatchetState, err error) {
	switch role {
	case "initiator":
		return ratchet.BootstrapInitiator()
	case "responder":
		return ratchet.BootstrapResponder(), nil
	default:
		return st, fmt.Errorf("unknown demo role %q", role)
	}
}

const nameAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomName mirrors the default of picking a random 8-character
// alphanumeric username when none is supplied.
func randomName(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "anon"
	}
	for i := range b {
		b[i] = nameAlphabet[int(b[i])%len(nameAlphabet)]
	}
	return string(b)
}
