// The relay server: routes opaque envelopes between named clients. It never
// sees plaintext or key material beyond the public keys it redistributes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sable/internal/logging"
	"sable/internal/relay"
)

func main() {
	var (
		cfgPath  string
		addr     string
		logLevel string
		logFile  string
	)

	root := &cobra.Command{
		Use:   "sable-relay",
		Short: "Run the sable chat relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := relay.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFile != "" {
				cfg.LogFile = logFile
			}

			backend, err := logging.New(cfg.LogFile, cfg.LogLevel, false)
			if err != nil {
				return err
			}

			srv := relay.NewServer(cfg, backend)
			if err := srv.Listen(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Serve(ctx)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to TOML config file")
	root.Flags().StringVar(&addr, "addr", "", "bind address (default "+relay.DefaultAddr+")")
	root.Flags().StringVar(&logLevel, "log-level", "", "log level (ERROR..DEBUG)")
	root.Flags().StringVar(&logFile, "log-file", "", "log file (default stdout)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
