// Command smoke drives a running babilado server end to end: it signs users
// up, opens sessions, sends messages over the websocket and checks delivery.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

type options struct {
	server  string
	origin  string
	timeout time.Duration
	verbose bool
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "smoke",
		Short:         "Smoke test a babilado server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return validateServerURL(opts.server)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.server, "server", "s", envOr("BABILADO_SMOKE_SERVER", "http://127.0.0.1:8080"), "server base URL (http or https)")
	rootCmd.PersistentFlags().StringVar(&opts.origin, "origin", "", "Origin header for the websocket handshake")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 7*time.Second, "per-step timeout")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		newLoginCmd(opts),
		newSendCmd(opts),
		newListenCmd(opts),
		newRunCmd(opts),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
