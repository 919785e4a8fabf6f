package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zberg/go-melco/pkg/melco"
)

var (
	address string
	port    int
	timeout time.Duration
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "melco",
	Short: "Mitsubishi central controller CLI",
	Long: `A command line interface for Mitsubishi Electric central controllers
(AE-200, EW-50 and compatible) speaking the XML-over-HTTP protocol.`,
	SilenceUsage: true,
}

func init() {
	godotenv.Load()

	rootCmd.PersistentFlags().StringVarP(&address, "address", "a", os.Getenv("MELCO_ADDRESS"), "Controller hostname or IP (env MELCO_ADDRESS)")
	rootCmd.PersistentFlags().IntVar(&port, "port", envInt("MELCO_PORT", melco.DefaultPort), "Controller HTTP port (env MELCO_PORT)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", envDuration("MELCO_TIMEOUT", 5*time.Second), "Request timeout (env MELCO_TIMEOUT)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log protocol exchanges to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// clientOptions returns the options every command builds its client with.
func clientOptions() []melco.ClientOption {
	opts := []melco.ClientOption{
		melco.WithPort(port),
		melco.WithRequestTimeout(timeout),
	}
	if debug {
		opts = append(opts, melco.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	}
	return opts
}

// newClient builds the one client of this invocation. host falls back to
// --address.
func newClient(host string) (*melco.Client, error) {
	if host == "" {
		host = address
	}
	if host == "" {
		return nil, fmt.Errorf("controller address required: pass it as an argument, --address or MELCO_ADDRESS")
	}
	return melco.NewClient(host, clientOptions()...)
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
