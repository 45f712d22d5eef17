// Command secnn-cli is the CLI driver shim spec §6 calls for: one binary
// exposing offline/online session driving plus per-primitive benchmarks,
// built the way cmd/threshold-cli builds cobra flags into call parameters.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luxfi/secnn/pkg/nn"
)

var (
	role      string
	model     int
	port      int
	host      string
	ltme      bool
	byteLimit uint64
	input     string
	iterations int

	rootCmd = &cobra.Command{
		Use:   "secnn-cli",
		Short: "Two-party secure neural-network inference",
		Long: `secnn-cli drives both sides of the secure two-party inference
protocol: offline preprocessing, online evaluation, and per-component
benchmarks.`,
	}

	offlineCmd = &cobra.Command{
		Use:   "offline",
		Short: "Run the key exchange and offline preprocessing phase",
		RunE:  runOffline,
	}

	onlineCmd = &cobra.Command{
		Use:   "online",
		Short: "Run a full session (offline then online) and report the result",
		RunE:  runOnline,
	}

	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Microbenchmark a single protocol component",
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&role, "role", "client", "session role: client or server")
	rootCmd.PersistentFlags().IntVar(&model, "model", 0, "architecture preset: 0 or 1")
	rootCmd.PersistentFlags().IntVar(&port, "port", 8000, "TCP port")
	rootCmd.PersistentFlags().StringVar(&host, "host", "127.0.0.1", "server host (client role only)")
	rootCmd.PersistentFlags().BoolVar(&ltme, "ltme", false, "negotiate the Paillier-based input-authentication variant")
	rootCmd.PersistentFlags().Uint64Var(&byteLimit, "byte-limit", 0, "abort the session after this many bytes in either direction (0 = default)")

	onlineCmd.Flags().StringVar(&input, "input", "1,2,3,4", "comma-separated input vector (client role only)")

	benchCmd.PersistentFlags().IntVar(&iterations, "iterations", 20, "number of benchmark iterations")
	benchCmd.AddCommand(benchACGCmd, benchGarblingCmd, benchTriplesCmd, benchCDSCmd, benchInputAuthCmd)

	rootCmd.AddCommand(offlineCmd, onlineCmd, benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "secnn-cli: %v\n", err)
		os.Exit(1)
	}
}

// architecture resolves --model into one of pkg/nn's presets.
func architecture(m int) (*nn.Architecture, error) {
	switch m {
	case 0:
		return nn.Model0(), nil
	case 1:
		return nn.Model1(), nil
	default:
		return nil, fmt.Errorf("unknown --model %d, want 0 or 1", m)
	}
}
