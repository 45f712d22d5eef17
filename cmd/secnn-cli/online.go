package main

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/luxfi/secnn/pkg/session"
)

// runOnline drives a full session end to end: key exchange, offline
// preprocessing, then the online evaluation, printing the client's
// decoded result (the server never learns it, per spec §3).
func runOnline(cmd *cobra.Command, args []string) error {
	arch, err := architecture(model)
	if err != nil {
		return err
	}
	conn, err := dialOrListen(role, host, port)
	if err != nil {
		return err
	}
	defer conn.Close()

	switch role {
	case "client":
		vec, err := parseInput(input)
		if err != nil {
			return err
		}
		if want := arch.InputDims().Size(); len(vec) != want {
			return fmt.Errorf("--input has %d values, model %d wants %d", len(vec), model, want)
		}
		sess, err := session.DialClient(conn, arch, ltme, byteLimit)
		if err != nil {
			return fmt.Errorf("key exchange: %w", err)
		}
		if err := sess.Offline(rand.Reader); err != nil {
			return fmt.Errorf("offline phase: %w", err)
		}
		out, err := sess.Online(vec, rand.Reader)
		if err != nil {
			return fmt.Errorf("online phase: %w", err)
		}
		fmt.Printf("result: %v\n", out)
		printStats("client", sess.Stats())
	case "server":
		sess, err := session.AcceptServer(conn, arch, byteLimit)
		if err != nil {
			return fmt.Errorf("key exchange: %w", err)
		}
		if err := sess.Offline(rand.Reader); err != nil {
			return fmt.Errorf("offline phase: %w", err)
		}
		if err := sess.Online(rand.Reader); err != nil {
			return fmt.Errorf("online phase: %w", err)
		}
		printStats("server", sess.Stats())
	default:
		return fmt.Errorf("unknown --role %q, want client or server", role)
	}
	return nil
}

func parseInput(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("--input: %q is not a number: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}
