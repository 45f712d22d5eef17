package main

import (
	"crypto/rand"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luxfi/secnn/pkg/session"
)

// runOffline drives only the key exchange and offline preprocessing phase
// and reports how much traffic it cost. It exists as its own subcommand so
// the offline phase's cost (spec's ACG/triple correlation generation) can
// be measured independently of the online phase that follows it.
func runOffline(cmd *cobra.Command, args []string) error {
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
		sess, err := session.DialClient(conn, arch, ltme, byteLimit)
		if err != nil {
			return fmt.Errorf("key exchange: %w", err)
		}
		if err := sess.Offline(rand.Reader); err != nil {
			return fmt.Errorf("offline phase: %w", err)
		}
		printStats("client offline", sess.Stats())
	case "server":
		sess, err := session.AcceptServer(conn, arch, byteLimit)
		if err != nil {
			return fmt.Errorf("key exchange: %w", err)
		}
		if err := sess.Offline(rand.Reader); err != nil {
			return fmt.Errorf("offline phase: %w", err)
		}
		printStats("server offline", sess.Stats())
	default:
		return fmt.Errorf("unknown --role %q, want client or server", role)
	}
	return nil
}
