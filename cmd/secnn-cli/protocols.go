package main

import (
	"fmt"
	"net"

	"github.com/luxfi/secnn/pkg/session"
)

// dialOrListen opens the TCP connection runOffline/runOnline drive the
// session over: the client dials host:port, the server listens once and
// accepts a single connection, matching the two-party protocol's single
// persistent channel per run (spec §4.1).
func dialOrListen(role string, host string, port int) (net.Conn, error) {
	switch role {
	case "client":
		conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
		if err != nil {
			return nil, fmt.Errorf("dial %s:%d: %w", host, port, err)
		}
		return conn, nil
	case "server":
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return nil, fmt.Errorf("listen on :%d: %w", port, err)
		}
		defer ln.Close()
		fmt.Printf("listening on :%d ...\n", port)
		conn, err := ln.Accept()
		if err != nil {
			return nil, fmt.Errorf("accept: %w", err)
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("unknown --role %q, want client or server", role)
	}
}

func printStats(label string, s session.Stats) {
	fmt.Printf("%s: wrote %d bytes, read %d bytes\n", label, s.BytesWritten, s.BytesRead)
}
