// Command macdc is the supervisor's control client. It connects to a
// running macd's Unix-domain control socket and lets an operator send
// "stat" and "kill" requests interactively from stdin, printing each
// response to stderr as the server and client this package descends
// from both do.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/tripwire/macd/internal/client"
	"github.com/tripwire/macd/internal/controlplane"
)

// clientSocketPath is the client's own local bind address, matching
// macD_c.c's CLIENT_PATH (macD_c.c:247-251) — it binds before
// connecting to the server's socket.
const clientSocketPath = "macd.socket.client"

func main() {
	socketPath := flag.String("s", controlplane.DefaultSocketPath, "path to the supervisor's control socket")
	flag.Parse()

	_ = os.Remove(clientSocketPath)
	dialer := net.Dialer{
		Timeout:   5 * time.Second,
		LocalAddr: &net.UnixAddr{Name: clientSocketPath, Net: "unix"},
	}
	conn, err := dialer.Dial("unix", *socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "macdc: connection error: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	defer os.Remove(clientSocketPath)

	cl := &client.Client{Conn: conn, In: os.Stdin, Out: os.Stderr}
	if err := cl.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "macdc: %v\n", err)
		os.Exit(1)
	}
}
