// Package controlplane implements the supervisor's local IPC surface:
// a Unix-domain stream socket bound to a fixed path, a 4-byte framed
// request/response protocol (STAT, KILL, INDEX), and one goroutine per
// accepted session running that session's own Idle/AwaitIndex state
// machine.
//
// Two REDESIGN FLAGS from spec.md §9 are applied here rather than
// reproduced: the awaiting-kill-index flag lives on each session, never
// in package-level state (the original's global flag let two
// interleaved clients corrupt each other's state), and the INDEX frame
// is defined as a little-endian 32-bit unsigned integer on both ends,
// not the original's host-endian reinterpretation paired with a broken
// client-side decimal accumulator.
package controlplane

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tripwire/macd/internal/childtable"
)

// DefaultSocketPath is the fixed relative path the original supervisor
// bound, preserved for wire/behavioral compatibility with the existing
// client (spec.md §9 notes the original's socket-path truncation at 19
// characters has no Go analogue; this string is short enough that the
// distinction never arises).
const DefaultSocketPath = "macd.socket.server"

const frameSize = 4

// Server owns the listening socket and hands accepted connections off
// to per-session goroutines that share nothing but the Child Table.
type Server struct {
	Table    *childtable.Table
	Logger   *slog.Logger
	listener net.Listener
	wg       sync.WaitGroup
}

// Listen binds and starts listening on path, removing any stale socket
// file left behind by a previous run first (spec.md §4.6).
func Listen(path string) (net.Listener, error) {
	_ = os.Remove(path)
	return net.Listen("unix", path)
}

// NewServer constructs a Server around an already-bound listener.
func NewServer(listener net.Listener, table *childtable.Table, logger *slog.Logger) *Server {
	return &Server{Table: table, Logger: logger, listener: listener}
}

// Serve runs the accept loop until ctx is canceled or the listener is
// closed. Each accepted connection is served by its own goroutine; a
// per-session socket error ends only that session (spec.md §4.6's
// explicitly-allowed relaxation of the source's fatal-on-any-error
// policy).
func (s *Server) Serve(ctx context.Context) {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// A closed listener (our own Close, or ctx cancellation
			// above) is the normal shutdown path, not a transient
			// accept error — return immediately instead of spinning
			// on repeated Accept calls against a dead listener.
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return
			}
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return
			default:
			}
			if s.Logger != nil {
				s.Logger.Warn("controlplane: accept error", slog.Any("error", err))
			}
			continue
		}

		sessionID := uuid.NewString()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveSession(sessionID, conn)
		}()
	}
}

// Close stops accepting new connections and releases the socket.
func (s *Server) Close() error {
	return s.listener.Close()
}

// sessionState tracks where a single connection is in the Idle ⇄
// AwaitIndex state machine defined in spec.md §4.6. It is a field of
// the per-connection goroutine's stack, never package-level state —
// this is what fixes the original's global-flag race.
type sessionState int

const (
	stateIdle sessionState = iota
	stateAwaitIndex
)

func (s *Server) serveSession(sessionID string, conn net.Conn) {
	defer conn.Close()

	logger := s.Logger
	if logger != nil {
		logger.Debug("controlplane: session accepted", slog.String("session_id", sessionID))
	}

	state := stateIdle
	buf := make([]byte, frameSize)

	for {
		if _, err := io.ReadFull(conn, buf); err != nil {
			if logger != nil && err != io.EOF {
				logger.Debug("controlplane: session read error",
					slog.String("session_id", sessionID), slog.Any("error", err))
			}
			return
		}

		switch state {
		case stateAwaitIndex:
			index := int(binary.LittleEndian.Uint32(buf))
			reply := []byte("FAIL")
			if s.Table.KillByIndex(index) {
				reply = []byte("SUCC")
			}
			if _, err := conn.Write(reply); err != nil {
				return
			}
			state = stateIdle

		default: // stateIdle
			cmd := strings.ToLower(string(buf))
			switch cmd {
			case "stat":
				var resp [4]byte
				binary.LittleEndian.PutUint32(resp[:], uint32(s.Table.RunningCount()))
				if _, err := conn.Write(resp[:]); err != nil {
					return
				}
			case "kill":
				state = stateAwaitIndex
			default:
				// protocol error: unknown 4-byte request, silently
				// ignored per spec.md §7.
			}
		}
	}
}
