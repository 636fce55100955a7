// Package client implements the control-plane client CLI's two
// concurrent activities: a sender that turns terminal input into wire
// requests, and a receiver that renders wire responses.
//
// The original client this package descends from encoded the KILL
// target index by accumulating ASCII digits with a bug (it added the
// read(2) return count instead of the parsed digit). Per spec.md §9's
// explicit instruction, that encoding is not preserved: both this
// package and internal/controlplane define the index frame as a
// little-endian 32-bit unsigned integer.
package client

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

// expectation tracks what the Receiver should do with the next 4-byte
// response: display it as running-child count (after STAT) or as a
// raw echo (after a KILL/INDEX pair). Any other request draws no
// response from the server, so none is expected for it.
type expectation int

const (
	expectEcho expectation = iota
	expectCount
)

// Client drives one control-plane session: it reads requests from In,
// writes them to Conn, reads responses from Conn, and writes rendered
// results to Out.
type Client struct {
	Conn net.Conn
	In   io.Reader
	Out  io.Writer
}

// Run starts the sender and receiver concurrently and blocks until the
// connection closes, or until the sender's input is exhausted and the
// receiver has rendered the response to every request already sent.
func (c *Client) Run() error {
	expectations := make(chan expectation, 1)
	errCh := make(chan error, 1)

	go func() {
		errCh <- c.send(expectations)
	}()
	if err := c.receive(expectations); err != nil {
		return err
	}
	return <-errCh
}

func (c *Client) send(expectations chan<- expectation) error {
	defer close(expectations)
	reader := bufio.NewReader(c.In)
	for {
		line, err := readToken(reader)
		if err != nil {
			return err
		}
		cmd := strings.ToLower(line)

		switch cmd {
		case "kill":
			// KILL itself draws no response (spec.md §4.6); only the
			// INDEX frame that follows does.
			if err := c.writeFrame([]byte("kill")); err != nil {
				return err
			}

			index, err := readIndex(reader)
			if err != nil {
				return err
			}
			var frame [4]byte
			binary.LittleEndian.PutUint32(frame[:], uint32(index))
			if err := c.writeFrame(frame[:]); err != nil {
				return err
			}
			expectations <- expectEcho

		case "stat":
			if err := c.writeFrame([]byte("stat")); err != nil {
				return err
			}
			expectations <- expectCount

		default:
			// The server ignores unknown requests without replying.
			if err := c.writeFrame([]byte(padTo4(cmd))); err != nil {
				return err
			}
		}
	}
}

func (c *Client) receive(expectations <-chan expectation) error {
	buf := make([]byte, 4)
	for exp := range expectations {
		if _, err := io.ReadFull(c.Conn, buf); err != nil {
			return err
		}
		switch exp {
		case expectCount:
			n := binary.LittleEndian.Uint32(buf)
			fmt.Fprintf(c.Out, "There are %d running processes\n", n)
		default:
			fmt.Fprintf(c.Out, "Echo From Server: %s\n", buf)
		}
	}
	return nil
}

func (c *Client) writeFrame(frame []byte) error {
	_, err := c.Conn.Write(frame)
	return err
}

// readToken reads one whitespace-delimited token from r, the unit the
// sender treats as a command name.
func readToken(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			if sb.Len() > 0 {
				return sb.String(), nil
			}
			return "", err
		}
		if b == ' ' || b == '\n' || b == '\t' {
			if sb.Len() == 0 {
				continue
			}
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}

// readIndex reads the decimal integer naming a KILL target, sent as
// plain text on its own token rather than raw ASCII digit bytes.
func readIndex(r *bufio.Reader) (int, error) {
	tok, err := readToken(r)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(tok)
}

// padTo4 truncates or space-pads s to exactly 4 bytes, matching the
// protocol's fixed frame size for any request other than KILL or STAT.
func padTo4(s string) string {
	if len(s) >= 4 {
		return s[:4]
	}
	return s + strings.Repeat(" ", 4-len(s))
}
