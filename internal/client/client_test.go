package client_test

import (
	"bytes"
	"encoding/binary"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/tripwire/macd/internal/client"
)

// pipePair returns the two ends of an in-memory net.Pipe so tests can
// drive the client against a scripted server without a real socket.
func pipePair(t *testing.T) (clientSide, serverSide net.Conn) {
	t.Helper()
	c, s := net.Pipe()
	return c, s
}

func TestClient_Stat_RendersRunningProcessCount(t *testing.T) {
	conn, server := pipePair(t)
	defer conn.Close()

	go func() {
		buf := make([]byte, 4)
		server.Read(buf) // "stat"
		resp := make([]byte, 4)
		binary.LittleEndian.PutUint32(resp, 3)
		server.Write(resp)
	}()

	var out bytes.Buffer
	cl := &client.Client{Conn: conn, In: strings.NewReader("stat\n"), Out: &out}

	done := make(chan error, 1)
	go func() { done <- cl.Run() }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return in time")
	}

	if got := out.String(); got != "There are 3 running processes\n" {
		t.Errorf("output = %q, want the running-process count line", got)
	}
}

func TestClient_KillThenIndex_SendsLittleEndianIndexAndRendersEcho(t *testing.T) {
	conn, server := pipePair(t)
	defer conn.Close()

	var gotIndex uint32
	go func() {
		killBuf := make([]byte, 4)
		server.Read(killBuf)
		idxBuf := make([]byte, 4)
		server.Read(idxBuf)
		gotIndex = binary.LittleEndian.Uint32(idxBuf)
		server.Write([]byte("SUCC"))
	}()

	var out bytes.Buffer
	cl := &client.Client{Conn: conn, In: strings.NewReader("kill\n1\n"), Out: &out}

	done := make(chan error, 1)
	go func() { done <- cl.Run() }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return in time")
	}

	if gotIndex != 1 {
		t.Errorf("server observed index = %d, want 1", gotIndex)
	}
	if got := out.String(); got != "Echo From Server: SUCC\n" {
		t.Errorf("output = %q, want an echoed SUCC line", got)
	}
}
