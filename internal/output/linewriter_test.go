package output_test

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/tripwire/macd/internal/output"
)

func TestLineWriter_ConcurrentWrites_NeverInterleave(t *testing.T) {
	var buf bytes.Buffer
	lw := output.New(&buf)

	const goroutines = 20
	const linesEach = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			line := fmt.Sprintf("worker-%02d-payload-xxxxxxxxxxxxxxxxxxxx\n", id)
			for i := 0; i < linesEach; i++ {
				lw.Write([]byte(line))
			}
		}(g)
	}
	wg.Wait()

	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		if !strings.HasPrefix(line, "worker-") || !strings.HasSuffix(line, "xxxxxxxxxxxxxxxxxxxx") {
			t.Fatalf("corrupted or interleaved line: %q", line)
		}
	}
}

func TestLineWriter_PassesThroughByteCountAndContent(t *testing.T) {
	var buf bytes.Buffer
	lw := output.New(&buf)

	n, err := lw.Write([]byte("hello\n"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != 6 {
		t.Errorf("Write() n = %d, want 6", n)
	}
	if buf.String() != "hello\n" {
		t.Errorf("buf = %q, want %q", buf.String(), "hello\n")
	}
}
