// Package launcher parses a manifest and forks/execs one child process
// per non-directive line, populating a childtable.Table and reporting
// each launch's outcome to an output stream.
package launcher

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/tripwire/macd/internal/childtable"
	"github.com/tripwire/macd/internal/procfs"
)

// settleWindow is how long the Launcher waits after starting a child
// before checking whether it already exited (spec.md's "~100ms").
const settleWindow = 100 * time.Millisecond

// Result is what the Launcher hands to the rest of the supervisor.
type Result struct {
	Table    *childtable.Table
	Deadline *int // seconds from the "timelimit N" directive, nil if absent
}

// Run reads the manifest at manifestPath, launches each non-directive
// line as a child (redirecting its stdout to the null device when
// quiet is set), and writes one outcome line per entry to out. It
// returns a Table populated in manifest order plus any parsed
// deadline.
func Run(manifestPath string, quiet bool, out io.Writer, logger *slog.Logger) (*Result, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("manifest-open: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	// A file that is LF-terminated yields one trailing empty element
	// from strings.Split that is not itself a manifest line.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	table := childtable.New()
	var deadline *int
	if len(lines) > 0 {
		if d, ok := parseTimelimit(lines[0]); ok {
			deadline = &d
			lines = lines[1:]
		}
	}

	for i, line := range lines {
		rec := launchOne(i, line, quiet, out)
		table.Append(rec)
		if logger != nil {
			logger.Info("launched manifest entry",
				slog.Int("index", i),
				slog.String("command", line),
				slog.Bool("alive", rec.Alive()),
				slog.Int("pid", rec.PID),
			)
		}
	}

	return &Result{Table: table, Deadline: deadline}, nil
}

// parseTimelimit recognizes the optional "timelimit N" directive, which
// is only ever the manifest's first line.
func parseTimelimit(line string) (int, bool) {
	const prefix = "timelimit "
	if !strings.HasPrefix(line, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[len(prefix):]))
	if err != nil {
		return 0, false
	}
	return n, true
}

func launchOne(index int, line string, quiet bool, out io.Writer) *childtable.Record {
	argv := splitArgv(line)
	if len(argv) == 0 {
		fmt.Fprintf(out, "[%d] badprogram %s, failed to start\n", index, "")
		return childtable.NewFailedRecord(index, "")
	}

	program := argv[0]
	cmd := exec.Command(program, argv[1:]...)
	if quiet {
		if devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0); err == nil {
			cmd.Stdout = devnull
			defer devnull.Close()
		}
	}

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(out, "[%d] badprogram %s, failed to start\n", index, program)
		return childtable.NewFailedRecord(index, program)
	}

	initialTicks, _ := procfs.CPUTicks(cmd.Process.Pid)
	rec := childtable.NewRecord(index, cmd.Process.Pid, program, cmd.Process, initialTicks, cmd.Wait)

	time.Sleep(settleWindow)

	if !rec.Alive() {
		fmt.Fprintf(out, "[%d] badprogram %s, failed to start\n", index, program)
		return childtable.NewFailedRecord(index, program)
	}

	fmt.Fprintf(out, "[%d] %s, started successfully (pid: %d)\n", index, program, cmd.Process.Pid)
	return rec
}

// splitArgv follows spec.md's literal rule: split on single spaces,
// never on runs of whitespace or tabs. An empty line yields nil, which
// the caller treats as the bad-program placeholder.
func splitArgv(line string) []string {
	if line == "" {
		return nil
	}
	return strings.Split(line, " ")
}
