// Package reporter implements the supervisor's periodic status-report
// loop: every tick it samples each still-live child's CPU and memory
// usage and writes a report line, reproducing the exact formats and
// integer-division CPU-percent formula of the supervisor this package
// descends from.
package reporter

import (
	"fmt"
	"io"
	"time"

	"github.com/tripwire/macd/internal/childtable"
	"github.com/tripwire/macd/internal/reportfmt"
)

// PollInterval is the Reporter's tick cadence (spec.md's "every five
// seconds").
const PollInterval = 5 * time.Second

// ProcFS is the subset of internal/procfs's readers the Reporter needs,
// narrowed to an interface so tests can supply deterministic fakes.
type ProcFS interface {
	CPUTicks(pid int) (ticks uint64, ok bool)
	ResidentMB(pid int) (mb uint64, ok bool)
}

// Reporter owns the tick loop's dependencies: the Child Table to
// sample, where to write report lines, the process-introspection
// reader, and the ticks-per-second constant used in the CPU-percent
// formula.
type Reporter struct {
	Table          *childtable.Table
	Out            io.Writer
	ProcFS         ProcFS
	TicksPerSecond int64

	// Now is the time source; tests override it to avoid depending on
	// wall-clock timing. Defaults to time.Now when nil.
	Now func() time.Time
}

func (r *Reporter) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Tick runs one reporting pass: the sentinel line, the "Normal report,"
// date header, one line per child, and (unless every child has exited)
// the closing sentinel. It returns done=true once every child has been
// observed exited, at which point the caller must call EmitAllExited
// instead of sleeping for another interval — the closing sentinel is
// folded into EmitAllExited's own output in that case, matching the
// source's single combined format string.
func (r *Reporter) Tick() (done bool) {
	fmt.Fprintln(r.Out, "...")
	fmt.Fprintf(r.Out, "Normal report, %s\n", reportfmt.Date(r.now()))

	allExited := true
	r.Table.WithLock(func(records []*childtable.Record) {
		for _, rec := range records {
			if !rec.Alive() {
				fmt.Fprintf(r.Out, "[%d] Exited\n", rec.Index)
				continue
			}

			ticks, ok := r.ProcFS.CPUTicks(rec.PID)
			if !ok {
				// kernel-surface-unreadable: treat as exited.
				rec.MarkExited()
				fmt.Fprintf(r.Out, "[%d] Exited\n", rec.Index)
				continue
			}

			cpuPercent := int64(ticks-rec.LastCPUTicks) * 100 / (5 * r.TicksPerSecond)
			rec.LastCPUTicks = ticks
			memMB, _ := r.ProcFS.ResidentMB(rec.PID)

			fmt.Fprintf(r.Out, "[%d] Running, cpu usage: %d%%, mem usage: %d MB\n", rec.Index, cpuPercent, memMB)
			allExited = false
		}
	})

	if allExited {
		return true
	}
	fmt.Fprintln(r.Out, "...")
	return false
}

// EmitAllExited writes the "all children exited" shutdown lines once
// Tick has reported every child exited. elapsed is the whole-second
// duration since supervision began.
func (r *Reporter) EmitAllExited(elapsed time.Duration) {
	fmt.Fprintf(r.Out, "Exiting (total time: %d seconds)\n...\n", int(elapsed.Seconds()))
}
