// Package childtable holds the supervisor's in-memory record of every
// launched child: its manifest index, its PID, its last observed CPU
// tick count, and whether it is still alive. A single mutex serializes
// every mutation so that the Reporter's sampling pass and the control
// plane's kill requests never race.
package childtable

import (
	"errors"
	"sync"
	"sync/atomic"
	"syscall"
)

// errNoProcess is returned by Record.Terminate when the record never
// had a live process handle (e.g. a launch-failed placeholder).
var errNoProcess = errors.New("childtable: record has no process")

// Record is one supervised child. Index, PID, and CommandPath are set
// once at construction and never change. LastCPUTicks is mutated only
// by callers holding the owning Table's mutex (direct field access
// inside Table.WithLock).
type Record struct {
	Index        int
	PID          int
	CommandPath  string
	LastCPUTicks uint64

	exited atomic.Bool
	proc   processHandle
}

// processHandle is the subset of *os.Process used here, narrowed so
// tests can supply a fake without spawning real processes.
type processHandle interface {
	Signal(sig syscall.Signal) error
}

// NewRecord constructs a Record for a child that was launched
// successfully. proc is the live process handle used for signaling;
// wait must block until the process exits exactly once (ordinarily
// cmd.Wait) and is invoked on a dedicated goroutine that marks the
// record exited when it returns. This goroutine is this package's
// idiomatic substitute for waitpid(pid, NULL, WNOHANG): callers observe
// exit via Record.Alive, a non-blocking atomic load, instead of a
// blocking or WNOHANG syscall.
func NewRecord(index, pid int, commandPath string, proc processHandle, initialTicks uint64, wait func() error) *Record {
	r := &Record{
		Index:        index,
		PID:          pid,
		CommandPath:  commandPath,
		LastCPUTicks: initialTicks,
		proc:         proc,
	}
	if proc == nil || wait == nil {
		r.exited.Store(true)
		return r
	}
	go func() {
		_ = wait()
		r.exited.Store(true)
	}()
	return r
}

// NewFailedRecord constructs a Record for a manifest entry whose launch
// failed (empty line, fork/exec failure, or exit within the settle
// window). Its PID is the sentinel 0 ("absent" per spec) and it starts
// already exited.
func NewFailedRecord(index int, commandPath string) *Record {
	r := &Record{Index: index, PID: 0, CommandPath: commandPath}
	r.exited.Store(true)
	return r
}

// Alive reports whether the child has not yet been observed to exit.
// Safe to call from any goroutine without holding the Table mutex.
func (r *Record) Alive() bool { return !r.exited.Load() }

// MarkExited records that the child has exited. Idempotent and safe to
// call concurrently; ordinarily called by the Reporter or the
// Termination Controller once they observe !Alive().
func (r *Record) MarkExited() { r.exited.Store(true) }

// Terminate sends the uncatchable terminate signal (SIGKILL) to the
// child's process. Returns an error if the record never had a process
// handle; callers are expected to have already checked Alive().
func (r *Record) Terminate() error {
	if r.proc == nil {
		return errNoProcess
	}
	return r.proc.Signal(syscall.SIGKILL)
}

// Table owns the ordered, append-only sequence of Records and the
// mutex that serializes every inspection and mutation of it.
type Table struct {
	mu      sync.Mutex
	records []*Record
}

// New returns an empty Table.
func New() *Table {
	return &Table{}
}

// Append adds r to the end of the table. Only the Launcher calls this;
// once the Launcher publishes the table to the Reporter and Control
// Plane, no further appends occur (see spec.md's append-only
// invariant).
func (t *Table) Append(r *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, r)
}

// Len returns the number of launched children (running or exited).
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// RunningCount returns the number of records currently observed alive,
// the value the control plane's STAT reply carries.
func (t *Table) RunningCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, r := range t.records {
		if r.Alive() {
			n++
		}
	}
	return n
}

// WithLock runs fn with the Child Table mutex held, passing the live
// record slice so the Reporter and Termination Controller can iterate,
// sample, and mutate LastCPUTicks/MarkExited in one atomic pass. fn
// must not retain records beyond the call or mutate the slice itself.
func (t *Table) WithLock(fn func(records []*Record)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.records)
}

// KillByIndex implements the control plane's KILL/INDEX pair: under the
// Table mutex, if index names a record that is still observed alive, it
// sends the terminate signal and returns true (SUCC); otherwise it
// returns false (FAIL) without side effects. Running this check and the
// signal send under the same lock as every other mutation is what
// keeps two concurrent KILL requests for the same index from both
// observing "alive" (see spec.md §8's TESTABLE PROPERTIES).
func (t *Table) KillByIndex(index int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.records) {
		return false
	}
	r := t.records[index]
	if !r.Alive() {
		return false
	}
	if err := r.Terminate(); err != nil {
		return false
	}
	r.MarkExited()
	return true
}
