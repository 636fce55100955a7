// Package supervisor wires the Launcher, Child Table, Reporter,
// Termination Controller, and control-plane Server into the
// supervisor's end-to-end run loop. It plays the role the teacher
// codebase's internal/agent.Agent plays for its watchers: a single
// orchestrator with an idempotent Start/Stop lifecycle that owns every
// other component's goroutines.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tripwire/macd/internal/childtable"
	"github.com/tripwire/macd/internal/controlplane"
	"github.com/tripwire/macd/internal/launcher"
	"github.com/tripwire/macd/internal/procfs"
	"github.com/tripwire/macd/internal/reporter"
	"github.com/tripwire/macd/internal/termination"
)

// procfsAdapter satisfies reporter.ProcFS by delegating to the
// package-level functions in internal/procfs.
type procfsAdapter struct{}

func (procfsAdapter) CPUTicks(pid int) (uint64, bool)  { return procfs.CPUTicks(pid) }
func (procfsAdapter) ResidentMB(pid int) (uint64, bool) { return procfs.ResidentMB(pid) }

// Supervisor is the top-level orchestrator constructed by cmd/macd.
type Supervisor struct {
	ManifestPath string
	Quiet        bool
	Out          io.Writer
	SocketPath   string
	Logger       *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	done    chan struct{}

	table      *childtable.Table
	terminator *termination.Controller
	srv        *controlplane.Server
}

// Option configures a Supervisor at construction time.
type Option func(*Supervisor)

// WithSocketPath overrides the control-plane socket's bind path.
func WithSocketPath(path string) Option {
	return func(s *Supervisor) { s.SocketPath = path }
}

// WithLogger installs a structured logger. A nil logger (the default)
// disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) { s.Logger = logger }
}

// New constructs a Supervisor for the manifest at manifestPath.
// Children's stdout is redirected to the null device when quiet is
// set; all report, launch, and shutdown lines are written to out.
func New(manifestPath string, quiet bool, out io.Writer, opts ...Option) *Supervisor {
	s := &Supervisor{
		ManifestPath: manifestPath,
		Quiet:        quiet,
		Out:          out,
		SocketPath:   controlplane.DefaultSocketPath,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the manifest, binds the control socket, and begins
// the reporting and termination-watch loop in a background goroutine.
// It returns once the manifest has been launched and the control
// socket is accepting connections; callers should then call Wait to
// block until the run completes.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("supervisor: already running")
	}
	s.running = true
	s.mu.Unlock()

	startTime := time.Now()

	result, err := launcher.Run(s.ManifestPath, s.Quiet, s.Out, s.Logger)
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("supervisor: manifest launch failed: %w", err)
	}
	s.table = result.Table

	s.terminator = termination.New(startTime, result.Deadline, s.Out)
	s.terminator.WatchSignals()

	listener, err := controlplane.Listen(s.SocketPath)
	if err != nil {
		s.terminator.Stop()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("supervisor: control socket bind failed: %w", err)
	}
	s.srv = controlplane.NewServer(listener, s.table, s.Logger)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.srv.Serve(runCtx)
	}()

	s.wg.Add(1)
	go s.runLoop(runCtx, startTime)

	if s.Logger != nil {
		s.Logger.Info("supervisor started",
			slog.String("manifest", s.ManifestPath),
			slog.Int("children", s.table.Len()),
			slog.String("socket_path", s.SocketPath),
		)
	}
	return nil
}

// runLoop implements spec.md §8's boundary law ("empty manifest exits
// immediately, with no normal-report tick") and the steady-state
// report/poll cycle, reproducing macD.c's periodic_reports ordering
// (report, then sleep — macD.c:1173-1210): each iteration ticks first
// and only then polls out the interval. The all-children-exited path
// (including the empty-manifest case) releases the socket directly,
// since Reporter.EmitAllExited already prints the complete shutdown
// summary (macD.c:1195-1200); only the signal/deadline path runs the
// Termination Controller's own Execute sequence.
func (s *Supervisor) runLoop(ctx context.Context, startTime time.Time) {
	defer s.wg.Done()
	defer close(s.done)
	defer s.terminator.Stop()

	rep := &reporter.Reporter{
		Table:          s.table,
		Out:            s.Out,
		ProcFS:         procfsAdapter{},
		TicksPerSecond: procfs.TicksPerSecond(),
	}

	if s.table.Len() == 0 {
		rep.EmitAllExited(time.Since(startTime))
		s.release()
		return
	}

	const pollStep = 100 * time.Millisecond

	for {
		if done := rep.Tick(); done {
			rep.EmitAllExited(time.Since(startTime))
			s.release()
			return
		}

		if s.terminator.Triggered() {
			s.shutdown()
			return
		}

		var waited time.Duration
		for waited < reporter.PollInterval {
			select {
			case <-ctx.Done():
				s.shutdown()
				return
			case <-time.After(pollStep):
				waited += pollStep
			}
			if s.terminator.Triggered() {
				s.shutdown()
				return
			}
		}
	}
}

// release closes the control socket without running the Termination
// Controller's Execute sequence, for the all-children-exited path
// where Reporter.EmitAllExited has already printed the shutdown
// summary.
func (s *Supervisor) release() {
	_ = s.srv.Close()
}

// shutdown runs the Termination Controller's signal/deadline shutdown
// sequence and releases the control socket.
func (s *Supervisor) shutdown() {
	s.terminator.Execute(s.table, time.Now())
	_ = s.srv.Close()
}

// Stop requests an immediate shutdown, as if a SIGINT/SIGTERM had
// arrived, and blocks until the run loop has finished the shutdown
// sequence.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	if s.terminator != nil {
		s.terminator.RequestKill()
	}
	s.Wait()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Wait blocks until the run loop has executed its shutdown sequence,
// whether triggered by a deadline, a signal, or all children exiting
// on their own.
func (s *Supervisor) Wait() {
	<-s.done
}
