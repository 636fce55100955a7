// Command macd is the supervisor binary. It reads a manifest of
// commands to launch, forks one child process per entry, periodically
// reports each child's CPU and memory usage, and accepts STAT/KILL
// requests over a local Unix-domain control socket until every child
// has exited, a timelimit directive elapses, or it receives SIGINT or
// SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tripwire/macd/internal/config"
	"github.com/tripwire/macd/internal/controlplane"
	"github.com/tripwire/macd/internal/output"
	"github.com/tripwire/macd/internal/supervisor"
)

func main() {
	manifestPath := flag.String("i", "", "path to the manifest of commands to launch")
	outputPath := flag.String("o", "", "path to write report output (defaults to stdout)")
	quiet := flag.Bool("q", false, "redirect launched children's stdout to /dev/null")
	configPath := flag.String("c", "", "optional path to a YAML config overlay (log_level, socket_path)")
	flag.Usage = usage
	flag.Parse()

	if *manifestPath == "" {
		// spec §6: with no manifest there is nothing to supervise; this
		// is a no-op, not a usage error (the original returns 0).
		return
	}

	cfg := &config.Config{LogLevel: "info", SocketPath: controlplane.DefaultSocketPath}
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "macd: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := newLogger(cfg.LogLevel)

	out, closeOut, err := openOutput(*outputPath)
	if err != nil {
		logger.Error("failed to open output", slog.String("path", *outputPath), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeOut()

	sup := supervisor.New(*manifestPath, *quiet, output.New(out),
		supervisor.WithSocketPath(cfg.SocketPath),
		supervisor.WithLogger(logger),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sup.Start(ctx); err != nil {
		logger.Error("failed to start supervisor", slog.Any("error", err))
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		sup.Wait()
		close(done)
	}()

	select {
	case <-sigCh:
		sup.Stop()
	case <-done:
	}
}

// usage prints the command's flag synopsis to stderr.
func usage() {
	fmt.Fprintln(os.Stderr, "usage: macd -i MANIFEST [-o OUTPUT] [-q] [-c CONFIG]")
	flag.PrintDefaults()
}

// openOutput opens path for report output, or returns os.Stdout (with
// a no-op close) when path is empty.
func openOutput(path string) (out *os.File, closeFn func(), err error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// newLogger constructs a *slog.Logger that writes JSON-structured log
// records to stderr at the requested minimum level, so report output
// on -o/stdout is never interleaved with operational logging.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
