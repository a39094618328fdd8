// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"listener/cmd"
	applog "listener/internal/log"
	"listener/pkg/build"
)

// main is the entry point for the listener.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//   - Parse command line arguments
//
// 2. Concurrent Phase (Hot Path):
//   - Run the selected command; live capture drives the analysis
//     pipeline from the PortAudio callback
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Close transports and the audio engine
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds run without ldflags; the defaults are fine there.
	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v", err)
	}

	// Limit OS threads to optimize for real-time audio processing:
	// - One thread dedicated to audio engine (time-critical)
	// - One thread for UI and I/O operations
	runtime.GOMAXPROCS(2)

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatalf("CLI: %v", err)
	}
	if opts == nil {
		return
	}

	switch {
	case opts.LogFile != "":
		f, err := cmd.OpenLog(opts.LogFile)
		if err != nil {
			applog.Fatalf("Log: %v", err)
		}
		defer f.Close()
	case opts.Monitor || opts.Interactive:
		// Log lines would tear the alternate screen.
		applog.SetOutput(io.Discard)
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	// Run returns once ctx is cancelled or the command finishes; deferred
	// closes inside it release the engine and transports.
	if err := cmd.Run(ctx, opts, os.Stdout); err != nil {
		stop()
		// The monitor may have discarded log output; failures still reach stderr.
		if opts.LogFile == "" {
			applog.SetOutput(os.Stderr)
		}
		applog.Fatalf("Run: %v", err)
	}
}
