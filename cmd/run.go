// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"listener/internal/audio"
	"listener/internal/config"
	"listener/internal/event"
	applog "listener/internal/log"
	"listener/internal/phrase"
	"listener/internal/pipeline"
	"listener/internal/tempo"
	"listener/internal/transport"
	"listener/internal/transport/osc"
	"listener/internal/transport/udp"
	"listener/internal/tui"
	"listener/pkg/build"
)

// Run executes the command selected in opts. ctx is cancelled on the
// first termination signal.
func Run(ctx context.Context, opts *Options, stdout io.Writer) error {
	switch opts.Command {
	case CommandVersion:
		fmt.Fprintln(stdout, build.GetBuildFlags())
		return nil
	case CommandList:
		return withPortAudio(func() error { return runList(opts, stdout) })
	case CommandAnalyze:
		return runAnalyze(ctx, opts, stdout)
	default:
		return withPortAudio(func() error { return runLive(ctx, opts) })
	}
}

func withPortAudio(fn func() error) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	return fn()
}

func runList(opts *Options, stdout io.Writer) error {
	if !opts.Interactive {
		return audio.ListDevices(stdout)
	}
	sel, err := tui.RunDeviceList(audio.HostDevices)
	if err != nil {
		return err
	}
	if sel != nil {
		fmt.Fprintf(stdout, "# %s\n%s", sel.Device.Name, sel.YAML())
	}
	return nil
}

// buildTransports opens every transport enabled in cfg. On error the ones
// already opened are closed.
func buildTransports(cfg *config.Config, session string) ([]transport.Transport, error) {
	var out []transport.Transport
	fail := func(err error) ([]transport.Transport, error) {
		transport.NewMulti(out...).Close()
		return nil, err
	}

	if cfg.Transport.Log {
		out = append(out, transport.NewLoggingTransport())
	}
	if cfg.Transport.OSC.Enabled {
		t, err := osc.New(cfg.Transport.OSC.Address)
		if err != nil {
			return fail(err)
		}
		out = append(out, t)
	}
	if cfg.Transport.UDP.Enabled {
		sender, err := udp.NewSender(cfg.Transport.UDP.TargetAddress)
		if err != nil {
			return fail(err)
		}
		pub, err := udp.NewPublisher(cfg.Transport.UDP.SendInterval, sender)
		if err != nil {
			sender.Close()
			return fail(err)
		}
		pub.Start()
		out = append(out, pub)
	}
	if cfg.Transport.WebSocket.Enabled {
		t, err := transport.NewWebSocketTransport(cfg.Transport.WebSocket.Address, session)
		if err != nil {
			return fail(err)
		}
		out = append(out, t)
	}
	return out, nil
}

func runLive(ctx context.Context, opts *Options) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	applog.SetLevel(cfg.Level())

	session := uuid.NewString()
	outs, err := buildTransports(cfg, session)
	if err != nil {
		return err
	}
	var mon *tui.Monitor
	if opts.Monitor {
		mon = tui.NewMonitor()
		outs = append(outs, mon)
	}
	out := transport.NewMulti(outs...)
	defer out.Close()
	if out.Len() == 0 {
		applog.Warnf("Transport: none enabled, events are discarded")
	}

	est, err := tempo.NewFluxEstimator(cfg.Audio.SampleRate, cfg.Tempo.MinBPM, cfg.Tempo.MaxBPM, cfg.Tempo.Estimator)
	if err != nil {
		return err
	}
	p, err := pipeline.New(cfg, est, out, pipeline.WithSession(session))
	if err != nil {
		return err
	}
	engine, err := audio.NewEngine(cfg, p)
	if err != nil {
		return err
	}

	// The first call to StartInputStream starts the PortAudio callback;
	// from here on every block runs through the pipeline.
	if err := engine.StartInputStream(); err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			applog.Errorf("Error closing audio engine: %v", err)
		}
		logSummary(p.Stats())
	}()

	if mon != nil {
		go func() {
			<-ctx.Done()
			mon.Close()
		}()
		return tui.RunMonitor(mon, p.Stats)
	}

	applog.Infof("Listening. Press Ctrl+C to stop.")
	<-ctx.Done()
	return nil
}

func logSummary(s pipeline.Stats) {
	applog.Infof("Session %s: %d blocks (%d empty) over %s, %d phrase changes, %d send errors, final %s at %.1f BPM",
		s.Session, s.Processed, s.Empty, s.Elapsed.Round(time.Millisecond), s.Transitions, s.SendErrors,
		s.Phrase, s.Tempo.BPM)
}

// runAnalyze replays a WAV file through the pipeline on a sample clock and
// prints where the phrases changed and how long each label held.
func runAnalyze(ctx context.Context, opts *Options, stdout io.Writer) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	applog.SetLevel(cfg.Level())

	src, err := audio.OpenFile(opts.File, cfg.Audio.BlockSize)
	if err != nil {
		return err
	}
	defer src.Close()

	// Time constants follow the file, not the capture device.
	cfg.Audio.SampleRate = src.SampleRate()
	if err := cfg.Audio.Validate(); err != nil {
		return fmt.Errorf("%s: %w", opts.File, err)
	}

	rec := transport.NewRecorder()
	outs := []transport.Transport{rec}
	if cfg.Transport.Log {
		outs = append(outs, transport.NewLoggingTransport())
	}
	out := transport.NewMulti(outs...)
	defer out.Close()

	est, err := tempo.NewFluxEstimator(cfg.Audio.SampleRate, cfg.Tempo.MinBPM, cfg.Tempo.MaxBPM, cfg.Tempo.Estimator)
	if err != nil {
		return err
	}
	p, err := pipeline.New(cfg, est, out, pipeline.WithSampleClock(time.Unix(0, 0).UTC()))
	if err != nil {
		return err
	}

	start := time.Now()
	blocks, err := src.Run(ctx, p)
	if err != nil {
		return err
	}
	applog.Debugf("Analyze: %d blocks in %s", blocks, time.Since(start).Round(time.Millisecond))

	writeReport(stdout, opts.File, p.Stats(), rec, cfg.BlockDuration())
	return nil
}

func writeReport(w io.Writer, file string, s pipeline.Stats, rec *transport.Recorder, block time.Duration) {
	fmt.Fprintf(w, "%s\n", file)
	fmt.Fprintf(w, "  duration   %s (%d blocks)\n", s.Elapsed.Round(time.Millisecond), s.Processed)
	fmt.Fprintf(w, "  tempo      %.1f BPM (confidence %.2f)\n", s.Tempo.BPM, s.Tempo.Confidence)
	fmt.Fprintf(w, "  onsets     %d\n", rec.Count(event.NameOnset))
	fmt.Fprintf(w, "  changes    %d\n\n", s.Transitions)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  TIME\tFROM\tTO\tBEAT")
	var elapsed time.Duration
	for _, ev := range rec.Events() {
		switch ev := ev.(type) {
		case event.FeatureFrame:
			elapsed += block
		case event.PhraseChange:
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%d\n", formatOffset(elapsed), ev.From, ev.To, ev.Beat)
		}
	}
	tw.Flush()

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  PHRASE\tTIME\tSHARE")
	for _, l := range phrase.Labels() {
		d := s.TimeIn(l)
		if d == 0 {
			continue
		}
		share := 0.0
		if s.Elapsed > 0 {
			share = 100 * float64(d) / float64(s.Elapsed)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%.1f%%\n", l, d.Round(time.Millisecond), share)
	}
	tw.Flush()
}

// formatOffset renders d as m:ss.mmm.
func formatOffset(d time.Duration) string {
	d = d.Round(time.Millisecond)
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%d:%06.3f", m, d.Seconds())
}

// OpenLog sends logs to path. The returned file must be closed by the
// caller.
func OpenLog(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	applog.SetOutput(f)
	return f, nil
}
