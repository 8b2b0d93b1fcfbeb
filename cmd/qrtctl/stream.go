package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/qrtctl/internal/bridge"
	"github.com/danmuck/qrtctl/internal/config"
	"github.com/danmuck/qrtctl/internal/logging"
	"github.com/danmuck/qrtctl/internal/monitor"
	"github.com/danmuck/qrtctl/internal/protocol/packet"
	"github.com/danmuck/qrtctl/internal/qrt"
	"github.com/danmuck/qrtctl/internal/recorder"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const stopReplyWait = time.Second

func streamCmd(opts *rootOptions) *cobra.Command {
	var (
		frames    string
		record    string
		dataOnly  bool
		quiet     bool
		monitorOn bool
		noRetry   bool
	)

	cmd := &cobra.Command{
		Use:   "stream [components]",
		Short: "Stream measurement frames until interrupted",
		Long: `Stream measurement frames until interrupted.

Components are names separated by commas, e.g. "3d,6d,analog". Without an
argument [stream].components is used. Frames are printed one per line and
optionally recorded as JSON Lines; with the monitor enabled they are also
broadcast on ws://<monitor addr>/stream.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if len(args) == 1 {
				cfg.Stream.Components = args[0]
			}
			if frames != "" {
				cfg.Stream.Frames = frames
			}
			if record != "" {
				cfg.Stream.RecordPath = record
			}
			if monitorOn {
				cfg.Monitor.Enabled = true
			}
			if noRetry {
				cfg.Stream.Reconnect = false
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			set, err := packet.ParseComponentSet(cfg.Stream.Components)
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if quiet {
				out = nil
			}
			s := &streamer{
				cfg:      cfg,
				start:    streamFramesCommand(cfg.Stream.Frames, set),
				out:      out,
				dataOnly: dataOnly,
				log:      logging.Component("stream"),
			}
			return s.run(cmd.Context(), opts.newEngine)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&frames, "frames", "", "rate: AllFrames, Frequency:<n> or FrequencyDivisor:<n>")
	flags.StringVar(&record, "record", "", "append frames to this JSON Lines file")
	flags.BoolVar(&dataOnly, "data-only", false, "record only decoded Data frames")
	flags.BoolVarP(&quiet, "quiet", "q", false, "do not print frames")
	flags.BoolVar(&monitorOn, "monitor", false, "serve the HTTP monitor and websocket bridge")
	flags.BoolVar(&noRetry, "no-reconnect", false, "exit when the connection drops")
	return cmd
}

// streamFramesCommand builds the StreamFrames verb, e.g.
// "StreamFrames Frequency:100 3d 6d".
func streamFramesCommand(frames string, set packet.ComponentSet) string {
	parts := []string{"StreamFrames", frames}
	for _, t := range set.Types() {
		parts = append(parts, t.String())
	}
	return strings.Join(parts, " ")
}

type streamer struct {
	cfg      config.ClientConfig
	start    string
	out      io.Writer
	dataOnly bool
	log      zerolog.Logger

	hub *qrt.Hub
	eng *qrt.Engine
}

// run wires the hub consumers, then keeps a streaming session alive until
// ctx ends or reconnects are exhausted.
func (s *streamer) run(ctx context.Context, newEngine func(qrt.Sink) *qrt.Engine) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.hub = qrt.NewHub(qrt.WithClientBuffer(s.cfg.Monitor.SendBuffer))
	defer s.hub.Close()
	s.eng = newEngine(s.hub)

	// Subscriber channels close with the hub.
	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	if s.out != nil {
		sub, _ := s.hub.Subscribe()
		sink := printer(s.out)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range sub {
				sink.Deliver(r)
			}
		}()
	}

	if path := s.cfg.Stream.RecordPath; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open record file: %w", err)
		}
		defer f.Close()
		var ropts []recorder.Option
		if s.dataOnly {
			ropts = append(ropts, recorder.DataOnly())
		}
		w := recorder.NewJSONLWriter(f, ropts...)
		sub, _ := s.hub.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Consume(ctx, s.eng.SessionID, sub); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("record: %w", err)
				cancel()
			}
			s.log.Info().Str("path", path).Int("lines", w.Written()).Msg("recording closed")
		}()
	}

	if s.cfg.Monitor.Enabled {
		ws := bridge.NewServer(bridge.Config{
			SendBuf: s.cfg.Monitor.SendBuffer,
			Session: s.eng.SessionID,
		}, logging.Component("bridge"))
		mon := monitor.New(monitor.Config{
			Addr:        s.cfg.Monitor.Addr,
			CorsOrigins: s.cfg.Monitor.CorsOrigins,
		}, s.eng, ws, logging.Component("monitor"))

		sub, _ := s.hub.Subscribe()
		wg.Add(2)
		go func() {
			defer wg.Done()
			ws.Run(ctx, sub)
		}()
		go func() {
			defer wg.Done()
			if err := mon.Run(ctx); err != nil {
				errCh <- fmt.Errorf("monitor: %w", err)
				cancel()
			}
		}()
	}

	err := s.loop(ctx)
	cancel()
	s.hub.Close()
	wg.Wait()

	select {
	case consumerErr := <-errCh:
		return consumerErr
	default:
	}
	return err
}

// loop runs sessions back to back. A session that reached the server resets
// the attempt counter. MaxReconnects of 0 retries forever.
func (s *streamer) loop(ctx context.Context) error {
	backoff := s.cfg.SessionConfig().Backoff
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	attempt := 0

	for {
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if !s.cfg.Stream.Reconnect {
			return err
		}
		if connected {
			attempt = 0
		}
		attempt++
		if limit := s.cfg.Stream.MaxReconnects; limit > 0 && attempt > limit {
			return fmt.Errorf("giving up after %d reconnect attempts: %w", limit, err)
		}

		delay := backoff.Delay(attempt, rng)
		s.log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("stream lost, reconnecting")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// session connects, starts streaming and blocks until the connection ends or
// ctx is cancelled. connected reports whether the dial succeeded.
func (s *streamer) session(ctx context.Context) (connected bool, err error) {
	if err := s.eng.Connect(ctx, s.cfg.Server.Host, s.cfg.Server.Port); err != nil {
		return false, err
	}
	defer s.eng.Disconnect()
	done := s.eng.Done()

	if err := s.eng.SendCommand(s.start, s.logReply("stream start")); err != nil {
		return true, err
	}
	s.log.Info().Str("command", s.start).Str("session", s.eng.SessionID()).Msg("streaming")

	select {
	case <-done:
		err := s.eng.Err()
		if err == nil {
			err = errors.New("connection closed")
		}
		return true, err
	case <-ctx.Done():
		s.stop(done)
		return true, nil
	}
}

// stop asks the server to end the stream and gives it a moment to answer
// before the deferred disconnect.
func (s *streamer) stop(done <-chan struct{}) {
	replied := make(chan struct{})
	reply := s.logReply("stream stop")
	err := s.eng.SendCommand("StreamFrames Stop", func(r qrt.Response) {
		reply(r)
		close(replied)
	})
	if err != nil {
		return
	}
	timer := time.NewTimer(stopReplyWait)
	defer timer.Stop()
	select {
	case <-replied:
	case <-done:
	case <-timer.C:
	}
}

func (s *streamer) logReply(what string) func(qrt.Response) {
	return func(r qrt.Response) {
		switch {
		case r.Err != nil:
			s.log.Error().Err(r.Err).Str("reply", r.Text).Msg(what + " failed")
		case strings.HasPrefix(r.Text, "Ok"):
			s.log.Info().Msg(what + " ok")
		default:
			s.log.Warn().Str("reply", r.Text).Msg(what + " unexpected reply")
		}
	}
}
