package main

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/qrtctl/internal/config"
	"github.com/danmuck/qrtctl/internal/logging"
	"github.com/danmuck/qrtctl/internal/observability"
	"github.com/danmuck/qrtctl/internal/qrt"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultCommandTimeout = 10 * time.Second

type rootOptions struct {
	configPath string
	host       string
	port       int
	timeout    time.Duration
	logLevel   string

	cfg config.ClientConfig
}

// setup configures logging and resolves the effective config: defaults,
// then the config file, then flags.
func (o *rootOptions) setup() error {
	logging.ConfigureRuntime()
	if o.logLevel != "" {
		lvl, ok := logging.ParseLevel(o.logLevel)
		if !ok {
			return fmt.Errorf("unknown log level %q", o.logLevel)
		}
		zerolog.SetGlobalLevel(lvl)
	}

	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if o.host != "" {
		cfg.Server.Host = o.host
	}
	if o.port > 0 {
		cfg.Server.Port = o.port
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

func (o *rootOptions) commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := o.timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return context.WithTimeout(parent, timeout)
}

func (o *rootOptions) newEngine(sink qrt.Sink) *qrt.Engine {
	return qrt.New(
		qrt.WithConfig(o.cfg.SessionConfig()),
		qrt.WithLogger(logging.Component("engine")),
		qrt.WithObserver(observability.NewEngineMetrics()),
		qrt.WithSink(sink),
	)
}

// connect dials the configured server. sink receives the greeting and all
// other unsolicited responses.
func (o *rootOptions) connect(ctx context.Context, sink qrt.Sink) (*qrt.Engine, error) {
	eng := o.newEngine(sink)
	if err := eng.Connect(ctx, o.cfg.Server.Host, o.cfg.Server.Port); err != nil {
		return nil, err
	}
	log.Debug().Str("session", eng.SessionID()).Str("remote", eng.RemoteAddr()).Msg("session open")
	return eng, nil
}
