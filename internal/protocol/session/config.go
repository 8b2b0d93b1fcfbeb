package session

import (
	"time"

	"github.com/danmuck/qrtctl/internal/protocol"
	"github.com/danmuck/qrtctl/internal/protocol/frame"
)

// BackoffConfig defines reconnect backoff behavior for callers that retry.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines connection timing and buffer defaults.
type Config struct {
	Port            int
	ConnectTimeout  time.Duration
	GreetingTimeout time.Duration
	WriteTimeout    time.Duration
	EventTimeout    time.Duration
	ReadBufferSize  int
	Limits          frame.Limits
	Backoff         BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		Port:            protocol.DefaultPort,
		ConnectTimeout:  5 * time.Second,
		GreetingTimeout: 2 * time.Second,
		WriteTimeout:    5 * time.Second,
		EventTimeout:    30 * time.Second,
		ReadBufferSize:  64 * 1024,
		Limits:          frame.DefaultLimits(),
		Backoff: BackoffConfig{
			InitialDelay: 500 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     10 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Port <= 0 {
		c.Port = d.Port
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.GreetingTimeout <= 0 {
		c.GreetingTimeout = d.GreetingTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.EventTimeout <= 0 {
		c.EventTimeout = d.EventTimeout
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = d.ReadBufferSize
	}
	if c.Limits.MaxFrameBytes == 0 {
		c.Limits = d.Limits
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = d.Backoff
	}
	return c
}
