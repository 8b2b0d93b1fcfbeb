package config

import (
	"github.com/danmuck/qrtctl/internal/protocol/frame"
	"github.com/danmuck/qrtctl/internal/protocol/session"
)

// SessionConfig maps [server] onto engine timing. Zero values fall back to
// session defaults.
func (c ClientConfig) SessionConfig() session.Config {
	return session.Config{
		Port:            c.Server.Port,
		ConnectTimeout:  c.Server.ConnectTimeout.Duration,
		GreetingTimeout: c.Server.GreetingTimeout.Duration,
		WriteTimeout:    c.Server.WriteTimeout.Duration,
		EventTimeout:    c.Server.EventTimeout.Duration,
		ReadBufferSize:  c.Server.ReadBuffer,
		Limits:          frame.Limits{MaxFrameBytes: c.Server.MaxFrameBytes},
	}.WithDefaults()
}
