package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/qrtctl/internal/protocol/packet"
	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration written as a Go duration string ("5s").
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

type ClientConfig struct {
	Server  ServerConfig  `toml:"server"`
	Stream  StreamConfig  `toml:"stream"`
	Monitor MonitorConfig `toml:"monitor"`
}

type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	ConnectTimeout  Duration `toml:"connect_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	GreetingTimeout Duration `toml:"greeting_timeout"`
	EventTimeout    Duration `toml:"event_timeout"`
	ReadBuffer      int      `toml:"read_buffer"`
	MaxFrameBytes   uint32   `toml:"max_frame_bytes"`
}

type StreamConfig struct {
	// Frames is the StreamFrames rate argument, e.g. "AllFrames" or "Frequency:50".
	Frames        string `toml:"frames"`
	Components    string `toml:"components"`
	RecordPath    string `toml:"record_path"`
	Reconnect     bool   `toml:"reconnect"`
	MaxReconnects int    `toml:"max_reconnects"`
}

type MonitorConfig struct {
	Enabled     bool     `toml:"enabled"`
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
	SendBuffer  int      `toml:"send_buffer"`
}

func Default() ClientConfig {
	return ClientConfig{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            22223,
			ConnectTimeout:  Duration{5 * time.Second},
			WriteTimeout:    Duration{5 * time.Second},
			GreetingTimeout: Duration{2 * time.Second},
			EventTimeout:    Duration{30 * time.Second},
			ReadBuffer:      64 * 1024,
			MaxFrameBytes:   64 << 20,
		},
		Stream: StreamConfig{
			Frames:        "AllFrames",
			Components:    "3d",
			MaxReconnects: 5,
		},
		Monitor: MonitorConfig{
			Addr:       "127.0.0.1:9310",
			SendBuffer: 64,
		},
	}
}

// Load reads path over Default and validates the result. Unknown keys are
// rejected.
func Load(path string) (ClientConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := Decode(data, &cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// Decode strictly decodes TOML into cfg, keeping fields the input omits.
func Decode(data []byte, cfg *ClientConfig) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return errors.New(strings.TrimSpace(strict.String()))
		}
		return err
	}
	return nil
}

func Validate(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	for name, d := range map[string]Duration{
		"server.connect_timeout":  cfg.Server.ConnectTimeout,
		"server.write_timeout":    cfg.Server.WriteTimeout,
		"server.greeting_timeout": cfg.Server.GreetingTimeout,
		"server.event_timeout":    cfg.Server.EventTimeout,
	} {
		if d.Duration < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if cfg.Server.ReadBuffer < 0 {
		return fmt.Errorf("server.read_buffer must not be negative")
	}
	if cfg.Server.MaxFrameBytes != 0 && cfg.Server.MaxFrameBytes < 8 {
		return fmt.Errorf("server.max_frame_bytes below header size: %d", cfg.Server.MaxFrameBytes)
	}
	if strings.TrimSpace(cfg.Stream.Frames) == "" {
		return fmt.Errorf("stream.frames is required")
	}
	set, err := packet.ParseComponentSet(cfg.Stream.Components)
	if err != nil {
		return fmt.Errorf("stream.components: %w", err)
	}
	if set == 0 {
		return fmt.Errorf("stream.components is empty")
	}
	if cfg.Stream.MaxReconnects < 0 {
		return fmt.Errorf("stream.max_reconnects must not be negative")
	}
	if cfg.Monitor.Enabled && strings.TrimSpace(cfg.Monitor.Addr) == "" {
		return fmt.Errorf("monitor.addr is required when monitor is enabled")
	}
	if cfg.Monitor.SendBuffer < 0 {
		return fmt.Errorf("monitor.send_buffer must not be negative")
	}
	return nil
}
