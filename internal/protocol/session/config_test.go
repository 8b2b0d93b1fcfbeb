package session

import (
	"testing"
	"time"

	"github.com/danmuck/qrtctl/internal/protocol"
	"github.com/danmuck/qrtctl/internal/testutil/testlog"
)

func TestWithDefaultsFillsZeroFields(t *testing.T) {
	testlog.Start(t)

	cfg := Config{WriteTimeout: time.Second}.WithDefaults()
	if cfg.Port != protocol.DefaultPort {
		t.Fatalf("port: got %d", cfg.Port)
	}
	if cfg.WriteTimeout != time.Second {
		t.Fatalf("explicit write timeout overwritten: %s", cfg.WriteTimeout)
	}
	if cfg.EventTimeout != 30*time.Second {
		t.Fatalf("event timeout: got %s", cfg.EventTimeout)
	}
	if cfg.Limits.MaxFrameBytes == 0 {
		t.Fatalf("limits not filled")
	}
}

func TestBackoffDelay(t *testing.T) {
	testlog.Start(t)

	b := BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     350 * time.Millisecond,
	}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		350 * time.Millisecond,
		350 * time.Millisecond,
	}
	for i, w := range want {
		if got := b.Delay(i+1, nil); got != w {
			t.Fatalf("attempt %d: got %s want %s", i+1, got, w)
		}
	}

	b.Jitter = true
	if got := b.Delay(2, nil); got != 100*time.Millisecond {
		t.Fatalf("jitter without rng: got %s", got)
	}
}
