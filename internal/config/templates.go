package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns a commented starting config. kind is "client" for
// one-shot commands or "stream" for a recording session with the monitor on.
func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "client":
		return clientTemplate, nil
	case "stream":
		return streamTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const clientTemplate = `[server]
host = "localhost"
port = 22223
connect_timeout = "5s"
write_timeout = "5s"
greeting_timeout = "2s"
event_timeout = "30s"
read_buffer = 65536
max_frame_bytes = 67108864

[stream]
frames = "AllFrames"
components = "3d"
`

const streamTemplate = `[server]
host = "localhost"
port = 22223
event_timeout = "30s"

[stream]
# AllFrames, Frequency:<hz> or FrequencyDivisor:<n>
frames = "Frequency:100"
components = "3d,6d,analog"
record_path = "capture.jsonl"
reconnect = true
max_reconnects = 10

[monitor]
enabled = true
addr = "127.0.0.1:9310"
cors_origins = ["http://localhost:3000"]
send_buffer = 128
`
