package protocol

import "fmt"

// DefaultPort is the RT control port of the capture server.
const DefaultPort = 22223

// PacketType is the u32 type code carried in every frame header.
type PacketType uint32

const (
	PacketError      PacketType = 0
	PacketCommand    PacketType = 1
	PacketXML        PacketType = 2
	PacketData       PacketType = 3
	PacketNoMoreData PacketType = 4
	PacketC3DFile    PacketType = 5
	PacketEvent      PacketType = 6
	PacketDiscover   PacketType = 7
	PacketQTMFile    PacketType = 8
	PacketNone       PacketType = 9
)

var packetTypeNames = map[PacketType]string{
	PacketError:      "error",
	PacketCommand:    "command",
	PacketXML:        "xml",
	PacketData:       "data",
	PacketNoMoreData: "no_more_data",
	PacketC3DFile:    "c3d_file",
	PacketEvent:      "event",
	PacketDiscover:   "discover",
	PacketQTMFile:    "qtm_file",
	PacketNone:       "none",
}

func (t PacketType) String() string {
	if name, ok := packetTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint32(t))
}

// IsResponse reports whether frames of this type answer a request and
// therefore consume one correlation slot.
func (t PacketType) IsResponse() bool {
	switch t {
	case PacketError, PacketCommand, PacketXML:
		return true
	default:
		return false
	}
}

// EventCode is the single-byte body of an Event frame.
type EventCode uint8

// AnyEvent is the wait filter that matches every event. The server never
// sends code 0.
const AnyEvent EventCode = 0

const (
	EventConnected               EventCode = 1
	EventConnectionClosed        EventCode = 2
	EventCaptureStarted          EventCode = 3
	EventCaptureStopped          EventCode = 4
	EventCaptureFetchingFinished EventCode = 5
	EventCalibrationStarted      EventCode = 6
	EventCalibrationStopped      EventCode = 7
	EventRTFromFileStarted       EventCode = 8
	EventRTFromFileStopped       EventCode = 9
	EventWaitingForTrigger       EventCode = 10
	EventCameraSettingsChanged   EventCode = 11
	EventQTMShuttingDown         EventCode = 12
	EventCaptureSaved            EventCode = 13
	EventReprocessingStarted     EventCode = 14
	EventReprocessingStopped     EventCode = 15
	EventTrigger                 EventCode = 16
	EventNone                    EventCode = 17
)

var eventNames = map[EventCode]string{
	AnyEvent:                     "any",
	EventConnected:               "connected",
	EventConnectionClosed:        "connection_closed",
	EventCaptureStarted:          "capture_started",
	EventCaptureStopped:          "capture_stopped",
	EventCaptureFetchingFinished: "capture_fetching_finished",
	EventCalibrationStarted:      "calibration_started",
	EventCalibrationStopped:      "calibration_stopped",
	EventRTFromFileStarted:       "rt_from_file_started",
	EventRTFromFileStopped:       "rt_from_file_stopped",
	EventWaitingForTrigger:       "waiting_for_trigger",
	EventCameraSettingsChanged:   "camera_settings_changed",
	EventQTMShuttingDown:         "qtm_shutting_down",
	EventCaptureSaved:            "capture_saved",
	EventReprocessingStarted:     "reprocessing_started",
	EventReprocessingStopped:     "reprocessing_stopped",
	EventTrigger:                 "trigger",
	EventNone:                    "none",
}

func (e EventCode) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(e))
}

// Matches reports whether an observed event satisfies this filter.
func (e EventCode) Matches(observed EventCode) bool {
	return e == AnyEvent || e == observed
}

// ParseEventCode accepts an event name as printed by String or a decimal code.
func ParseEventCode(raw string) (EventCode, error) {
	for code, name := range eventNames {
		if name == raw {
			return code, nil
		}
	}
	var n uint8
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
		return 0, fmt.Errorf("protocol: unknown event %q", raw)
	}
	return EventCode(n), nil
}
