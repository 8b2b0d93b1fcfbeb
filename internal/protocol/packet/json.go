package packet

import (
	"encoding/json"
	"math"
	"strconv"
)

// jsonFloat encodes like encoding/json does for float32, except that NaN
// and infinities become null. The server reports occluded markers and
// untracked bodies as NaN.
type jsonFloat float32

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	format := byte('f')
	if abs := math.Abs(v); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	b := strconv.AppendFloat(nil, v, format, -1, 32)
	if format == 'e' {
		// 1e-07 -> 1e-7
		if n := len(b); n >= 4 && b[n-4] == 'e' && b[n-3] == '-' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
	}
	return b, nil
}

func floats(vs []float32) []jsonFloat {
	if vs == nil {
		return nil
	}
	out := make([]jsonFloat, len(vs))
	for i, v := range vs {
		out[i] = jsonFloat(v)
	}
	return out
}

type jsonBlock struct {
	Type string    `json:"type"`
	Data Component `json:"data"`
}

func (p *Packet) MarshalJSON() ([]byte, error) {
	blocks := make([]jsonBlock, 0, len(p.Blocks))
	for _, b := range p.Blocks {
		blocks = append(blocks, jsonBlock{Type: b.Kind().String(), Data: b})
	}
	return json.Marshal(struct {
		Timestamp   uint64      `json:"timestamp"`
		FrameNumber uint32      `json:"frame_number"`
		Components  []jsonBlock `json:"components"`
	}{p.Timestamp, p.FrameNumber, blocks})
}

func (m Marker3D) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		X        jsonFloat `json:"x"`
		Y        jsonFloat `json:"y"`
		Z        jsonFloat `json:"z"`
		Residual jsonFloat `json:"residual,omitempty"`
	}{jsonFloat(m.X), jsonFloat(m.Y), jsonFloat(m.Z), jsonFloat(m.Residual)})
}

func (m UnlabeledMarker) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       uint32    `json:"id"`
		X        jsonFloat `json:"x"`
		Y        jsonFloat `json:"y"`
		Z        jsonFloat `json:"z"`
		Residual jsonFloat `json:"residual,omitempty"`
	}{m.ID, jsonFloat(m.X), jsonFloat(m.Y), jsonFloat(m.Z), jsonFloat(m.Residual)})
}

func (b Body6D) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Position []jsonFloat `json:"position"`
		Rotation []jsonFloat `json:"rotation"`
		Residual jsonFloat   `json:"residual,omitempty"`
	}{floats(b.Position[:]), floats(b.Rotation[:]), jsonFloat(b.Residual)})
}

func (b Body6DEuler) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Position []jsonFloat `json:"position"`
		Angles   []jsonFloat `json:"angles"`
		Residual jsonFloat   `json:"residual,omitempty"`
	}{floats(b.Position[:]), floats(b.Angles[:]), jsonFloat(b.Residual)})
}

func (d AnalogDevice) MarshalJSON() ([]byte, error) {
	var channels [][]jsonFloat
	if d.Channels != nil {
		channels = make([][]jsonFloat, len(d.Channels))
		for i, ch := range d.Channels {
			channels[i] = floats(ch)
		}
	}
	return json.Marshal(struct {
		ID           uint32        `json:"id"`
		SampleCount  uint32        `json:"sample_count"`
		SampleNumber uint32        `json:"sample_number"`
		Channels     [][]jsonFloat `json:"channels"`
	}{d.ID, d.SampleCount, d.SampleNumber, channels})
}

func (d AnalogSingleDevice) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       uint32      `json:"id"`
		Channels []jsonFloat `json:"channels"`
	}{d.ID, floats(d.Channels)})
}

func (s ForceSample) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Force            []jsonFloat `json:"force"`
		Moment           []jsonFloat `json:"moment"`
		ApplicationPoint []jsonFloat `json:"application_point"`
	}{floats(s.Force[:]), floats(s.Moment[:]), floats(s.ApplicationPoint[:])})
}

func (img Image) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		CameraID   uint32    `json:"camera_id"`
		Format     uint32    `json:"format"`
		Width      uint32    `json:"width"`
		Height     uint32    `json:"height"`
		LeftCrop   jsonFloat `json:"left_crop"`
		TopCrop    jsonFloat `json:"top_crop"`
		RightCrop  jsonFloat `json:"right_crop"`
		BottomCrop jsonFloat `json:"bottom_crop"`
		Data       []byte    `json:"data,omitempty"`
	}{
		img.CameraID, img.Format, img.Width, img.Height,
		jsonFloat(img.LeftCrop), jsonFloat(img.TopCrop), jsonFloat(img.RightCrop), jsonFloat(img.BottomCrop),
		img.Data,
	})
}

func (s GazeSample) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Gaze     []jsonFloat `json:"gaze"`
		Position []jsonFloat `json:"position"`
	}{floats(s.Gaze[:]), floats(s.Position[:])})
}

func (s EyeSample) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		LeftPupil  jsonFloat `json:"left_pupil"`
		RightPupil jsonFloat `json:"right_pupil"`
	}{jsonFloat(s.LeftPupil), jsonFloat(s.RightPupil)})
}

func (s Segment) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       uint32      `json:"id"`
		Position []jsonFloat `json:"position"`
		Rotation []jsonFloat `json:"rotation"`
	}{s.ID, floats(s.Position[:]), floats(s.Rotation[:])})
}

