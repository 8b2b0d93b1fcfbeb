package packet

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/danmuck/qrtctl/internal/protocol"
	"github.com/stretchr/testify/require"
)

// wire builds little-endian test bodies.
type wire []byte

func (w wire) u8(v uint8) wire   { return append(w, v) }
func (w wire) u16(v uint16) wire { return binary.LittleEndian.AppendUint16(w, v) }
func (w wire) u32(v uint32) wire { return binary.LittleEndian.AppendUint32(w, v) }
func (w wire) u64(v uint64) wire { return binary.LittleEndian.AppendUint64(w, v) }
func (w wire) f32(vs ...float32) wire {
	for _, v := range vs {
		w = w.u32(math.Float32bits(v))
	}
	return w
}

func component(kind ComponentType, payload wire) wire {
	return wire{}.u32(uint32(ComponentHeaderLen + len(payload))).u32(uint32(kind)).raw(payload)
}

func (w wire) raw(b []byte) wire { return append(w, b...) }

func body(ts uint64, frame uint32, blocks ...wire) []byte {
	w := wire{}.u64(ts).u32(frame).u32(uint32(len(blocks)))
	for _, b := range blocks {
		w = w.raw(b)
	}
	return w
}

func TestDecodeThreeMarkers(t *testing.T) {
	xyz := [][3]float32{{1.5, -2.25, 3}, {100.125, 0, -0.5}, {float32(math.Pi), 1e-3, 42}}
	payload := wire{}.u32(3).u16(0).u16(0)
	for _, m := range xyz {
		payload = payload.f32(m[0], m[1], m[2])
	}
	p, err := Decode(body(123456, 77, component(Component3D, payload)))
	require.NoError(t, err)

	require.Equal(t, uint64(123456), p.Timestamp)
	require.Equal(t, uint32(77), p.FrameNumber)
	require.True(t, p.Components.Has(Component3D))
	require.False(t, p.Components.Has(Component6D))

	markers, ok := p.Markers3D()
	require.True(t, ok)
	require.Len(t, markers.Markers, 3)
	for i, m := range markers.Markers {
		require.Equal(t, xyz[i][0], m.X)
		require.Equal(t, xyz[i][1], m.Y)
		require.Equal(t, xyz[i][2], m.Z)
	}
}

func TestDecodeResidualVariants(t *testing.T) {
	res3D := wire{}.u32(1).u16(2).u16(3).f32(1, 2, 3, 0.25)
	noLabels := wire{}.u32(1).u16(0).u16(0).f32(4, 5, 6).u32(99).f32(0.5)
	sixD := wire{}.u32(1).u16(0).u16(0).f32(10, 20, 30).f32(1, 0, 0, 0, 1, 0, 0, 0, 1).f32(0.75)
	euler := wire{}.u32(1).u16(0).u16(0).f32(1, 1, 1).f32(90, 45, 0)

	p, err := Decode(body(1, 2,
		component(Component3DRes, res3D),
		component(Component3DNoLabelsRes, noLabels),
		component(Component6DRes, sixD),
		component(Component6DEuler, euler),
	))
	require.NoError(t, err)
	require.Len(t, p.Blocks, 4)
	require.Equal(t, "6deuler,3dres,3dnolabelsres,6dres", p.Components.String())

	m3, ok := p.Markers3D()
	require.True(t, ok)
	require.True(t, m3.HasResiduals())
	require.Equal(t, uint16(2), m3.DropRate)
	require.Equal(t, uint16(3), m3.OutOfSyncRate)
	require.Equal(t, Marker3D{X: 1, Y: 2, Z: 3, Residual: 0.25}, m3.Markers[0])

	nl := p.Blocks[1].(*Markers3DNoLabels)
	require.Equal(t, UnlabeledMarker{ID: 99, X: 4, Y: 5, Z: 6, Residual: 0.5}, nl.Markers[0])

	b6, ok := p.Bodies6D()
	require.True(t, ok)
	require.Equal(t, [3]float32{10, 20, 30}, b6.Bodies[0].Position)
	require.Equal(t, [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}, b6.Bodies[0].Rotation)
	require.Equal(t, float32(0.75), b6.Bodies[0].Residual)

	eu := p.Blocks[3].(*Bodies6DEuler)
	require.False(t, eu.HasResiduals())
	require.Equal(t, [3]float32{90, 45, 0}, eu.Bodies[0].Angles)
}

func TestDecodeAnalogSubsampled(t *testing.T) {
	payload := wire{}.u32(2).
		u32(1).u32(2).u32(3).u32(500).f32(1, 2, 3).f32(4, 5, 6).
		u32(2).u32(4).u32(0)
	p, err := Decode(body(0, 0, component(ComponentAnalog, payload)))
	require.NoError(t, err)

	c, ok := p.Component(ComponentAnalog)
	require.True(t, ok)
	analog := c.(*Analog)
	require.Len(t, analog.Devices, 2)
	dev := analog.Devices[0]
	require.Equal(t, uint32(1), dev.ID)
	require.Equal(t, uint32(3), dev.SampleCount)
	require.Equal(t, uint32(500), dev.SampleNumber)
	require.Equal(t, [][]float32{{1, 2, 3}, {4, 5, 6}}, dev.Channels)
	require.Nil(t, analog.Devices[1].Channels)
}

func TestDecodeForceAndSingles(t *testing.T) {
	force := wire{}.u32(1).u32(7).u32(2).u32(1000).
		f32(1, 2, 3, 4, 5, 6, 7, 8, 9).
		f32(9, 8, 7, 6, 5, 4, 3, 2, 1)
	forceSingle := wire{}.u32(1).u32(3).f32(1, 1, 1, 2, 2, 2, 3, 3, 3)
	analogSingle := wire{}.u32(1).u32(5).u32(2).f32(0.5, -0.5)

	p, err := Decode(body(0, 0,
		component(ComponentForce, force),
		component(ComponentForceSingle, forceSingle),
		component(ComponentAnalogSingle, analogSingle),
	))
	require.NoError(t, err)

	f := p.Blocks[0].(*Force)
	require.Equal(t, uint32(7), f.Plates[0].ID)
	require.Equal(t, uint32(1000), f.Plates[0].ForceNumber)
	require.Len(t, f.Plates[0].Forces, 2)
	require.Equal(t, [3]float32{7, 8, 9}, f.Plates[0].Forces[0].ApplicationPoint)

	fs := p.Blocks[1].(*ForceSingle)
	require.Equal(t, [3]float32{2, 2, 2}, fs.Plates[0].Force.Moment)

	as := p.Blocks[2].(*AnalogSingle)
	require.Equal(t, []float32{0.5, -0.5}, as.Devices[0].Channels)
}

func TestDecode2DImageGazeEyeTimecodeSkeleton(t *testing.T) {
	twoD := wire{}.u32(1).u16(0).u16(0).u32(1).u8(1).u32(640).u32(480).u16(3).u16(4)
	image := wire{}.u32(1).u32(2).u32(0).u32(2).u32(1).f32(0, 0, 1, 1).u32(2).raw([]byte{0xab, 0xcd})
	gaze := wire{}.u32(2).u32(1).u32(17).f32(0, 0, 1, 0.1, 0.2, 0.3).u32(0)
	eye := wire{}.u32(1).u32(2).u32(5).f32(3.1, 3.2, 3.3, 3.4)
	timecode := wire{}.u32(1).u32(0).u32(0x01020304).u32(0x05060708)
	skeleton := wire{}.u32(1).u32(2).
		u32(1).f32(0, 0, 1000).f32(0, 0, 0, 1).
		u32(2).f32(0, 100, 1000).f32(0, 0.7071, 0, 0.7071)

	raw := body(0, 0,
		component(Component2DLin, twoD),
		component(ComponentImage, image),
		component(ComponentGazeVector, gaze),
		component(ComponentEyeTracker, eye),
		component(ComponentTimecode, timecode),
		component(ComponentSkeleton, skeleton),
	)
	p, err := Decode(raw)
	require.NoError(t, err)

	cams := p.Blocks[0].(*Markers2D)
	require.Equal(t, Component2DLin, cams.Kind())
	require.Equal(t, uint8(1), cams.Cameras[0].Status)
	require.Equal(t, Marker2D{X: 640, Y: 480, DiameterX: 3, DiameterY: 4}, cams.Cameras[0].Markers[0])

	img := p.Blocks[1].(*Images)
	require.Equal(t, []byte{0xab, 0xcd}, img.Images[0].Data)
	for i := range raw {
		raw[i] = 0
	}
	require.Equal(t, []byte{0xab, 0xcd}, img.Images[0].Data, "decoded records must not alias the body")

	gz := p.Blocks[2].(*GazeVectors)
	require.Equal(t, uint32(17), gz.Vectors[0].SampleNumber)
	require.Equal(t, [3]float32{0.1, 0.2, 0.3}, gz.Vectors[0].Samples[0].Position)
	require.Empty(t, gz.Vectors[1].Samples)

	et := p.Blocks[3].(*EyeTrackers)
	require.Equal(t, EyeSample{LeftPupil: 3.3, RightPupil: 3.4}, et.Devices[0].Samples[1])

	tc := p.Blocks[4].(*Timecodes)
	require.Equal(t, Timecode{Type: 0, Hi: 0x01020304, Lo: 0x05060708}, tc.Timecodes[0])

	sk := p.Blocks[5].(*Skeletons)
	require.Len(t, sk.Skeletons[0].Segments, 2)
	require.Equal(t, uint32(2), sk.Skeletons[0].Segments[1].ID)
	require.Equal(t, [4]float32{0, 0.7071, 0, 0.7071}, sk.Skeletons[0].Segments[1].Rotation)
}

func TestDecodeSkipsUnknownKindByDeclaredSize(t *testing.T) {
	unknown := wire{}.raw([]byte{1, 2, 3, 4, 5})
	markers := wire{}.u32(1).u16(0).u16(0).f32(7, 8, 9)

	p, err := Decode(body(0, 0, component(ComponentType(200), unknown), component(Component3D, markers)))
	require.NoError(t, err)
	require.Len(t, p.Blocks, 2)

	u := p.Blocks[0].(*Unknown)
	require.Equal(t, ComponentType(200), u.Kind())
	require.Equal(t, []byte{1, 2, 3, 4, 5}, u.Raw)
	require.False(t, ComponentType(200).Known())

	m, ok := p.Markers3D()
	require.True(t, ok)
	require.Equal(t, float32(9), m.Markers[0].Z)
}

func TestDecodeIgnoresSlackInsideBlock(t *testing.T) {
	markers := wire{}.u32(1).u16(0).u16(0).f32(1, 2, 3).raw([]byte{0, 0, 0, 0})
	timecode := wire{}.u32(0)
	p, err := Decode(body(0, 0, component(Component3D, markers), component(ComponentTimecode, timecode)))
	require.NoError(t, err)
	require.True(t, p.Components.Has(ComponentTimecode))
}

func TestDecodeErrors(t *testing.T) {
	shortCount := wire{}.u32(3).u16(0).u16(0).f32(1, 2, 3)
	cases := []struct {
		name string
		body []byte
		want error
	}{
		{"short metadata", []byte{1, 2, 3}, ErrShortMetadata},
		{"missing component header", wire{}.u64(0).u32(0).u32(1).u32(8), ErrShortComponentHeader},
		{"size below header", wire{}.u64(0).u32(0).u32(1).u32(4).u32(1), ErrComponentSize},
		{"size past frame", wire{}.u64(0).u32(0).u32(1).u32(64).u32(1).u32(0), ErrComponentSize},
		{"count exceeds body", body(0, 0, component(Component3D, shortCount)), ErrShortComponent},
		{"huge count", body(0, 0, component(Component6D, wire{}.u32(math.MaxUint32).u16(0).u16(0))), ErrShortComponent},
		{"truncated 2d header", body(0, 0, component(Component2D, wire{}.u32(1))), ErrShortComponent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Decode(tc.body)
			require.Nil(t, p)
			require.True(t, errors.Is(err, tc.want), "got %v", err)
			require.True(t, errors.Is(err, protocol.ErrDecode), "got %v", err)
		})
	}
}

func TestComponentSet(t *testing.T) {
	var s ComponentSet
	s = s.With(Component6D).With(Component3D).With(ComponentType(40))
	require.Equal(t, []ComponentType{Component3D, Component6D}, s.Types())
	require.Equal(t, "3d,6d", s.String())
	require.False(t, s.Has(ComponentType(40)))
}

func TestPacketJSON(t *testing.T) {
	p, err := Decode(body(9, 3, component(Component3D, wire{}.u32(1).u16(0).u16(0).f32(1, 2, 3))))
	require.NoError(t, err)
	out, err := json.Marshal(p)
	require.NoError(t, err)
	require.JSONEq(t, `{"timestamp":9,"frame_number":3,"components":[
		{"type":"3d","data":{"drop_rate":0,"out_of_sync_rate":0,"markers":[{"x":1,"y":2,"z":3}]}}
	]}`, string(out))
}

func TestParseComponentSet(t *testing.T) {
	set, err := ParseComponentSet("3D, 6deuler analog")
	require.NoError(t, err)
	require.Equal(t, "3d,analog,6deuler", set.String())

	empty, err := ParseComponentSet(" , ")
	require.NoError(t, err)
	require.Zero(t, empty)

	_, err = ParseComponentSet("3d,lasers")
	require.ErrorContains(t, err, "lasers")
}

func TestPacketJSONNonFiniteAsNull(t *testing.T) {
	nan := float32(math.NaN())
	markers := wire{}.u32(2).u16(0).u16(0).f32(1, 2, 3).f32(nan, nan, nan)
	bodies := wire{}.u32(1).u16(0).u16(0).
		f32(nan, nan, nan).
		f32(nan, nan, nan, nan, nan, nan, nan, nan, nan).
		f32(float32(math.Inf(1)))
	p, err := Decode(body(9, 4, component(Component3D, markers), component(Component6DRes, bodies)))
	require.NoError(t, err)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	require.JSONEq(t, `{"timestamp":9,"frame_number":4,"components":[
		{"type":"3d","data":{"drop_rate":0,"out_of_sync_rate":0,"markers":[
			{"x":1,"y":2,"z":3},
			{"x":null,"y":null,"z":null}
		]}},
		{"type":"6dres","data":{"drop_rate":0,"out_of_sync_rate":0,"bodies":[
			{"position":[null,null,null],
			 "rotation":[null,null,null,null,null,null,null,null,null],
			 "residual":null}
		]}}
	]}`, string(out))
}

func TestJSONFloatMatchesEncodingJSON(t *testing.T) {
	for _, v := range []float32{0, 1.5, -0.25, 1e-3, 1e-7, 3.4e38, 100000, float32(math.Pi)} {
		want, err := json.Marshal(v)
		require.NoError(t, err)
		got, err := json.Marshal(jsonFloat(v))
		require.NoError(t, err)
		require.Equal(t, string(want), string(got), "value %v", v)
	}
}
