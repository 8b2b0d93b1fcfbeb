package packet

import (
	"fmt"
	"strings"
)

// ComponentType is the u32 kind code in a component header.
type ComponentType uint32

const (
	Component3D            ComponentType = 1
	Component3DNoLabels    ComponentType = 2
	ComponentAnalog        ComponentType = 3
	ComponentForce         ComponentType = 4
	Component6D            ComponentType = 5
	Component6DEuler       ComponentType = 6
	Component2D            ComponentType = 7
	Component2DLin         ComponentType = 8
	Component3DRes         ComponentType = 9
	Component3DNoLabelsRes ComponentType = 10
	Component6DRes         ComponentType = 11
	Component6DEulerRes    ComponentType = 12
	ComponentAnalogSingle  ComponentType = 13
	ComponentImage         ComponentType = 14
	ComponentForceSingle   ComponentType = 15
	ComponentGazeVector    ComponentType = 16
	ComponentTimecode      ComponentType = 17
	ComponentSkeleton      ComponentType = 18
	ComponentEyeTracker    ComponentType = 19
)

const maxKnownComponent = ComponentEyeTracker

var componentNames = map[ComponentType]string{
	Component3D:            "3d",
	Component3DNoLabels:    "3dnolabels",
	ComponentAnalog:        "analog",
	ComponentForce:         "force",
	Component6D:            "6d",
	Component6DEuler:       "6deuler",
	Component2D:            "2d",
	Component2DLin:         "2dlin",
	Component3DRes:         "3dres",
	Component3DNoLabelsRes: "3dnolabelsres",
	Component6DRes:         "6dres",
	Component6DEulerRes:    "6deulerres",
	ComponentAnalogSingle:  "analogsingle",
	ComponentImage:         "image",
	ComponentForceSingle:   "forcesingle",
	ComponentGazeVector:    "gazevector",
	ComponentTimecode:      "timecode",
	ComponentSkeleton:      "skeleton",
	ComponentEyeTracker:    "eyetracker",
}

func (t ComponentType) String() string {
	if name, ok := componentNames[t]; ok {
		return name
	}
	return fmt.Sprintf("component(%d)", uint32(t))
}

// Known reports whether the decoder has a typed record layout for t.
func (t ComponentType) Known() bool {
	return t >= Component3D && t <= maxKnownComponent
}

// ComponentSet is a bitmask of the component kinds present in one frame,
// built from the headers the server actually sent. Bit n is kind n; kinds
// above 31 are recorded only as Unknown blocks.
type ComponentSet uint32

func (s ComponentSet) Has(t ComponentType) bool {
	return t < 32 && s&(1<<t) != 0
}

func (s ComponentSet) With(t ComponentType) ComponentSet {
	if t >= 32 {
		return s
	}
	return s | 1<<t
}

// Types lists the kinds in ascending code order.
func (s ComponentSet) Types() []ComponentType {
	var out []ComponentType
	for t := ComponentType(0); t < 32; t++ {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s ComponentSet) String() string {
	types := s.Types()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.String())
	}
	return strings.Join(names, ",")
}

// ParseComponentSet accepts kind names separated by commas or spaces, in
// any case, e.g. "3d,6DEuler analog".
func ParseComponentSet(raw string) (ComponentSet, error) {
	var set ComponentSet
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	for _, field := range fields {
		t, ok := componentByName[strings.ToLower(field)]
		if !ok {
			return 0, fmt.Errorf("packet: unknown component %q", field)
		}
		set = set.With(t)
	}
	return set, nil
}

var componentByName = func() map[string]ComponentType {
	out := make(map[string]ComponentType, len(componentNames))
	for t, name := range componentNames {
		out[name] = t
	}
	return out
}()

// Component is one decoded block. The set of implementations is closed;
// Unknown carries kinds without a typed layout.
type Component interface {
	Kind() ComponentType
	component()
}

// Marker3D is one labeled marker. Residual is zero unless the block has
// residuals.
type Marker3D struct {
	X        float32 `json:"x"`
	Y        float32 `json:"y"`
	Z        float32 `json:"z"`
	Residual float32 `json:"residual,omitempty"`
}

// Markers3D decodes 3d and 3dres.
type Markers3D struct {
	Type          ComponentType `json:"-"`
	DropRate      uint16        `json:"drop_rate"`
	OutOfSyncRate uint16        `json:"out_of_sync_rate"`
	Markers       []Marker3D    `json:"markers"`
}

func (c *Markers3D) HasResiduals() bool { return c.Type == Component3DRes }

type UnlabeledMarker struct {
	ID       uint32  `json:"id"`
	X        float32 `json:"x"`
	Y        float32 `json:"y"`
	Z        float32 `json:"z"`
	Residual float32 `json:"residual,omitempty"`
}

// Markers3DNoLabels decodes 3dnolabels and 3dnolabelsres.
type Markers3DNoLabels struct {
	Type          ComponentType     `json:"-"`
	DropRate      uint16            `json:"drop_rate"`
	OutOfSyncRate uint16            `json:"out_of_sync_rate"`
	Markers       []UnlabeledMarker `json:"markers"`
}

func (c *Markers3DNoLabels) HasResiduals() bool { return c.Type == Component3DNoLabelsRes }

// Body6D is a rigid body pose with a row-major 3x3 rotation matrix.
type Body6D struct {
	Position [3]float32 `json:"position"`
	Rotation [9]float32 `json:"rotation"`
	Residual float32    `json:"residual,omitempty"`
}

// Bodies6D decodes 6d and 6dres.
type Bodies6D struct {
	Type          ComponentType `json:"-"`
	DropRate      uint16        `json:"drop_rate"`
	OutOfSyncRate uint16        `json:"out_of_sync_rate"`
	Bodies        []Body6D      `json:"bodies"`
}

func (c *Bodies6D) HasResiduals() bool { return c.Type == Component6DRes }

type Body6DEuler struct {
	Position [3]float32 `json:"position"`
	Angles   [3]float32 `json:"angles"`
	Residual float32    `json:"residual,omitempty"`
}

// Bodies6DEuler decodes 6deuler and 6deulerres.
type Bodies6DEuler struct {
	Type          ComponentType `json:"-"`
	DropRate      uint16        `json:"drop_rate"`
	OutOfSyncRate uint16        `json:"out_of_sync_rate"`
	Bodies        []Body6DEuler `json:"bodies"`
}

func (c *Bodies6DEuler) HasResiduals() bool { return c.Type == Component6DEulerRes }

type Marker2D struct {
	X         uint32 `json:"x"`
	Y         uint32 `json:"y"`
	DiameterX uint16 `json:"diameter_x"`
	DiameterY uint16 `json:"diameter_y"`
}

type Camera2D struct {
	Status  uint8      `json:"status"`
	Markers []Marker2D `json:"markers"`
}

// Markers2D decodes 2d and 2dlin.
type Markers2D struct {
	Type          ComponentType `json:"-"`
	DropRate      uint16        `json:"drop_rate"`
	OutOfSyncRate uint16        `json:"out_of_sync_rate"`
	Cameras       []Camera2D    `json:"cameras"`
}

// AnalogDevice holds channel-major samples: Channels[ch][sample]. A device
// may deliver several samples per frame.
type AnalogDevice struct {
	ID           uint32      `json:"id"`
	SampleCount  uint32      `json:"sample_count"`
	SampleNumber uint32      `json:"sample_number"`
	Channels     [][]float32 `json:"channels"`
}

type Analog struct {
	Devices []AnalogDevice `json:"devices"`
}

type AnalogSingleDevice struct {
	ID       uint32    `json:"id"`
	Channels []float32 `json:"channels"`
}

type AnalogSingle struct {
	Devices []AnalogSingleDevice `json:"devices"`
}

type ForceSample struct {
	Force            [3]float32 `json:"force"`
	Moment           [3]float32 `json:"moment"`
	ApplicationPoint [3]float32 `json:"application_point"`
}

type ForcePlate struct {
	ID          uint32        `json:"id"`
	ForceNumber uint32        `json:"force_number"`
	Forces      []ForceSample `json:"forces"`
}

type Force struct {
	Plates []ForcePlate `json:"plates"`
}

type ForcePlateSingle struct {
	ID    uint32      `json:"id"`
	Force ForceSample `json:"force"`
}

type ForceSingle struct {
	Plates []ForcePlateSingle `json:"plates"`
}

type Image struct {
	CameraID   uint32  `json:"camera_id"`
	Format     uint32  `json:"format"`
	Width      uint32  `json:"width"`
	Height     uint32  `json:"height"`
	LeftCrop   float32 `json:"left_crop"`
	TopCrop    float32 `json:"top_crop"`
	RightCrop  float32 `json:"right_crop"`
	BottomCrop float32 `json:"bottom_crop"`
	Data       []byte  `json:"data,omitempty"`
}

type Images struct {
	Images []Image `json:"images"`
}

type GazeSample struct {
	Gaze     [3]float32 `json:"gaze"`
	Position [3]float32 `json:"position"`
}

type GazeVector struct {
	SampleNumber uint32       `json:"sample_number"`
	Samples      []GazeSample `json:"samples"`
}

type GazeVectors struct {
	Vectors []GazeVector `json:"vectors"`
}

type EyeSample struct {
	LeftPupil  float32 `json:"left_pupil"`
	RightPupil float32 `json:"right_pupil"`
}

type EyeTracker struct {
	SampleNumber uint32      `json:"sample_number"`
	Samples      []EyeSample `json:"samples"`
}

type EyeTrackers struct {
	Devices []EyeTracker `json:"devices"`
}

type Timecode struct {
	Type uint32 `json:"type"`
	Hi   uint32 `json:"hi"`
	Lo   uint32 `json:"lo"`
}

type Timecodes struct {
	Timecodes []Timecode `json:"timecodes"`
}

// Segment rotation is a quaternion (x, y, z, w).
type Segment struct {
	ID       uint32     `json:"id"`
	Position [3]float32 `json:"position"`
	Rotation [4]float32 `json:"rotation"`
}

type Skeleton struct {
	Segments []Segment `json:"segments"`
}

type Skeletons struct {
	Skeletons []Skeleton `json:"skeletons"`
}

// Unknown is a well-formed block of a kind without a typed layout.
type Unknown struct {
	Type ComponentType `json:"type"`
	Raw  []byte        `json:"raw"`
}

func (c *Markers3D) Kind() ComponentType         { return c.Type }
func (c *Markers3DNoLabels) Kind() ComponentType { return c.Type }
func (c *Bodies6D) Kind() ComponentType          { return c.Type }
func (c *Bodies6DEuler) Kind() ComponentType     { return c.Type }
func (c *Markers2D) Kind() ComponentType         { return c.Type }
func (c *Analog) Kind() ComponentType            { return ComponentAnalog }
func (c *AnalogSingle) Kind() ComponentType      { return ComponentAnalogSingle }
func (c *Force) Kind() ComponentType             { return ComponentForce }
func (c *ForceSingle) Kind() ComponentType       { return ComponentForceSingle }
func (c *Images) Kind() ComponentType            { return ComponentImage }
func (c *GazeVectors) Kind() ComponentType       { return ComponentGazeVector }
func (c *EyeTrackers) Kind() ComponentType       { return ComponentEyeTracker }
func (c *Timecodes) Kind() ComponentType         { return ComponentTimecode }
func (c *Skeletons) Kind() ComponentType         { return ComponentSkeleton }
func (c *Unknown) Kind() ComponentType           { return c.Type }

func (*Markers3D) component()         {}
func (*Markers3DNoLabels) component() {}
func (*Bodies6D) component()          {}
func (*Bodies6DEuler) component()     {}
func (*Markers2D) component()         {}
func (*Analog) component()            {}
func (*AnalogSingle) component()      {}
func (*Force) component()             {}
func (*ForceSingle) component()       {}
func (*Images) component()            {}
func (*GazeVectors) component()       {}
func (*EyeTrackers) component()       {}
func (*Timecodes) component()         {}
func (*Skeletons) component()         {}
func (*Unknown) component()           {}
