package packet

// Record strides in bytes, used to bound counts before allocating.
const (
	stride3D         = 12
	stride3DNoLabels = 16
	stride6D         = 48
	stride6DEuler    = 24
	stride2DMarker   = 12
	strideForce      = 36
	strideGaze       = 24
	strideEye        = 8
	strideTimecode   = 12
	strideSegment    = 32
	residualLen      = 4
)

func decode3D(c *cursor, kind ComponentType) *Markers3D {
	out := &Markers3D{Type: kind}
	count := c.u32("marker count")
	out.DropRate = c.u16("drop rate")
	out.OutOfSyncRate = c.u16("out of sync rate")
	stride := stride3D
	if out.HasResiduals() {
		stride += residualLen
	}
	if !c.fits(count, stride, "markers") {
		return out
	}
	out.Markers = make([]Marker3D, count)
	for i := range out.Markers {
		m := &out.Markers[i]
		m.X, m.Y, m.Z = c.f32("x"), c.f32("y"), c.f32("z")
		if out.HasResiduals() {
			m.Residual = c.f32("residual")
		}
	}
	return out
}

func decode3DNoLabels(c *cursor, kind ComponentType) *Markers3DNoLabels {
	out := &Markers3DNoLabels{Type: kind}
	count := c.u32("marker count")
	out.DropRate = c.u16("drop rate")
	out.OutOfSyncRate = c.u16("out of sync rate")
	stride := stride3DNoLabels
	if out.HasResiduals() {
		stride += residualLen
	}
	if !c.fits(count, stride, "markers") {
		return out
	}
	out.Markers = make([]UnlabeledMarker, count)
	for i := range out.Markers {
		m := &out.Markers[i]
		m.X, m.Y, m.Z = c.f32("x"), c.f32("y"), c.f32("z")
		m.ID = c.u32("id")
		if out.HasResiduals() {
			m.Residual = c.f32("residual")
		}
	}
	return out
}

func decode6D(c *cursor, kind ComponentType) *Bodies6D {
	out := &Bodies6D{Type: kind}
	count := c.u32("body count")
	out.DropRate = c.u16("drop rate")
	out.OutOfSyncRate = c.u16("out of sync rate")
	stride := stride6D
	if out.HasResiduals() {
		stride += residualLen
	}
	if !c.fits(count, stride, "bodies") {
		return out
	}
	out.Bodies = make([]Body6D, count)
	for i := range out.Bodies {
		b := &out.Bodies[i]
		b.Position = c.vec3("position")
		for j := range b.Rotation {
			b.Rotation[j] = c.f32("rotation")
		}
		if out.HasResiduals() {
			b.Residual = c.f32("residual")
		}
	}
	return out
}

func decode6DEuler(c *cursor, kind ComponentType) *Bodies6DEuler {
	out := &Bodies6DEuler{Type: kind}
	count := c.u32("body count")
	out.DropRate = c.u16("drop rate")
	out.OutOfSyncRate = c.u16("out of sync rate")
	stride := stride6DEuler
	if out.HasResiduals() {
		stride += residualLen
	}
	if !c.fits(count, stride, "bodies") {
		return out
	}
	out.Bodies = make([]Body6DEuler, count)
	for i := range out.Bodies {
		b := &out.Bodies[i]
		b.Position = c.vec3("position")
		b.Angles = c.vec3("angles")
		if out.HasResiduals() {
			b.Residual = c.f32("residual")
		}
	}
	return out
}

func decode2D(c *cursor, kind ComponentType) *Markers2D {
	out := &Markers2D{Type: kind}
	count := c.u32("camera count")
	out.DropRate = c.u16("drop rate")
	out.OutOfSyncRate = c.u16("out of sync rate")
	if !c.fits(count, 5, "cameras") {
		return out
	}
	out.Cameras = make([]Camera2D, count)
	for i := range out.Cameras {
		cam := &out.Cameras[i]
		markers := c.u32("camera marker count")
		cam.Status = c.u8("camera status")
		if !c.fits(markers, stride2DMarker, "2d markers") {
			return out
		}
		cam.Markers = make([]Marker2D, markers)
		for j := range cam.Markers {
			m := &cam.Markers[j]
			m.X, m.Y = c.u32("x"), c.u32("y")
			m.DiameterX, m.DiameterY = c.u16("diameter x"), c.u16("diameter y")
		}
	}
	return out
}

func decodeAnalog(c *cursor) *Analog {
	out := &Analog{}
	count := c.u32("device count")
	if !c.fits(count, 12, "analog devices") {
		return out
	}
	out.Devices = make([]AnalogDevice, count)
	for i := range out.Devices {
		d := &out.Devices[i]
		d.ID = c.u32("device id")
		channels := c.u32("channel count")
		d.SampleCount = c.u32("sample count")
		if c.err != nil {
			return out
		}
		if d.SampleCount == 0 {
			continue
		}
		d.SampleNumber = c.u32("sample number")
		if !c.fits(channels, int(min(d.SampleCount, 1<<24))*4, "analog samples") {
			return out
		}
		d.Channels = make([][]float32, channels)
		for ch := range d.Channels {
			d.Channels[ch] = c.f32s(int(d.SampleCount), "analog samples")
		}
	}
	return out
}

func decodeAnalogSingle(c *cursor) *AnalogSingle {
	out := &AnalogSingle{}
	count := c.u32("device count")
	if !c.fits(count, 8, "analog devices") {
		return out
	}
	out.Devices = make([]AnalogSingleDevice, count)
	for i := range out.Devices {
		d := &out.Devices[i]
		d.ID = c.u32("device id")
		channels := c.u32("channel count")
		if !c.fits(channels, 4, "analog channels") {
			return out
		}
		d.Channels = c.f32s(int(channels), "analog channels")
	}
	return out
}

func decodeForceSample(c *cursor) ForceSample {
	return ForceSample{
		Force:            c.vec3("force"),
		Moment:           c.vec3("moment"),
		ApplicationPoint: c.vec3("application point"),
	}
}

func decodeForce(c *cursor) *Force {
	out := &Force{}
	count := c.u32("plate count")
	if !c.fits(count, 12, "force plates") {
		return out
	}
	out.Plates = make([]ForcePlate, count)
	for i := range out.Plates {
		p := &out.Plates[i]
		p.ID = c.u32("plate id")
		forces := c.u32("force count")
		p.ForceNumber = c.u32("force number")
		if !c.fits(forces, strideForce, "forces") {
			return out
		}
		p.Forces = make([]ForceSample, forces)
		for j := range p.Forces {
			p.Forces[j] = decodeForceSample(c)
		}
	}
	return out
}

func decodeForceSingle(c *cursor) *ForceSingle {
	out := &ForceSingle{}
	count := c.u32("plate count")
	if !c.fits(count, 4+strideForce, "force plates") {
		return out
	}
	out.Plates = make([]ForcePlateSingle, count)
	for i := range out.Plates {
		out.Plates[i].ID = c.u32("plate id")
		out.Plates[i].Force = decodeForceSample(c)
	}
	return out
}

func decodeImages(c *cursor) *Images {
	out := &Images{}
	count := c.u32("image count")
	if !c.fits(count, 36, "images") {
		return out
	}
	out.Images = make([]Image, count)
	for i := range out.Images {
		img := &out.Images[i]
		img.CameraID = c.u32("camera id")
		img.Format = c.u32("format")
		img.Width, img.Height = c.u32("width"), c.u32("height")
		img.LeftCrop, img.TopCrop = c.f32("left crop"), c.f32("top crop")
		img.RightCrop, img.BottomCrop = c.f32("right crop"), c.f32("bottom crop")
		size := c.u32("image size")
		if !c.fits(size, 1, "image data") {
			return out
		}
		img.Data = c.bytes(int(size), "image data")
	}
	return out
}

func decodeGazeVectors(c *cursor) *GazeVectors {
	out := &GazeVectors{}
	count := c.u32("vector count")
	if !c.fits(count, 4, "gaze vectors") {
		return out
	}
	out.Vectors = make([]GazeVector, count)
	for i := range out.Vectors {
		v := &out.Vectors[i]
		samples := c.u32("sample count")
		if samples == 0 || c.err != nil {
			continue
		}
		v.SampleNumber = c.u32("sample number")
		if !c.fits(samples, strideGaze, "gaze samples") {
			return out
		}
		v.Samples = make([]GazeSample, samples)
		for j := range v.Samples {
			v.Samples[j] = GazeSample{Gaze: c.vec3("gaze"), Position: c.vec3("position")}
		}
	}
	return out
}

func decodeEyeTrackers(c *cursor) *EyeTrackers {
	out := &EyeTrackers{}
	count := c.u32("device count")
	if !c.fits(count, 4, "eye trackers") {
		return out
	}
	out.Devices = make([]EyeTracker, count)
	for i := range out.Devices {
		d := &out.Devices[i]
		samples := c.u32("sample count")
		if samples == 0 || c.err != nil {
			continue
		}
		d.SampleNumber = c.u32("sample number")
		if !c.fits(samples, strideEye, "eye samples") {
			return out
		}
		d.Samples = make([]EyeSample, samples)
		for j := range d.Samples {
			d.Samples[j] = EyeSample{LeftPupil: c.f32("left pupil"), RightPupil: c.f32("right pupil")}
		}
	}
	return out
}

func decodeTimecodes(c *cursor) *Timecodes {
	out := &Timecodes{}
	count := c.u32("timecode count")
	if !c.fits(count, strideTimecode, "timecodes") {
		return out
	}
	out.Timecodes = make([]Timecode, count)
	for i := range out.Timecodes {
		out.Timecodes[i] = Timecode{Type: c.u32("type"), Hi: c.u32("hi"), Lo: c.u32("lo")}
	}
	return out
}

func decodeSkeletons(c *cursor) *Skeletons {
	out := &Skeletons{}
	count := c.u32("skeleton count")
	if !c.fits(count, 4, "skeletons") {
		return out
	}
	out.Skeletons = make([]Skeleton, count)
	for i := range out.Skeletons {
		segments := c.u32("segment count")
		if !c.fits(segments, strideSegment, "segments") {
			return out
		}
		s := &out.Skeletons[i]
		s.Segments = make([]Segment, segments)
		for j := range s.Segments {
			seg := &s.Segments[j]
			seg.ID = c.u32("segment id")
			seg.Position = c.vec3("position")
			seg.Rotation = [4]float32{c.f32("qx"), c.f32("qy"), c.f32("qz"), c.f32("qw")}
		}
	}
	return out
}
