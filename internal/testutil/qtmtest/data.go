package qtmtest

import (
	"encoding/binary"
	"math"
)

// Markers3DBody builds a Data frame body with one labelled 3D block.
func Markers3DBody(timestamp uint64, frameNumber uint32, markers ...[3]float32) []byte {
	payload := binary.LittleEndian.AppendUint32(nil, uint32(len(markers)))
	payload = binary.LittleEndian.AppendUint16(payload, 0)
	payload = binary.LittleEndian.AppendUint16(payload, 0)
	for _, m := range markers {
		for _, v := range m {
			payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(v))
		}
	}

	out := binary.LittleEndian.AppendUint64(nil, timestamp)
	out = binary.LittleEndian.AppendUint32(out, frameNumber)
	out = binary.LittleEndian.AppendUint32(out, 1)
	out = binary.LittleEndian.AppendUint32(out, uint32(8+len(payload)))
	out = binary.LittleEndian.AppendUint32(out, 1)
	return append(out, payload...)
}
