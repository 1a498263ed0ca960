package utils

import (
	"fmt"
	"math"

	"go.einride.tech/can"
)

// EncodePayload packs physical signal values into the frame's payload bytes.
// Missing signals take their default; every value is clamped to the signal's
// [Min, Max] range and then to what its bit width can hold.
func (fd *FrameDef) EncodePayload(values map[string]float64) ([]byte, error) {
	if fd.DLC <= 0 || fd.DLC > 8 {
		return nil, fmt.Errorf("frame %s has invalid DLC %d", fd.Name, fd.DLC)
	}

	var payload uint64
	for _, s := range fd.Signals {
		v, ok := values[s.Name]
		if !ok {
			v = s.Default
		}
		v = clampFloat(v, s.Min, s.Max)

		raw := int64(math.Round((v - s.Offset) / s.Factor))
		raw = clampRaw(raw, s.BitLength, s.Signed)
		payload = setBits(payload, s.StartBit, s.BitLength, rawToUnsigned(raw, s.BitLength))
	}

	out := make([]byte, fd.DLC)
	for i := 0; i < fd.DLC; i++ {
		out[i] = byte((payload >> (8 * i)) & 0xFF)
	}
	return out, nil
}

// EncodeFrame produces an einride can.Frame ready to transmit.
func (fd *FrameDef) EncodeFrame(values map[string]float64) (can.Frame, error) {
	payload, err := fd.EncodePayload(values)
	if err != nil {
		return can.Frame{}, err
	}

	f := can.Frame{
		ID:         fd.ID,
		Length:     uint8(len(payload)),
		IsExtended: fd.ID > 0x7FF,
	}
	copy(f.Data[:], payload)
	return f, nil
}
