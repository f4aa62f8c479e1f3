package video

import "errors"

// softwareEncoder is the portable fallback backend, used when no hardware
// encoder is available. It packs planar YUV
// directly into the access unit as a placeholder until real H.264/HEVC
// bindings are integrated, mirroring the teacher's softwareEncoder
// passthrough shape (encoder_software.go).
type softwareEncoder struct {
	keyframeEvery int
	count         int
}

// NewSoftwareEncoder returns the portable backend. keyframeEvery controls
// how often SPS/PPS are re-emitted (every Nth frame is treated as a
// keyframe).
func NewSoftwareEncoder(keyframeEvery int) EncoderBackend {
	if keyframeEvery <= 0 {
		keyframeEvery = 60
	}
	return &softwareEncoder{keyframeEvery: keyframeEvery}
}

func (s *softwareEncoder) Encode(f Frame) ([]byte, []byte, []byte, bool, error) {
	if len(f.Y) == 0 {
		return nil, nil, nil, false, errors.New("video: empty frame")
	}

	data := make([]byte, 0, len(f.Y)+len(f.U)+len(f.V))
	data = append(data, f.Y...)
	data = append(data, f.U...)
	data = append(data, f.V...)

	keyframe := s.count%s.keyframeEvery == 0
	s.count++

	if !keyframe {
		return data, nil, nil, false, nil
	}
	sps := []byte{0x67, byte(f.Width >> 8), byte(f.Width)}
	pps := []byte{0x68, byte(f.Height >> 8), byte(f.Height)}
	return data, sps, pps, true, nil
}

func (s *softwareEncoder) Close() error { return nil }

// softwareDecoder is the inverse placeholder: it treats the access unit as
// the raw planar payload it was produced from, using SPS/PPS to recover
// the frame dimensions on a reconfiguration cue (spec §4.6).
type softwareDecoder struct {
	width, height int
}

func NewSoftwareDecoder() DecoderBackend { return &softwareDecoder{} }

func (d *softwareDecoder) Decode(data, sps, pps []byte) (Frame, error) {
	if len(sps) >= 3 {
		d.width = int(sps[1])<<8 | int(sps[2])
	}
	if len(pps) >= 3 {
		d.height = int(pps[1])<<8 | int(pps[2])
	}
	if len(data) == 0 {
		return Frame{}, errors.New("video: empty access unit")
	}

	third := len(data) / 3
	if third == 0 {
		third = len(data)
	}
	y := data[:third]
	var u, v []byte
	if 2*third <= len(data) {
		u = data[third : 2*third]
		v = data[2*third:]
	}
	return Frame{Width: d.width, Height: d.height, Y: y, U: u, V: v}, nil
}

func (d *softwareDecoder) Close() error { return nil }
