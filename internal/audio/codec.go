package audio

import "errors"

// softwareCodec is the portable PCM passthrough backend, used until real
// Opus/AAC bindings are integrated — same placeholder posture as
// video.softwareEncoder.
type softwareCodec struct{}

// NewSoftwareEncoder returns the portable encoder backend.
func NewSoftwareEncoder() EncoderBackend { return softwareCodec{} }

// NewSoftwareDecoder returns the portable decoder backend.
func NewSoftwareDecoder() DecoderBackend { return softwareCodec{} }

func (softwareCodec) Encode(b PCMBlock) ([]byte, uint32, error) {
	if len(b.Samples) == 0 {
		return nil, 0, errors.New("audio: empty PCM block")
	}
	out := make([]byte, len(b.Samples))
	copy(out, b.Samples)
	return out, uint32(len(b.Samples) / 2), nil // 16-bit samples, mono frame size
}

func (softwareCodec) Decode(data []byte, frameSizePerChannel uint32) (PCMBlock, error) {
	if len(data) == 0 {
		return PCMBlock{}, errors.New("audio: empty encoded frame")
	}
	out := make([]byte, len(data))
	copy(out, data)
	return PCMBlock{Samples: out}, nil
}

func (softwareCodec) Close() error { return nil }
