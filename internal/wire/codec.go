package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Errors returned by Decode are Protocol-kind per spec §7: fatal to the
// frame that produced them, never to the session.
var (
	ErrShortBuffer  = errors.New("wire: buffer too short")
	ErrUnknownTag   = errors.New("wire: unknown message tag")
	ErrBadEnvelope  = errors.New("wire: call_id required for Request/Response, forbidden for Push")
	ErrBlobTooLarge = errors.New("wire: blob length exceeds remaining buffer")
)

// Encode serializes an envelope to its deterministic binary form. It is
// total: any structurally valid Envelope produces bytes, never an error,
// except when the call_id/type pairing violates the envelope invariant.
func Encode(e Envelope) ([]byte, error) {
	if err := validateEnvelopeShape(e); err != nil {
		return nil, err
	}

	w := newWriter(64 + estimatePayloadSize(e.Payload))
	w.u8(uint8(e.Type))
	if e.HasCallID {
		w.u8(1)
		w.u16(e.CallID)
	} else {
		w.u8(0)
	}
	w.u8(uint8(e.Payload.Tag()))
	if err := encodePayload(w, e.Payload); err != nil {
		return nil, err
	}
	return w.bytes(), nil
}

func validateEnvelopeShape(e Envelope) error {
	switch e.Type {
	case TypeRequest, TypeResponse:
		if !e.HasCallID {
			return fmt.Errorf("%w: type=%d", ErrBadEnvelope, e.Type)
		}
	case TypePush:
		if e.HasCallID {
			return fmt.Errorf("%w: type=Push", ErrBadEnvelope)
		}
	default:
		return fmt.Errorf("wire: unknown envelope type %d", e.Type)
	}
	return nil
}

// Decode deserializes one envelope from a plaintext frame body. Failure is
// fatal to the frame, not the session (§4.3, §7).
func Decode(data []byte) (Envelope, error) {
	r := newReader(data)

	typ, err := r.u8()
	if err != nil {
		return Envelope{}, err
	}

	hasCallID, err := r.u8()
	if err != nil {
		return Envelope{}, err
	}

	var callID uint16
	if hasCallID == 1 {
		callID, err = r.u16()
		if err != nil {
			return Envelope{}, err
		}
	}

	e := Envelope{
		Type:      EnvelopeType(typ),
		HasCallID: hasCallID == 1,
		CallID:    callID,
	}
	if err := validateEnvelopeShape(e); err != nil {
		return Envelope{}, err
	}

	tag, err := r.u8()
	if err != nil {
		return Envelope{}, err
	}

	payload, err := decodePayload(r, MessageTag(tag))
	if err != nil {
		return Envelope{}, err
	}
	e.Payload = payload
	return e, nil
}

func encodePayload(w *writer, m Message) error {
	switch v := m.(type) {
	case HandshakeRequest:
		w.str(v.ActivePeerID)
		w.str(v.PassivePeerID)
	case HandshakeResponse:
		w.bool(v.Accepted)
	case NegotiateParamsRequest:
		w.u8(uint8(len(v.Codecs)))
		for _, c := range v.Codecs {
			w.u8(uint8(c))
		}
		w.u32(v.MaxSampleRate)
		w.u8(uint8(len(v.SampleFormats)))
		for _, f := range v.SampleFormats {
			w.u8(uint8(f))
		}
		w.bool(v.DualChannel)
	case NegotiateParamsResponse:
		w.u8(uint8(v.Codec))
		w.u32(v.SampleRate)
		w.u8(uint8(v.SampleFormat))
		w.bool(v.DualChannel)
		w.str(v.OS)
		w.str(v.OSVersion)
	case NegotiateMonitorRequest:
		// no fields
	case NegotiateMonitorResponse:
		w.u16(uint16(len(v.Monitors)))
		for _, mon := range v.Monitors {
			w.str(mon.ID)
			w.str(mon.Name)
			w.u8(mon.RefreshHz)
			w.u16(mon.Width)
			w.u16(mon.Height)
			w.bool(mon.Primary)
			w.blob(mon.Screenshot)
		}
	case NegotiateFinishedRequest:
		w.str(v.SelectedMonitorID)
		w.u8(v.ExpectedFrameRate)
	case NegotiateFinishedResponse:
		w.u8(v.AppliedFrameRate)
	case VideoFrame:
		w.blob(v.SPS)
		w.blob(v.PPS)
		w.blob(v.Data)
	case AudioFrame:
		w.blob(v.Data)
		w.u32(v.FrameSizePerChannel)
		w.u64(v.ElapsedMicros)
	case Input:
		w.u8(uint8(v.Event.Kind))
		w.u8(uint8(v.Event.Button))
		w.f32(v.Event.X)
		w.f32(v.Event.Y)
		w.i32(v.Event.Delta)
		w.u32(v.Event.Key)
	case DownloadFileRequest:
		w.str(v.ID)
		w.str(v.Path)
	case DownloadFileReply:
		w.str(v.ID)
		w.u64(v.Size)
	case SendFileRequest:
		w.str(v.ID)
		w.str(v.Path)
		w.u64(v.Size)
	case SendFileReply:
		w.str(v.ID)
		w.bool(v.Accepted)
	case FileChunk:
		w.str(v.ID)
		w.u32(v.Seq)
		w.blob(v.Data)
		w.bool(v.Last)
	case FileTransferError:
		w.str(v.ID)
		w.str(v.Message)
	case Error:
		w.str(v.Message)
	default:
		return fmt.Errorf("wire: encode: %w: %T", ErrUnknownTag, m)
	}
	return nil
}

func decodePayload(r *reader, tag MessageTag) (Message, error) {
	switch tag {
	case TagHandshakeRequest:
		active, err := r.str()
		if err != nil {
			return nil, err
		}
		passive, err := r.str()
		if err != nil {
			return nil, err
		}
		return HandshakeRequest{ActivePeerID: active, PassivePeerID: passive}, nil

	case TagHandshakeResponse:
		ok, err := r.boolean()
		if err != nil {
			return nil, err
		}
		return HandshakeResponse{Accepted: ok}, nil

	case TagNegotiateParamsRequest:
		n, err := r.u8()
		if err != nil {
			return nil, err
		}
		codecs := make([]Codec, n)
		for i := range codecs {
			c, err := r.u8()
			if err != nil {
				return nil, err
			}
			codecs[i] = Codec(c)
		}
		maxRate, err := r.u32()
		if err != nil {
			return nil, err
		}
		nf, err := r.u8()
		if err != nil {
			return nil, err
		}
		formats := make([]SampleFormat, nf)
		for i := range formats {
			f, err := r.u8()
			if err != nil {
				return nil, err
			}
			formats[i] = SampleFormat(f)
		}
		dual, err := r.boolean()
		if err != nil {
			return nil, err
		}
		return NegotiateParamsRequest{Codecs: codecs, MaxSampleRate: maxRate, SampleFormats: formats, DualChannel: dual}, nil

	case TagNegotiateParamsResponse:
		codec, err := r.u8()
		if err != nil {
			return nil, err
		}
		rate, err := r.u32()
		if err != nil {
			return nil, err
		}
		format, err := r.u8()
		if err != nil {
			return nil, err
		}
		dual, err := r.boolean()
		if err != nil {
			return nil, err
		}
		osName, err := r.str()
		if err != nil {
			return nil, err
		}
		osVersion, err := r.str()
		if err != nil {
			return nil, err
		}
		return NegotiateParamsResponse{
			Codec: Codec(codec), SampleRate: rate, SampleFormat: SampleFormat(format),
			DualChannel: dual, OS: osName, OSVersion: osVersion,
		}, nil

	case TagNegotiateMonitorRequest:
		return NegotiateMonitorRequest{}, nil

	case TagNegotiateMonitorResponse:
		n, err := r.u16()
		if err != nil {
			return nil, err
		}
		monitors := make([]MonitorDescription, n)
		for i := range monitors {
			id, err := r.str()
			if err != nil {
				return nil, err
			}
			name, err := r.str()
			if err != nil {
				return nil, err
			}
			refresh, err := r.u8()
			if err != nil {
				return nil, err
			}
			width, err := r.u16()
			if err != nil {
				return nil, err
			}
			height, err := r.u16()
			if err != nil {
				return nil, err
			}
			primary, err := r.boolean()
			if err != nil {
				return nil, err
			}
			shot, err := r.blob()
			if err != nil {
				return nil, err
			}
			monitors[i] = MonitorDescription{
				ID: id, Name: name, RefreshHz: refresh, Width: width, Height: height,
				Primary: primary, Screenshot: shot,
			}
		}
		return NegotiateMonitorResponse{Monitors: monitors}, nil

	case TagNegotiateFinishedRequest:
		id, err := r.str()
		if err != nil {
			return nil, err
		}
		fps, err := r.u8()
		if err != nil {
			return nil, err
		}
		return NegotiateFinishedRequest{SelectedMonitorID: id, ExpectedFrameRate: fps}, nil

	case TagNegotiateFinishedResponse:
		fps, err := r.u8()
		if err != nil {
			return nil, err
		}
		return NegotiateFinishedResponse{AppliedFrameRate: fps}, nil

	case TagVideoFrame:
		sps, err := r.blob()
		if err != nil {
			return nil, err
		}
		pps, err := r.blob()
		if err != nil {
			return nil, err
		}
		data, err := r.blob()
		if err != nil {
			return nil, err
		}
		return VideoFrame{SPS: sps, PPS: pps, Data: data}, nil

	case TagAudioFrame:
		data, err := r.blob()
		if err != nil {
			return nil, err
		}
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		elapsed, err := r.u64()
		if err != nil {
			return nil, err
		}
		return AudioFrame{Data: data, FrameSizePerChannel: size, ElapsedMicros: elapsed}, nil

	case TagInput:
		kind, err := r.u8()
		if err != nil {
			return nil, err
		}
		button, err := r.u8()
		if err != nil {
			return nil, err
		}
		x, err := r.f32()
		if err != nil {
			return nil, err
		}
		y, err := r.f32()
		if err != nil {
			return nil, err
		}
		delta, err := r.i32()
		if err != nil {
			return nil, err
		}
		key, err := r.u32()
		if err != nil {
			return nil, err
		}
		return Input{Event: InputEvent{
			Kind: InputKind(kind), Button: MouseButton(button), X: x, Y: y, Delta: delta, Key: key,
		}}, nil

	case TagDownloadFileRequest:
		id, err := r.str()
		if err != nil {
			return nil, err
		}
		path, err := r.str()
		if err != nil {
			return nil, err
		}
		return DownloadFileRequest{ID: id, Path: path}, nil

	case TagDownloadFileReply:
		id, err := r.str()
		if err != nil {
			return nil, err
		}
		size, err := r.u64()
		if err != nil {
			return nil, err
		}
		return DownloadFileReply{ID: id, Size: size}, nil

	case TagSendFileRequest:
		id, err := r.str()
		if err != nil {
			return nil, err
		}
		path, err := r.str()
		if err != nil {
			return nil, err
		}
		size, err := r.u64()
		if err != nil {
			return nil, err
		}
		return SendFileRequest{ID: id, Path: path, Size: size}, nil

	case TagSendFileReply:
		id, err := r.str()
		if err != nil {
			return nil, err
		}
		ok, err := r.boolean()
		if err != nil {
			return nil, err
		}
		return SendFileReply{ID: id, Accepted: ok}, nil

	case TagFileChunk:
		id, err := r.str()
		if err != nil {
			return nil, err
		}
		seq, err := r.u32()
		if err != nil {
			return nil, err
		}
		data, err := r.blob()
		if err != nil {
			return nil, err
		}
		last, err := r.boolean()
		if err != nil {
			return nil, err
		}
		return FileChunk{ID: id, Seq: seq, Data: data, Last: last}, nil

	case TagFileTransferError:
		id, err := r.str()
		if err != nil {
			return nil, err
		}
		msg, err := r.str()
		if err != nil {
			return nil, err
		}
		return FileTransferError{ID: id, Message: msg}, nil

	case TagError:
		msg, err := r.str()
		if err != nil {
			return nil, err
		}
		return Error{Message: msg}, nil

	default:
		return nil, fmt.Errorf("wire: decode: %w: %d", ErrUnknownTag, tag)
	}
}

func estimatePayloadSize(m Message) int {
	switch v := m.(type) {
	case VideoFrame:
		return len(v.SPS) + len(v.PPS) + len(v.Data) + 16
	case AudioFrame:
		return len(v.Data) + 16
	case FileChunk:
		return len(v.Data) + 16
	default:
		return 32
	}
}

// --- low-level byte writer/reader ---

type writer struct {
	buf []byte
}

func newWriter(capHint int) *writer {
	return &writer{buf: make([]byte, 0, capHint)}
}

func (w *writer) bytes() []byte { return w.buf }

func (w *writer) u8(v uint8) { w.buf = append(w.buf, v) }

func (w *writer) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) i32(v int32) { w.u32(uint32(v)) }

func (w *writer) f32(v float32) { w.u32(math.Float32bits(v)) }

func (w *writer) bool(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) blob(b []byte) {
	w.u32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) str(s string) { w.blob([]byte(s)) }

type reader struct {
	buf []byte
	pos int
}

func newReader(b []byte) *reader { return &reader{buf: b} }

func (r *reader) need(n int) error {
	if len(r.buf)-r.pos < n {
		return ErrShortBuffer
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) f32() (float32, error) {
	v, err := r.u32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *reader) boolean() (bool, error) {
	v, err := r.u8()
	return v != 0, err
}

func (r *reader) blob() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, ErrBlobTooLarge
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return b, nil
}

func (r *reader) str() (string, error) {
	b, err := r.blob()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
