// Package wire defines the MirrorX envelope and message types and their
// deterministic binary encoding (spec §4.3).
package wire

// EnvelopeType discriminates the three kinds of framed traffic.
type EnvelopeType uint8

const (
	TypeRequest EnvelopeType = iota
	TypeResponse
	TypePush
)

// Envelope is the outermost record carried by one sealed transport frame.
type Envelope struct {
	Type      EnvelopeType
	HasCallID bool
	CallID    uint16 // only meaningful when HasCallID is true
	Payload   Message
}

// Message is the tagged union of payload kinds. Every concrete message type
// in this package implements it by exposing its own Tag.
type Message interface {
	Tag() MessageTag
}

// MessageTag is the fixed-width wire discriminant for a Message variant.
type MessageTag uint8

const (
	TagHandshakeRequest MessageTag = iota
	TagHandshakeResponse
	TagNegotiateParamsRequest
	TagNegotiateParamsResponse
	TagNegotiateMonitorRequest
	TagNegotiateMonitorResponse
	TagNegotiateFinishedRequest
	TagNegotiateFinishedResponse
	TagVideoFrame
	TagAudioFrame
	TagInput
	TagDownloadFileRequest
	TagDownloadFileReply
	TagSendFileRequest
	TagSendFileReply
	TagFileChunk
	TagFileTransferError
	TagError
)

// --- Handshake (§4.2; carried in-band for re-negotiation, not the prelude) ---

type HandshakeRequest struct {
	ActivePeerID  string
	PassivePeerID string
}

func (HandshakeRequest) Tag() MessageTag { return TagHandshakeRequest }

type HandshakeResponse struct {
	Accepted bool
}

func (HandshakeResponse) Tag() MessageTag { return TagHandshakeResponse }

// --- Negotiation (§4.5) ---

type Codec uint8

const (
	CodecH264 Codec = iota
	CodecHEVC
	CodecVP8
	CodecVP9
)

type SampleFormat uint8

const (
	SampleFormatI16 SampleFormat = iota
	SampleFormatF32
)

type NegotiateParamsRequest struct {
	Codecs        []Codec // ordered by active's preference
	MaxSampleRate uint32  // Hz
	SampleFormats []SampleFormat
	DualChannel   bool
}

func (NegotiateParamsRequest) Tag() MessageTag { return TagNegotiateParamsRequest }

type NegotiateParamsResponse struct {
	Codec        Codec
	SampleRate   uint32
	SampleFormat SampleFormat
	DualChannel  bool
	OS           string
	OSVersion    string
}

func (NegotiateParamsResponse) Tag() MessageTag { return TagNegotiateParamsResponse }

type NegotiateMonitorRequest struct{}

func (NegotiateMonitorRequest) Tag() MessageTag { return TagNegotiateMonitorRequest }

type MonitorDescription struct {
	ID         string
	Name       string
	RefreshHz  uint8
	Width      uint16
	Height     uint16
	Primary    bool
	Screenshot []byte // JPEG or PNG
}

type NegotiateMonitorResponse struct {
	Monitors []MonitorDescription
}

func (NegotiateMonitorResponse) Tag() MessageTag { return TagNegotiateMonitorResponse }

type NegotiateFinishedRequest struct {
	SelectedMonitorID string
	ExpectedFrameRate uint8
}

func (NegotiateFinishedRequest) Tag() MessageTag { return TagNegotiateFinishedRequest }

type NegotiateFinishedResponse struct {
	AppliedFrameRate uint8
}

func (NegotiateFinishedResponse) Tag() MessageTag { return TagNegotiateFinishedResponse }

// --- Media (§4.6, §4.7) ---

type VideoFrame struct {
	SPS  []byte // present only on a keyframe carrying H.264/HEVC parameter sets
	PPS  []byte
	Data []byte // encoded access unit
}

func (VideoFrame) Tag() MessageTag { return TagVideoFrame }

type AudioFrame struct {
	Data                []byte
	FrameSizePerChannel uint32 // samples
	ElapsedMicros       uint64 // since session epoch
}

func (AudioFrame) Tag() MessageTag { return TagAudioFrame }

// --- Input (§4.8) ---

type InputKind uint8

const (
	InputMouseMove InputKind = iota
	InputMouseDown
	InputMouseUp
	InputScrollWheel
	InputKeyDown
	InputKeyUp
)

type MouseButton uint8

const (
	MouseButtonNone MouseButton = iota
	MouseButtonLeft
	MouseButtonRight
	MouseButtonMiddle
)

// InputEvent is the flattened sum of MouseEvent{Up,Down,Move,ScrollWheel} and
// KeyboardEvent{KeyUp,KeyDown}. X/Y are normalized to [0,1]; Delta is a
// scroll tick count; Key is a platform-independent key code.
type InputEvent struct {
	Kind   InputKind
	Button MouseButton
	X, Y   float32
	Delta  int32
	Key    uint32
}

type Input struct {
	Event InputEvent
}

func (Input) Tag() MessageTag { return TagInput }

// --- File transfer (§4.9) ---

type DownloadFileRequest struct {
	ID   string
	Path string
}

func (DownloadFileRequest) Tag() MessageTag { return TagDownloadFileRequest }

type DownloadFileReply struct {
	ID   string
	Size uint64
}

func (DownloadFileReply) Tag() MessageTag { return TagDownloadFileReply }

type SendFileRequest struct {
	ID   string
	Path string
	Size uint64
}

func (SendFileRequest) Tag() MessageTag { return TagSendFileRequest }

type SendFileReply struct {
	ID       string
	Accepted bool
}

func (SendFileReply) Tag() MessageTag { return TagSendFileReply }

// FileChunk carries one piece of a transfer's payload, pushed after the
// requester has had time to subscribe (§4.9's 1s settle delay).
type FileChunk struct {
	ID   string
	Seq  uint32
	Data []byte
	Last bool
}

func (FileChunk) Tag() MessageTag { return TagFileChunk }

type FileTransferError struct {
	ID      string
	Message string
}

func (FileTransferError) Tag() MessageTag { return TagFileTransferError }

// --- Generic error response ---

type Error struct {
	Message string
}

func (Error) Tag() MessageTag { return TagError }
