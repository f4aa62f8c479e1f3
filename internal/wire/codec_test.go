package wire

import (
	"bytes"
	"reflect"
	"testing"
)

func roundTrip(t *testing.T, e Envelope) Envelope {
	t.Helper()
	data, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return got
}

func TestRoundTripRequestResponsePush(t *testing.T) {
	cases := []Envelope{
		{Type: TypeRequest, HasCallID: true, CallID: 42, Payload: NegotiateMonitorRequest{}},
		{Type: TypeResponse, HasCallID: true, CallID: 42, Payload: NegotiateFinishedResponse{AppliedFrameRate: 30}},
		{Type: TypePush, Payload: VideoFrame{SPS: []byte{1, 2}, PPS: []byte{3}, Data: bytes.Repeat([]byte{0xAB}, 64)}},
	}
	for _, want := range cases {
		got := roundTrip(t, want)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round trip mismatch:\n got  %#v\n want %#v", got, want)
		}
	}
}

func TestRoundTripAllMessageVariants(t *testing.T) {
	msgs := []Message{
		HandshakeRequest{ActivePeerID: "0000000001", PassivePeerID: "0000000002"},
		HandshakeResponse{Accepted: true},
		NegotiateParamsRequest{
			Codecs: []Codec{CodecH264, CodecHEVC}, MaxSampleRate: 48000,
			SampleFormats: []SampleFormat{SampleFormatI16, SampleFormatF32}, DualChannel: true,
		},
		NegotiateParamsResponse{
			Codec: CodecH264, SampleRate: 48000, SampleFormat: SampleFormatF32,
			DualChannel: true, OS: "linux", OSVersion: "6.1",
		},
		NegotiateMonitorResponse{Monitors: []MonitorDescription{
			{ID: "DISPLAY-0", Name: "Primary", RefreshHz: 60, Width: 1920, Height: 1080, Primary: true, Screenshot: []byte{0xFF, 0xD8}},
		}},
		NegotiateFinishedRequest{SelectedMonitorID: "DISPLAY-0", ExpectedFrameRate: 60},
		AudioFrame{Data: []byte{1, 2, 3}, FrameSizePerChannel: 960, ElapsedMicros: 123456},
		Input{Event: InputEvent{Kind: InputMouseMove, X: 0.5, Y: 0.25}},
		Input{Event: InputEvent{Kind: InputScrollWheel, Delta: -3}},
		DownloadFileRequest{ID: "t1", Path: "/etc/hostname"},
		DownloadFileReply{ID: "t1", Size: 9},
		FileChunk{ID: "t1", Seq: 0, Data: []byte("payload"), Last: true},
		FileTransferError{ID: "t1", Message: "peer closed stream"},
		Error{Message: "unknown handler"},
	}

	for _, m := range msgs {
		env := Envelope{Type: TypePush, Payload: m}
		got := roundTrip(t, env)
		if !reflect.DeepEqual(got.Payload, m) {
			t.Fatalf("round trip mismatch for %T:\n got  %#v\n want %#v", m, got.Payload, m)
		}
	}
}

func TestEnvelopeShapeInvariant(t *testing.T) {
	_, err := Encode(Envelope{Type: TypeRequest, HasCallID: false, Payload: Error{}})
	if err == nil {
		t.Fatal("expected error encoding Request without call_id")
	}

	_, err = Encode(Envelope{Type: TypePush, HasCallID: true, CallID: 1, Payload: Error{}})
	if err == nil {
		t.Fatal("expected error encoding Push with call_id")
	}
}

func TestDecodeShortBufferIsProtocolError(t *testing.T) {
	_, err := Decode([]byte{0, 1})
	if err == nil {
		t.Fatal("expected error decoding truncated envelope")
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	data, err := Encode(Envelope{Type: TypePush, Payload: Error{Message: "x"}})
	if err != nil {
		t.Fatal(err)
	}
	// Corrupt the tag byte (position 2: type, has_call_id, tag).
	data[2] = 0xFE
	if _, err := Decode(data); err == nil {
		t.Fatal("expected error for unknown tag")
	}
}
