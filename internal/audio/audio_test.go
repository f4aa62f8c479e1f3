package audio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mirrorx/endpoint/internal/wire"
)

func TestRingBufferWriteReadOrder(t *testing.T) {
	r := NewRingBuffer(8)
	r.Write([]byte{1, 2, 3})

	out := make([]byte, 2)
	n := r.Read(out)
	if n != 2 || out[0] != 1 || out[1] != 2 {
		t.Fatalf("unexpected read: n=%d out=%v", n, out)
	}
}

func TestRingBufferOverwritesOldestOnOverflow(t *testing.T) {
	r := NewRingBuffer(4)
	r.Write([]byte{1, 2, 3, 4, 5, 6}) // overflows by 2

	out := make([]byte, 4)
	n := r.Read(out)
	if n != 4 {
		t.Fatalf("expected 4 bytes, got %d", n)
	}
	want := []byte{3, 4, 5, 6}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, out)
		}
	}
}

func TestSoftwareCodecRoundTrip(t *testing.T) {
	enc := NewSoftwareEncoder()
	dec := NewSoftwareDecoder()

	block := PCMBlock{Samples: []byte{1, 2, 3, 4}}
	data, frameSize, err := enc.Encode(block)
	if err != nil {
		t.Fatal(err)
	}
	if frameSize != 2 {
		t.Fatalf("expected frame size 2, got %d", frameSize)
	}

	decoded, err := dec.Decode(data, frameSize)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded.Samples) != 4 {
		t.Fatalf("unexpected decoded samples: %v", decoded.Samples)
	}
}

type fakeCapturer struct {
	mu sync.Mutex
	cb func(PCMBlock)
}

func (f *fakeCapturer) Start(callback func(PCMBlock)) error {
	f.mu.Lock()
	f.cb = callback
	f.mu.Unlock()
	return nil
}
func (f *fakeCapturer) Stop() {}

func (f *fakeCapturer) emit(b PCMBlock) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(b)
	}
}

type recordingPusher struct {
	mu     sync.Mutex
	frames []wire.AudioFrame
}

func (r *recordingPusher) PushAudio(f wire.AudioFrame) error {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
	return nil
}

func (r *recordingPusher) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func TestCaptureEncodePipelinePushesFrames(t *testing.T) {
	cap := &fakeCapturer{}
	enc := NewSoftwareEncoder()
	pusher := &recordingPusher{}

	pipeline := NewCaptureEncodePipeline(cap, enc, pusher)
	ctx, cancel := context.WithCancel(context.Background())
	if err := pipeline.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer func() { cancel(); pipeline.Stop() }()

	cap.emit(PCMBlock{Samples: []byte{1, 2, 3, 4}})

	deadline := time.Now().Add(time.Second)
	for pusher.len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if pusher.len() == 0 {
		t.Fatal("expected at least one pushed audio frame")
	}
}

func TestDecodeRenderPipelineDeliversToSink(t *testing.T) {
	dec := NewSoftwareDecoder()
	received := make(chan PCMBlock, 1)

	pipeline := NewDecodeRenderPipeline(dec, 1024, func(b PCMBlock) { received <- b })
	ctx, cancel := context.WithCancel(context.Background())
	pipeline.Start(ctx)
	defer func() { cancel(); pipeline.Stop() }()

	if err := pipeline.OnAudioFrame(wire.AudioFrame{Data: []byte{9, 9, 9, 9}}); err != nil {
		t.Fatal(err)
	}

	select {
	case b := <-received:
		if len(b.Samples) != 4 {
			t.Fatalf("unexpected samples: %v", b.Samples)
		}
	case <-time.After(time.Second):
		t.Fatal("block never reached playback sink")
	}
}
