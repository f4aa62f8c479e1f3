package video

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mirrorx/endpoint/internal/wire"
)

type fakeDuplicator struct {
	mu    sync.Mutex
	count int
}

func (f *fakeDuplicator) Capture() (Frame, error) {
	f.mu.Lock()
	f.count++
	n := f.count
	f.mu.Unlock()
	return Frame{Width: 4, Height: 2, Y: []byte{byte(n)}, U: []byte{0}, V: []byte{0}}, nil
}
func (f *fakeDuplicator) Close() error { return nil }

type recordingPusher struct {
	mu     sync.Mutex
	frames []wire.VideoFrame
}

func (r *recordingPusher) PushVideo(f wire.VideoFrame) error {
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

func TestSoftwareEncodeDecodeRoundTrip(t *testing.T) {
	enc := NewSoftwareEncoder(2)
	dec := NewSoftwareDecoder()

	frame := Frame{Width: 10, Height: 20, Y: []byte{1, 2, 3}, U: []byte{4}, V: []byte{5}}

	data, sps, pps, keyframe, err := enc.Encode(frame)
	if err != nil {
		t.Fatal(err)
	}
	if !keyframe || len(sps) == 0 || len(pps) == 0 {
		t.Fatalf("expected first frame to be a keyframe with SPS/PPS, got keyframe=%v sps=%v pps=%v", keyframe, sps, pps)
	}

	decoded, err := dec.Decode(data, sps, pps)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Width != 10 || decoded.Height != 20 {
		t.Fatalf("expected dimensions recovered from SPS/PPS, got %dx%d", decoded.Width, decoded.Height)
	}
}

func TestCaptureEncodePipelinePushesFrames(t *testing.T) {
	dup := &fakeDuplicator{}
	enc := NewSoftwareEncoder(60)
	pusher := &recordingPusher{}

	pipeline := NewCaptureEncodePipeline(dup, enc, pusher, 100) // fast tick for the test
	ctx, cancel := context.WithCancel(context.Background())
	pipeline.Start(ctx)

	time.Sleep(150 * time.Millisecond)
	cancel()
	pipeline.Stop()

	if pusher.len() == 0 {
		t.Fatal("expected at least one pushed video frame")
	}
}

func TestDecodeRenderPipelineDeliversToSink(t *testing.T) {
	dec := NewSoftwareDecoder()
	rendered := make(chan Frame, 4)

	pipeline := NewDecodeRenderPipeline(dec, func(f Frame) { rendered <- f })
	ctx, cancel := context.WithCancel(context.Background())
	pipeline.Start(ctx)
	defer func() { cancel(); pipeline.Stop() }()

	enc := NewSoftwareEncoder(1)
	data, sps, pps, _, err := enc.Encode(Frame{Width: 5, Height: 5, Y: []byte{1, 2, 3}})
	if err != nil {
		t.Fatal(err)
	}

	if err := pipeline.OnVideoFrame(wire.VideoFrame{Data: data, SPS: sps, PPS: pps}); err != nil {
		t.Fatal(err)
	}

	select {
	case f := <-rendered:
		if f.Width != 5 || f.Height != 5 {
			t.Fatalf("unexpected rendered frame: %#v", f)
		}
	case <-time.After(time.Second):
		t.Fatal("frame never reached render sink")
	}
}
