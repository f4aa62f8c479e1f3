// Package video implements the capture→encode (passive side) and
// decode→render (active side) pipelines (spec §4.6), wired over a
// session's Mux as VideoFrame Push envelopes.
package video

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mirrorx/endpoint/internal/logging"
	"github.com/mirrorx/endpoint/internal/wire"
)

var log = logging.L("video")

// Back-pressure capacities from spec §5: capture→encode is newest-wins at
// capacity 1; encode→decode and decode→render are oldest-drop at 16.
const (
	captureChannelCapacity = 1
	codecChannelCapacity   = 16
)

// Frame is one raw captured picture: planar luminance+chrominance bytes and
// a capture timestamp in monotonic microseconds since the pipeline's epoch.
type Frame struct {
	Width, Height int
	Y, U, V       []byte
	TimestampUs   int64
}

// Duplicator yields raw frames at the negotiated cadence. Implementations
// are platform-specific (DXGI on Windows ticker-pulled, push-driven on
// macOS), mirroring the teacher's ScreenCapturer contract.
type Duplicator interface {
	Capture() (Frame, error)
	Close() error
}

// EncoderBackend turns raw frames into encoded access units, mirroring the
// teacher's encoderBackend contract (encoder.go).
type EncoderBackend interface {
	Encode(f Frame) (data []byte, sps, pps []byte, keyframe bool, err error)
	Close() error
}

// DecoderBackend is the inverse: encoded access units in, raw frames out.
type DecoderBackend interface {
	Decode(data, sps, pps []byte) (Frame, error)
	Close() error
}

// RenderSink is the UI-provided callback that consumes decoded frames
// (spec §4.6 Renderer, opaque sink — see the base spec's UI section).
type RenderSink func(Frame)

// Pusher is the narrow surface PushVideo needs from a session.
type Pusher interface {
	PushVideo(wire.VideoFrame) error
}

// CaptureEncodePipeline runs the passive side: pull frames from dup at
// frameRate Hz (ticker-paced; a push-driven Duplicator may ignore the
// ticker and feed the bounded channel directly), encode each, and push the
// result. When the capture channel is full, the queued frame is discarded in
// favour of the newest one rather than blocking, so a slow encoder never
// stalls the duplicator (§4.6).
type CaptureEncodePipeline struct {
	dup       Duplicator
	enc       EncoderBackend
	pusher    Pusher
	frameRate uint8

	captureCh chan Frame
	wg        sync.WaitGroup
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewCaptureEncodePipeline(dup Duplicator, enc EncoderBackend, pusher Pusher, frameRate uint8) *CaptureEncodePipeline {
	if frameRate == 0 {
		frameRate = 30
	}
	return &CaptureEncodePipeline{
		dup:       dup,
		enc:       enc,
		pusher:    pusher,
		frameRate: frameRate,
		captureCh: make(chan Frame, captureChannelCapacity),
		stop:      make(chan struct{}),
	}
}

// Start launches the ticker-driven capture loop and the encode loop. Call
// Stop to tear both down.
func (p *CaptureEncodePipeline) Start(ctx context.Context) {
	p.wg.Add(2)
	go p.captureLoop(ctx)
	go p.encodeLoop(ctx)
}

func (p *CaptureEncodePipeline) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
	_ = p.dup.Close()
	_ = p.enc.Close()
}

func (p *CaptureEncodePipeline) captureLoop(ctx context.Context) {
	defer p.wg.Done()
	interval := time.Second / time.Duration(p.frameRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, err := p.dup.Capture()
			if err != nil {
				log.Warn("capture failed", logging.KeyError, err)
				continue
			}
			p.offerFrame(frame)
		}
	}
}

// offerFrame implements the newest-wins drop policy: if the channel is
// full, drain the stale frame before enqueueing the new one.
func (p *CaptureEncodePipeline) offerFrame(f Frame) {
	select {
	case p.captureCh <- f:
	default:
		select {
		case <-p.captureCh:
		default:
		}
		select {
		case p.captureCh <- f:
		default:
		}
	}
}

func (p *CaptureEncodePipeline) encodeLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case frame := <-p.captureCh:
			data, sps, pps, _, err := p.enc.Encode(frame)
			if err != nil {
				log.Warn("encode failed", logging.KeyError, err)
				continue
			}
			if err := p.pusher.PushVideo(wire.VideoFrame{SPS: sps, PPS: pps, Data: data}); err != nil {
				log.Warn("video push dropped", logging.KeyError, err)
			}
		}
	}
}

// DecodeRenderPipeline runs the active side: a bounded decode channel fed
// by the session's video sink, a decoder, and a bounded render channel
// consumed by the UI sink (spec §4.6 Decoder/Renderer).
type DecodeRenderPipeline struct {
	dec  DecoderBackend
	sink RenderSink

	decodeCh chan wire.VideoFrame
	renderCh chan Frame

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

func NewDecodeRenderPipeline(dec DecoderBackend, sink RenderSink) *DecodeRenderPipeline {
	return &DecodeRenderPipeline{
		dec:      dec,
		sink:     sink,
		decodeCh: make(chan wire.VideoFrame, codecChannelCapacity),
		renderCh: make(chan Frame, codecChannelCapacity),
		stop:     make(chan struct{}),
	}
}

func (p *DecodeRenderPipeline) Start(ctx context.Context) {
	p.wg.Add(2)
	go p.decodeLoop(ctx)
	go p.renderLoop(ctx)
}

func (p *DecodeRenderPipeline) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
	_ = p.dec.Close()
}

// OnVideoFrame is the session's VideoSink: it enqueues onto the bounded
// decode channel, dropping the oldest queued frame if full (oldest-drop
// for media pushes per §5).
func (p *DecodeRenderPipeline) OnVideoFrame(f wire.VideoFrame) error {
	select {
	case p.decodeCh <- f:
		return nil
	default:
		select {
		case <-p.decodeCh:
		default:
		}
		select {
		case p.decodeCh <- f:
		default:
		}
		return nil
	}
}

func (p *DecodeRenderPipeline) decodeLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case vf := <-p.decodeCh:
			frame, err := p.dec.Decode(vf.Data, vf.SPS, vf.PPS)
			if err != nil {
				log.Warn("decode failed", logging.KeyError, err)
				continue
			}
			p.offerRender(frame)
		}
	}
}

// offerRender implements the renderer's "never block the decoder for more
// than one frame" requirement: drop the oldest queued frame if full.
func (p *DecodeRenderPipeline) offerRender(f Frame) {
	select {
	case p.renderCh <- f:
	default:
		select {
		case <-p.renderCh:
		default:
		}
		select {
		case p.renderCh <- f:
		default:
		}
	}
}

func (p *DecodeRenderPipeline) renderLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case frame := <-p.renderCh:
			if p.sink != nil {
				p.sink(frame)
			}
		}
	}
}

var ErrNotImplemented = errors.New("video: backend not implemented on this platform")

func unsupported(op string) error {
	return fmt.Errorf("video: %s: %w", op, ErrNotImplemented)
}
