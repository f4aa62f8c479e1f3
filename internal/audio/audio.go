// Package audio implements the capture→encode (passive side) and
// decode→playback (active side) pipelines (spec §4.7), symmetrical to
// internal/video but with a ring buffer at the playback sink for
// continuous output.
package audio

import (
	"context"
	"sync"
	"time"

	"github.com/mirrorx/endpoint/internal/logging"
	"github.com/mirrorx/endpoint/internal/wire"
)

var log = logging.L("audio")

// pcmChannelCapacity holds ~100ms of 48kHz/2ch PCM per spec §4.7.
const pcmChannelCapacity = 100

// playbackPullInterval and playbackChunkBytes govern the cadence at which
// the playback sink drains the ring buffer, decoupled from decode arrival
// jitter (§4.7).
const (
	playbackPullInterval = 20 * time.Millisecond
	playbackChunkBytes   = 3840 // ~20ms of 48kHz/16-bit/2ch PCM
)

// PCMBlock is one block of captured raw samples before encoding.
type PCMBlock struct {
	Samples       []byte
	ElapsedMicros uint64
}

// Capturer yields PCM blocks from the system's audio input/loopback
// device, mirroring the teacher's callback-driven AudioCapturer contract
// (audio.go): Start hands each block to the callback, which feeds the
// bounded PCM channel of the pipeline here.
type Capturer interface {
	Start(callback func(PCMBlock)) error
	Stop()
}

// EncoderBackend turns PCM blocks into encoded AudioFrame payloads.
type EncoderBackend interface {
	Encode(b PCMBlock) (data []byte, frameSizePerChannel uint32, err error)
	Close() error
}

// DecoderBackend is the inverse.
type DecoderBackend interface {
	Decode(data []byte, frameSizePerChannel uint32) (PCMBlock, error)
	Close() error
}

// PlaybackSink is the UI-provided callback that consumes decoded PCM for
// continuous output.
type PlaybackSink func(PCMBlock)

// Pusher is the narrow surface PushAudio needs from a session.
type Pusher interface {
	PushAudio(wire.AudioFrame) error
}

// CaptureEncodePipeline runs the passive side. The PCM channel drops the
// oldest block when full to keep end-to-end latency bounded (§4.7
// "Overruns drop oldest PCM blocks at the producer").
type CaptureEncodePipeline struct {
	cap    Capturer
	enc    EncoderBackend
	pusher Pusher

	pcmCh chan PCMBlock

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

func NewCaptureEncodePipeline(cap Capturer, enc EncoderBackend, pusher Pusher) *CaptureEncodePipeline {
	return &CaptureEncodePipeline{
		cap:    cap,
		enc:    enc,
		pusher: pusher,
		pcmCh:  make(chan PCMBlock, pcmChannelCapacity),
		stop:   make(chan struct{}),
	}
}

func (p *CaptureEncodePipeline) Start(ctx context.Context) error {
	if err := p.cap.Start(p.onPCM); err != nil {
		return err
	}
	p.wg.Add(1)
	go p.encodeLoop(ctx)
	return nil
}

func (p *CaptureEncodePipeline) Stop() {
	p.cap.Stop()
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
	_ = p.enc.Close()
}

// onPCM is the capturer's callback; it offers the block to the bounded
// channel, dropping the oldest queued block on overrun.
func (p *CaptureEncodePipeline) onPCM(b PCMBlock) {
	select {
	case p.pcmCh <- b:
	default:
		select {
		case <-p.pcmCh:
		default:
		}
		select {
		case p.pcmCh <- b:
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
		case block := <-p.pcmCh:
			data, frameSize, err := p.enc.Encode(block)
			if err != nil {
				log.Warn("audio encode failed", logging.KeyError, err)
				continue
			}
			frame := wire.AudioFrame{Data: data, FrameSizePerChannel: frameSize, ElapsedMicros: block.ElapsedMicros}
			if err := p.pusher.PushAudio(frame); err != nil {
				log.Warn("audio push dropped", logging.KeyError, err)
			}
		}
	}
}

// RingBuffer is a fixed-capacity byte ring used by DecodeRenderPipeline to
// smooth jittery decoded PCM arrival for continuous playback.
type RingBuffer struct {
	mu   sync.Mutex
	buf  []byte
	head int
	size int
}

func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{buf: make([]byte, capacity)}
}

// Write appends data, overwriting the oldest bytes if the buffer is full.
func (r *RingBuffer) Write(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range data {
		idx := (r.head + r.size) % len(r.buf)
		r.buf[idx] = b
		if r.size < len(r.buf) {
			r.size++
		} else {
			r.head = (r.head + 1) % len(r.buf)
		}
	}
}

// Read drains up to len(out) bytes in write order, returning the count
// actually read.
func (r *RingBuffer) Read(out []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(out)
	if n > r.size {
		n = r.size
	}
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	r.head = (r.head + n) % len(r.buf)
	r.size -= n
	return n
}

// DecodeRenderPipeline runs the active side: decode incoming AudioFrame
// pushes into a ring buffer, consumed by the playback callback.
type DecodeRenderPipeline struct {
	dec  DecoderBackend
	ring *RingBuffer
	sink PlaybackSink

	decodeCh chan wire.AudioFrame
	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

func NewDecodeRenderPipeline(dec DecoderBackend, ringCapacity int, sink PlaybackSink) *DecodeRenderPipeline {
	return &DecodeRenderPipeline{
		dec:      dec,
		ring:     NewRingBuffer(ringCapacity),
		sink:     sink,
		decodeCh: make(chan wire.AudioFrame, pcmChannelCapacity),
		stop:     make(chan struct{}),
	}
}

func (p *DecodeRenderPipeline) Start(ctx context.Context) {
	p.wg.Add(2)
	go p.decodeLoop(ctx)
	go p.playbackLoop(ctx)
}

func (p *DecodeRenderPipeline) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
	_ = p.dec.Close()
}

// OnAudioFrame is the session's AudioSink.
func (p *DecodeRenderPipeline) OnAudioFrame(f wire.AudioFrame) error {
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
		case af := <-p.decodeCh:
			block, err := p.dec.Decode(af.Data, af.FrameSizePerChannel)
			if err != nil {
				log.Warn("audio decode failed", logging.KeyError, err)
				continue
			}
			p.ring.Write(block.Samples)
		}
	}
}

// playbackLoop drains the ring buffer on its own cadence so playback output
// is smooth even when decoded blocks arrive in bursts.
func (p *DecodeRenderPipeline) playbackLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(playbackPullInterval)
	defer ticker.Stop()
	buf := make([]byte, playbackChunkBytes)
	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := p.ring.Read(buf)
			if n == 0 || p.sink == nil {
				continue
			}
			samples := make([]byte, n)
			copy(samples, buf[:n])
			p.sink(PCMBlock{Samples: samples})
		}
	}
}
