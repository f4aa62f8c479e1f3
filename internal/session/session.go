// Package session implements one peer-to-peer session (spec §3, §4.10):
// the reader/writer tasks around a Transport, the Mux and Negotiator bound
// to it, and the push sinks gated on negotiation (I5).
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mirrorx/endpoint/internal/logging"
	"github.com/mirrorx/endpoint/internal/mux"
	"github.com/mirrorx/endpoint/internal/negotiate"
	"github.com/mirrorx/endpoint/internal/transport"
	"github.com/mirrorx/endpoint/internal/wire"
	"github.com/mirrorx/endpoint/internal/workerpool"
)

var log = logging.L("session")

const outboundQueueSize = 128

var ErrOutboundFull = errors.New("session: outbound queue full")

// VideoSink and AudioSink receive pushed media frames. They are nil until
// the negotiation that produces them completes successfully (I5): a frame
// arriving before then is dropped.
type VideoSink func(wire.VideoFrame) error
type AudioSink func(wire.AudioFrame) error

// Session is the single active connection to one remote peer id (I3). It
// owns the Transport, the Mux built on top of it, and the Negotiator.
type Session struct {
	PeerID string

	transport *transport.Transport
	mux       *mux.Mux
	Negotiate *negotiate.Negotiator

	outbound chan wire.Envelope

	videoSink atomic.Value // VideoSink
	audioSink atomic.Value // AudioSink

	isActive atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	onClose func(*Session)
}

// New wraps an already-handshaked Transport for peerID. pool is the ad-hoc
// request-handler pool shared with the Mux.
func New(peerID string, tr *transport.Transport, pool *workerpool.Pool) *Session {
	s := &Session{
		PeerID:    peerID,
		transport: tr,
		outbound:  make(chan wire.Envelope, outboundQueueSize),
		done:      make(chan struct{}),
	}
	s.isActive.Store(true)
	s.mux = mux.New(s, pool)
	s.Negotiate = negotiate.New(s.mux)
	return s
}

// Send implements mux.Sender: it enqueues onto the outbound channel (the
// back-pressure point of §4.1/§5) rather than blocking the caller.
func (s *Session) Send(env wire.Envelope) error {
	if !s.isActive.Load() {
		return mux.ErrClosed
	}
	select {
	case s.outbound <- env:
		return nil
	default:
		return ErrOutboundFull
	}
}

// SetVideoSink and SetAudioSink install the push destinations once
// negotiation finishes; the active side calls them after its Negotiate.Run
// has returned successfully.
func (s *Session) SetVideoSink(sink VideoSink) { s.videoSink.Store(sink) }
func (s *Session) SetAudioSink(sink AudioSink) { s.audioSink.Store(sink) }

// Mux exposes the multiplexer for registering handlers/sinks outside
// negotiation (file transfer, input injection).
func (s *Session) Mux() *mux.Mux { return s.mux }

// PushVideo and PushAudio are used by the capture/encode pipeline (§4.6,
// §4.7) to emit frames once streaming has started.
func (s *Session) PushVideo(frame wire.VideoFrame) error { return s.mux.Push(frame) }
func (s *Session) PushAudio(frame wire.AudioFrame) error { return s.mux.Push(frame) }

// Done returns a channel closed when the session has torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// IsActive reports whether the session is still up.
func (s *Session) IsActive() bool { return s.isActive.Load() }

// Run starts the reader and writer tasks and blocks until one of them
// fails, ctx is canceled, or Stop is called from elsewhere. It always
// tears the session down before returning.
func (s *Session) Run(ctx context.Context) error {
	s.wg.Add(2)
	errCh := make(chan error, 2)

	go func() {
		defer s.wg.Done()
		errCh <- s.readLoop(ctx)
	}()
	go func() {
		defer s.wg.Done()
		errCh <- s.writeLoop(ctx)
	}()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		runErr = ctx.Err()
	case <-s.done:
	}
	s.Stop()
	return runErr
}

func (s *Session) readLoop(ctx context.Context) error {
	for {
		select {
		case <-s.done:
			return nil
		default:
		}

		plaintext, err := s.transport.ReadFrame()
		if err != nil {
			return fmt.Errorf("session: read: %w", err)
		}

		env, err := wire.Decode(plaintext)
		if err != nil {
			log.Warn("dropping malformed frame", logging.KeyPeerID, s.PeerID, logging.KeyError, err)
			continue
		}

		if env.Type == wire.TypePush {
			switch p := env.Payload.(type) {
			case wire.VideoFrame:
				if sink, ok := s.videoSink.Load().(VideoSink); ok && sink != nil {
					if err := sink(p); err != nil {
						log.Warn("video sink error", logging.KeyPeerID, s.PeerID, logging.KeyError, err)
					}
				}
				continue
			case wire.AudioFrame:
				if sink, ok := s.audioSink.Load().(AudioSink); ok && sink != nil {
					if err := sink(p); err != nil {
						log.Warn("audio sink error", logging.KeyPeerID, s.PeerID, logging.KeyError, err)
					}
				}
				continue
			}
		}

		s.mux.Dispatch(ctx, env)
	}
}

func (s *Session) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-s.done:
			return nil
		case env := <-s.outbound:
			plaintext, err := wire.Encode(env)
			if err != nil {
				log.Warn("failed to encode outbound envelope", logging.KeyPeerID, s.PeerID, logging.KeyError, err)
				continue
			}
			if err := s.transport.WriteFrame(plaintext); err != nil {
				return fmt.Errorf("session: write: %w", err)
			}
		}
	}
}

// Stop tears the session down idempotently (I4): closing done first
// unblocks the writer, closing the transport unblocks a pending ReadFrame,
// then we wait for both loops to exit before releasing the Mux's pending
// calls and notifying the registry.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.isActive.Store(false)
		close(s.done)
		_ = s.transport.Close()
		s.wg.Wait()

		s.mux.Close()
		if s.onClose != nil {
			s.onClose(s)
		}
		log.Info("session stopped", logging.KeyPeerID, s.PeerID)
	})
}
