package mux

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mirrorx/endpoint/internal/wire"
	"github.com/mirrorx/endpoint/internal/workerpool"
)

// loopbackSender feeds every sent envelope back into a paired Mux's
// Dispatch, simulating two endpoints wired directly together without a
// real transport.
type loopbackSender struct {
	mu     sync.Mutex
	peer   *Mux
	queue  chan wire.Envelope
	closed bool
}

func newLoopback(capacity int) *loopbackSender {
	return &loopbackSender{queue: make(chan wire.Envelope, capacity)}
}

func (s *loopbackSender) Send(e wire.Envelope) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case s.queue <- e:
		return nil
	default:
		return ErrTransport
	}
}

func (s *loopbackSender) pump() {
	for e := range s.queue {
		s.peer.Dispatch(context.Background(), e)
	}
}

func newConnectedPair(t *testing.T) (a, b *Mux) {
	t.Helper()
	pool := workerpool.New(4, 16)
	t.Cleanup(func() { pool.Drain(context.Background()) })

	sendToB := newLoopback(128)
	sendToA := newLoopback(128)

	a = New(sendToB, pool)
	b = New(sendToA, pool)
	sendToB.peer = b
	sendToA.peer = a

	go sendToB.pump()
	go sendToA.pump()

	t.Cleanup(func() {
		close(sendToB.queue)
		close(sendToA.queue)
	})
	return a, b
}

func TestCallReply(t *testing.T) {
	active, passive := newConnectedPair(t)

	passive.Handle(wire.TagNegotiateMonitorRequest, func(ctx context.Context, payload wire.Message) wire.Message {
		return wire.NegotiateMonitorResponse{Monitors: []wire.MonitorDescription{{ID: "DISPLAY-0", Primary: true}}}
	})

	resp, err := active.Call(context.Background(), wire.NegotiateMonitorRequest{}, time.Second)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	mresp, ok := resp.(wire.NegotiateMonitorResponse)
	if !ok || len(mresp.Monitors) != 1 || mresp.Monitors[0].ID != "DISPLAY-0" {
		t.Fatalf("unexpected response: %#v", resp)
	}
}

func TestCallTimeoutThenLateReplyDropped(t *testing.T) {
	active, passive := newConnectedPair(t)

	release := make(chan struct{})
	passive.Handle(wire.TagNegotiateFinishedRequest, func(ctx context.Context, payload wire.Message) wire.Message {
		<-release // simulate a slow handler
		return wire.NegotiateFinishedResponse{AppliedFrameRate: 30}
	})

	start := time.Now()
	_, err := active.Call(context.Background(), wire.NegotiateFinishedRequest{}, 100*time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("took too long to time out: %v", elapsed)
	}

	close(release) // let the late reply flow; SetReply must drop it silently
	time.Sleep(50 * time.Millisecond)
}

func TestUnknownHandlerProducesErrorResponse(t *testing.T) {
	active, _ := newConnectedPair(t)
	// No handler registered on the passive side's pair for this tag.
	resp, err := active.Call(context.Background(), wire.FileTransferError{ID: "x"}, time.Second)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if _, ok := resp.(wire.Error); !ok {
		t.Fatalf("expected wire.Error response, got %#v", resp)
	}
}

func TestResponseWithNoMatchingCallIDIsDropped(t *testing.T) {
	pool := workerpool.New(1, 4)
	defer pool.Drain(context.Background())
	m := New(newLoopback(4), pool)

	// No panic, no block: SetReply for an id that was never issued.
	m.SetReply(999, wire.Error{Message: "orphan"})
}

func TestPushDispatchToSink(t *testing.T) {
	active, passive := newConnectedPair(t)

	received := make(chan wire.VideoFrame, 1)
	passive.Sink(wire.TagVideoFrame, func(m wire.Message) {
		received <- m.(wire.VideoFrame)
	})

	if err := active.Push(wire.VideoFrame{Data: []byte{1, 2, 3}}); err != nil {
		t.Fatalf("Push: %v", err)
	}

	select {
	case vf := <-received:
		if len(vf.Data) != 3 {
			t.Fatalf("unexpected frame: %#v", vf)
		}
	case <-time.After(time.Second):
		t.Fatal("push never reached sink")
	}
}
