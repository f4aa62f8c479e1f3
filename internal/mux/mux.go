// Package mux implements the request/response/push multiplexer built on
// top of the framed transport (spec §4.4).
package mux

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mirrorx/endpoint/internal/logging"
	"github.com/mirrorx/endpoint/internal/wire"
	"github.com/mirrorx/endpoint/internal/workerpool"
)

var log = logging.L("mux")

// DefaultCallTimeout is used by Call when the caller does not override it.
const DefaultCallTimeout = 5 * time.Second

var (
	ErrTimeout   = errors.New("mux: call timed out")
	ErrTransport = errors.New("mux: transport send failed")
	ErrClosed    = errors.New("mux: mux is closed")
)

// Handler answers a Request payload with a Response payload. Handlers run
// as ad-hoc tasks (spec §5 item 4), one per inbound Request.
type Handler func(ctx context.Context, payload wire.Message) wire.Message

// Sender abstracts the writer-side send path (the outbound envelope queue
// of spec §4.1/§5). Implemented by the writer task owned by the session.
type Sender interface {
	// Send enqueues an envelope for transmission. Returns an error if the
	// queue is saturated (back-pressure, §4.1) or the transport is closed.
	Send(wire.Envelope) error
}

// PushSink receives Push payloads of a particular kind (video frame queue,
// audio frame queue, input injector, file-transfer handler — §4.4 Dispatch).
type PushSink func(wire.Message)

// Mux correlates Request/Response pairs by call id and dispatches inbound
// Requests to handlers and inbound Pushes to sinks.
type Mux struct {
	sender Sender
	pool   *workerpool.Pool

	nextCallID atomic.Uint32 // wraps into uint16 range; fetch-add counter

	mu      sync.Mutex
	pending map[uint16]chan replyOrErr

	handlers map[wire.MessageTag]Handler
	sinks    map[wire.MessageTag]PushSink

	closed atomic.Bool
}

type replyOrErr struct {
	msg wire.Message
	err error
}

// New creates a Mux bound to the given Sender. pool is the ad-hoc task
// runner for inbound Requests (spec §5 item 4); callers typically share one
// workerpool.Pool across a session's request handling.
func New(sender Sender, pool *workerpool.Pool) *Mux {
	return &Mux{
		sender:   sender,
		pool:     pool,
		pending:  make(map[uint16]chan replyOrErr),
		handlers: make(map[wire.MessageTag]Handler),
		sinks:    make(map[wire.MessageTag]PushSink),
	}
}

// Handle registers the handler for Requests carrying the given payload tag.
// Must be called before Dispatch starts delivering envelopes for that tag.
func (m *Mux) Handle(tag wire.MessageTag, h Handler) {
	m.mu.Lock()
	m.handlers[tag] = h
	m.mu.Unlock()
}

// Sink registers the push sink for the given payload tag.
func (m *Mux) Sink(tag wire.MessageTag, sink PushSink) {
	m.mu.Lock()
	m.sinks[tag] = sink
	m.mu.Unlock()
}

// Call allocates a call id, sends a Request envelope, and awaits the
// matching Response or the given timeout. A timeout of zero uses
// DefaultCallTimeout. On timeout or send failure the pending slot is
// removed; any reply that arrives afterward is dropped by SetReply.
func (m *Mux) Call(ctx context.Context, payload wire.Message, timeout time.Duration) (wire.Message, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	callID := m.allocCallID()
	slot := make(chan replyOrErr, 1)

	m.mu.Lock()
	m.pending[callID] = slot
	m.mu.Unlock()

	env := wire.Envelope{Type: wire.TypeRequest, HasCallID: true, CallID: callID, Payload: payload}
	if err := m.sender.Send(env); err != nil {
		m.removePending(callID)
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-slot:
		return r.msg, r.err
	case <-timer.C:
		m.removePending(callID)
		return nil, ErrTimeout
	case <-ctx.Done():
		m.removePending(callID)
		return nil, ctx.Err()
	}
}

// Reply sends a Response envelope for the given call id. No local state is
// touched; this is the passive completion of a Request the reader routed
// to a handler.
func (m *Mux) Reply(callID uint16, payload wire.Message) error {
	env := wire.Envelope{Type: wire.TypeResponse, HasCallID: true, CallID: callID, Payload: payload}
	return m.sender.Send(env)
}

// Push sends a one-way Push envelope carrying no call id.
func (m *Mux) Push(payload wire.Message) error {
	env := wire.Envelope{Type: wire.TypePush, Payload: payload}
	return m.sender.Send(env)
}

// SetReply fulfills the pending slot for callID, if any. Invoked by the
// reader when a Response envelope arrives. A Response with no matching
// call id (already timed out, or never issued) is logged and dropped.
func (m *Mux) SetReply(callID uint16, payload wire.Message) {
	m.mu.Lock()
	slot, ok := m.pending[callID]
	if ok {
		delete(m.pending, callID)
	}
	m.mu.Unlock()

	if !ok {
		log.Info("late or unmatched reply dropped", logging.KeyCallID, callID)
		return
	}
	slot <- replyOrErr{msg: payload}
}

// Dispatch classifies one inbound envelope and routes it: Requests to the
// handler table (as an ad-hoc workerpool task), Responses through SetReply,
// Pushes to the registered sink. Called by the session's reader task.
func (m *Mux) Dispatch(ctx context.Context, env wire.Envelope) {
	switch env.Type {
	case wire.TypeRequest:
		m.dispatchRequest(ctx, env)
	case wire.TypeResponse:
		m.SetReply(env.CallID, env.Payload)
	case wire.TypePush:
		m.dispatchPush(env.Payload)
	default:
		log.Warn("envelope with unknown type dropped")
	}
}

func (m *Mux) dispatchRequest(ctx context.Context, env wire.Envelope) {
	tag := env.Payload.Tag()
	m.mu.Lock()
	handler, ok := m.handlers[tag]
	m.mu.Unlock()

	if !ok {
		log.Warn("request with unknown handler", logging.KeyCallID, env.CallID, "tag", tag)
		_ = m.Reply(env.CallID, wire.Error{Message: fmt.Sprintf("no handler for tag %d", tag)})
		return
	}

	callID := env.CallID
	payload := env.Payload
	submitted := m.pool.Submit(func() {
		resp := handler(ctx, payload)
		if err := m.Reply(callID, resp); err != nil {
			log.Warn("failed to send response", logging.KeyCallID, callID, logging.KeyError, err)
		}
	})
	if !submitted {
		_ = m.Reply(callID, wire.Error{Message: "request queue full"})
	}
}

func (m *Mux) dispatchPush(payload wire.Message) {
	tag := payload.Tag()
	m.mu.Lock()
	sink, ok := m.sinks[tag]
	m.mu.Unlock()

	if !ok {
		log.Info("push with unregistered sink dropped", "tag", tag)
		return
	}
	sink(payload)
}

// Close fails all pending calls and marks the mux unusable. The session
// calls this during teardown (spec §3 Lifecycle).
func (m *Mux) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}
	m.mu.Lock()
	pending := m.pending
	m.pending = make(map[uint16]chan replyOrErr)
	m.mu.Unlock()

	for _, slot := range pending {
		slot <- replyOrErr{err: ErrClosed}
	}
}

func (m *Mux) allocCallID() uint16 {
	return uint16(m.nextCallID.Add(1))
}

func (m *Mux) removePending(callID uint16) {
	m.mu.Lock()
	delete(m.pending, callID)
	m.mu.Unlock()
}
