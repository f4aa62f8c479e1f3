// Package negotiate implements the post-handshake negotiation state machine
// (spec §4.5): parameter exchange, monitor selection, and the finished
// handshake that starts streaming.
package negotiate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/mirrorx/endpoint/internal/logging"
	"github.com/mirrorx/endpoint/internal/mux"
	"github.com/mirrorx/endpoint/internal/wire"
)

var log = logging.L("negotiate")

// State is the negotiation state machine's current position.
type State int32

const (
	StateIdle State = iota
	StateParams
	StateMonitor
	StateFinished
	StateStreaming
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateParams:
		return "params"
	case StateMonitor:
		return "monitor"
	case StateFinished:
		return "finished"
	case StateStreaming:
		return "streaming"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrNoCodec       = errors.New("negotiate: no mutually supported codec")
	ErrNoSampleRate  = errors.New("negotiate: no mutually supported sample rate")
	ErrNoFormat      = errors.New("negotiate: no mutually supported sample format")
	ErrMonitorNotFound = errors.New("negotiate: selected monitor id not found")
	ErrNoMonitors    = errors.New("negotiate: passive peer reported no monitors")
)

// Params is the active side's advertised capability set (spec §4.5 step 1).
type Params struct {
	Codecs        []wire.Codec
	MaxSampleRate uint32
	SampleFormats []wire.SampleFormat
	DualChannel   bool
}

// Result is what a completed negotiation yields to the session: the agreed
// media parameters, the selected monitor, and the applied frame rate.
type Result struct {
	Codec        wire.Codec
	SampleRate   uint32
	SampleFormat wire.SampleFormat
	DualChannel  bool
	OS           string
	OSVersion    string
	Monitor      wire.MonitorDescription
	FrameRate    uint8
}

// Negotiator drives one side of the state machine over a Mux.
type Negotiator struct {
	m     *mux.Mux
	state atomic.Int32
}

func New(m *mux.Mux) *Negotiator {
	n := &Negotiator{m: m}
	n.state.Store(int32(StateIdle))
	return n
}

func (n *Negotiator) State() State {
	return State(n.state.Load())
}

func (n *Negotiator) setState(s State) {
	n.state.Store(int32(s))
}

// Run drives the active side through all three exchanges and returns the
// agreed Result. preferredMonitorID may be empty, meaning "pick the primary
// monitor if present, else the first in the list."
func (n *Negotiator) Run(ctx context.Context, params Params, preferredMonitorID string, requestedFrameRate uint8) (Result, error) {
	var result Result

	n.setState(StateParams)
	paramsResp, err := n.m.Call(ctx, wire.NegotiateParamsRequest{
		Codecs:        params.Codecs,
		MaxSampleRate: params.MaxSampleRate,
		SampleFormats: params.SampleFormats,
		DualChannel:   params.DualChannel,
	}, 0)
	if err != nil {
		n.setState(StateFailed)
		return result, fmt.Errorf("negotiate: params exchange: %w", err)
	}
	pr, ok := paramsResp.(wire.NegotiateParamsResponse)
	if !ok {
		n.setState(StateFailed)
		return result, errAsError(paramsResp, "negotiate params")
	}
	result.Codec = pr.Codec
	result.SampleRate = pr.SampleRate
	result.SampleFormat = pr.SampleFormat
	result.DualChannel = pr.DualChannel
	result.OS = pr.OS
	result.OSVersion = pr.OSVersion

	n.setState(StateMonitor)
	monResp, err := n.m.Call(ctx, wire.NegotiateMonitorRequest{}, 0)
	if err != nil {
		n.setState(StateFailed)
		return result, fmt.Errorf("negotiate: monitor exchange: %w", err)
	}
	mr, ok := monResp.(wire.NegotiateMonitorResponse)
	if !ok {
		n.setState(StateFailed)
		return result, errAsError(monResp, "negotiate monitor")
	}
	monitor, err := selectMonitor(mr.Monitors, preferredMonitorID)
	if err != nil {
		n.setState(StateFailed)
		return result, err
	}
	result.Monitor = monitor

	n.setState(StateFinished)
	finResp, err := n.m.Call(ctx, wire.NegotiateFinishedRequest{
		SelectedMonitorID: monitor.ID,
		ExpectedFrameRate: requestedFrameRate,
	}, 0)
	if err != nil {
		n.setState(StateFailed)
		return result, fmt.Errorf("negotiate: finished exchange: %w", err)
	}
	fr, ok := finResp.(wire.NegotiateFinishedResponse)
	if !ok {
		n.setState(StateFailed)
		return result, errAsError(finResp, "negotiate finished")
	}
	result.FrameRate = fr.AppliedFrameRate

	n.setState(StateStreaming)
	log.Info("negotiation complete",
		"codec", result.Codec, "sampleRate", result.SampleRate,
		"monitor", result.Monitor.ID, "frameRate", result.FrameRate)
	return result, nil
}

// PassiveCallbacks supply the passive side's local capability answers.
// StartStreaming is invoked once NegotiateFinished lands successfully,
// exactly as spec §4.5 step 3 requires ("passive starts its capture+encode
// pipelines").
type PassiveCallbacks struct {
	SupportedCodecs func() []wire.Codec
	MaxSampleRate   func() uint32
	SampleFormats   func() []wire.SampleFormat
	DualChannel     func() bool
	OS              func() (os, version string)
	ListMonitors    func() []wire.MonitorDescription
	StartStreaming  func(result Result)
}

// Serve registers the passive-side handlers on the Mux's handler table. It
// must be called before the peer's first NegotiateParamsRequest arrives.
func (n *Negotiator) Serve(cb PassiveCallbacks) {
	var chosen struct {
		codec   wire.Codec
		rate    uint32
		format  wire.SampleFormat
		dual    bool
		monitor wire.MonitorDescription
	}

	n.m.Handle(wire.TagNegotiateParamsRequest, func(ctx context.Context, payload wire.Message) wire.Message {
		n.setState(StateParams)
		req := payload.(wire.NegotiateParamsRequest)

		codec, err := firstSupported(req.Codecs, cb.SupportedCodecs())
		if err != nil {
			n.setState(StateFailed)
			return wire.Error{Message: err.Error()}
		}
		rate, err := bestRate(req.MaxSampleRate, cb.MaxSampleRate())
		if err != nil {
			n.setState(StateFailed)
			return wire.Error{Message: err.Error()}
		}
		format, err := firstSupportedFormat(req.SampleFormats, cb.SampleFormats())
		if err != nil {
			n.setState(StateFailed)
			return wire.Error{Message: err.Error()}
		}
		dual := req.DualChannel && cb.DualChannel()

		chosen.codec, chosen.rate, chosen.format, chosen.dual = codec, rate, format, dual

		osName, osVersion := cb.OS()
		return wire.NegotiateParamsResponse{
			Codec:        codec,
			SampleRate:   rate,
			SampleFormat: format,
			DualChannel:  dual,
			OS:           osName,
			OSVersion:    osVersion,
		}
	})

	n.m.Handle(wire.TagNegotiateMonitorRequest, func(ctx context.Context, payload wire.Message) wire.Message {
		n.setState(StateMonitor)
		monitors := cb.ListMonitors()
		return wire.NegotiateMonitorResponse{Monitors: monitors}
	})

	n.m.Handle(wire.TagNegotiateFinishedRequest, func(ctx context.Context, payload wire.Message) wire.Message {
		req := payload.(wire.NegotiateFinishedRequest)

		monitors := cb.ListMonitors()
		monitor, err := selectMonitor(monitors, req.SelectedMonitorID)
		if err != nil {
			n.setState(StateFailed)
			return wire.Error{Message: err.Error()}
		}
		chosen.monitor = monitor

		applied := req.ExpectedFrameRate
		if monitor.RefreshHz > 0 && applied > monitor.RefreshHz {
			applied = monitor.RefreshHz
		}

		n.setState(StateFinished)
		result := Result{
			Codec:        chosen.codec,
			SampleRate:   chosen.rate,
			SampleFormat: chosen.format,
			DualChannel:  chosen.dual,
			Monitor:      monitor,
			FrameRate:    applied,
		}
		n.setState(StateStreaming)
		if cb.StartStreaming != nil {
			cb.StartStreaming(result)
		}
		return wire.NegotiateFinishedResponse{AppliedFrameRate: applied}
	})
}

func selectMonitor(monitors []wire.MonitorDescription, preferredID string) (wire.MonitorDescription, error) {
	if len(monitors) == 0 {
		return wire.MonitorDescription{}, ErrNoMonitors
	}
	if preferredID != "" {
		for _, m := range monitors {
			if m.ID == preferredID {
				return m, nil
			}
		}
		return wire.MonitorDescription{}, fmt.Errorf("%w: %q", ErrMonitorNotFound, preferredID)
	}
	for _, m := range monitors {
		if m.Primary {
			return m, nil
		}
	}
	return monitors[0], nil
}

// firstSupported returns the first element of preference that also appears
// in supported, mirroring the teacher's first-match-in-preference-order
// backend selection style.
func firstSupported(preference []wire.Codec, supported []wire.Codec) (wire.Codec, error) {
	for _, want := range preference {
		for _, have := range supported {
			if want == have {
				return want, nil
			}
		}
	}
	return 0, ErrNoCodec
}

func firstSupportedFormat(preference []wire.SampleFormat, supported []wire.SampleFormat) (wire.SampleFormat, error) {
	for _, want := range preference {
		for _, have := range supported {
			if want == have {
				return want, nil
			}
		}
	}
	return 0, ErrNoFormat
}

// bestRate picks the highest locally supported rate not exceeding max.
func bestRate(max uint32, localMax uint32) (uint32, error) {
	rate := localMax
	if rate > max {
		rate = max
	}
	if rate == 0 {
		return 0, ErrNoSampleRate
	}
	return rate, nil
}

func errAsError(msg wire.Message, step string) error {
	if e, ok := msg.(wire.Error); ok {
		return fmt.Errorf("negotiate: %s rejected: %s", step, e.Message)
	}
	return fmt.Errorf("negotiate: %s: unexpected response type %T", step, msg)
}
