// Package input implements the passive side's Injector (spec §4.8): it
// receives normalized InputEvent pushes and replays them against the local
// OS, scaling normalized coordinates against the selected monitor's pixel
// dimensions.
package input

import (
	"fmt"

	"github.com/mirrorx/endpoint/internal/logging"
	"github.com/mirrorx/endpoint/internal/wire"
)

var log = logging.L("input")

// Injector replays one InputEvent against the local OS. Implementations
// are platform-specific; NewInjector picks the build's backend.
type Injector interface {
	MouseMove(x, y int) error
	MouseDown(x, y int, button wire.MouseButton) error
	MouseUp(x, y int, button wire.MouseButton) error
	Scroll(x, y int, delta int32) error
	KeyDown(key uint32) error
	KeyUp(key uint32) error
	Close() error
}

// Dispatcher scales a session's normalized InputEvent stream to monitor
// pixels and replays it through an Injector.
type Dispatcher struct {
	injector      Injector
	monitorWidth  int
	monitorHeight int
}

// NewDispatcher binds injector to a monitor's pixel dimensions, as reported
// by NegotiateSelectMonitor (spec §4.5 step 2).
func NewDispatcher(injector Injector, monitorWidth, monitorHeight int) *Dispatcher {
	return &Dispatcher{injector: injector, monitorWidth: monitorWidth, monitorHeight: monitorHeight}
}

// Handle replays one wire-level InputEvent, scaling normalized [0,1]
// coordinates to the bound monitor's pixel space.
func (d *Dispatcher) Handle(ev wire.InputEvent) error {
	x, y := d.scale(ev.X, ev.Y)

	switch ev.Kind {
	case wire.InputMouseMove:
		return d.injector.MouseMove(x, y)
	case wire.InputMouseDown:
		return d.injector.MouseDown(x, y, ev.Button)
	case wire.InputMouseUp:
		return d.injector.MouseUp(x, y, ev.Button)
	case wire.InputScrollWheel:
		return d.injector.Scroll(x, y, ev.Delta)
	case wire.InputKeyDown:
		return d.injector.KeyDown(ev.Key)
	case wire.InputKeyUp:
		return d.injector.KeyUp(ev.Key)
	default:
		return fmt.Errorf("input: unknown event kind %d", ev.Kind)
	}
}

func (d *Dispatcher) scale(nx, ny float32) (int, int) {
	if nx < 0 {
		nx = 0
	} else if nx > 1 {
		nx = 1
	}
	if ny < 0 {
		ny = 0
	} else if ny > 1 {
		ny = 1
	}
	return int(nx * float32(d.monitorWidth)), int(ny * float32(d.monitorHeight))
}

// Sink adapts a Dispatcher into a mux.PushSink for wire.TagInput, logging
// and dropping replay failures rather than propagating them (an injection
// failure is not fatal to the session).
func (d *Dispatcher) Sink(msg wire.Message) {
	in, ok := msg.(wire.Input)
	if !ok {
		return
	}
	if err := d.Handle(in.Event); err != nil {
		log.Warn("input replay failed", logging.KeyError, err)
	}
}

// noopInjector is a portable Injector that discards every event. NewInjector
// never returns it; it is constructed explicitly (e.g. during tests).
type noopInjector struct{}

func (noopInjector) MouseMove(x, y int) error                         { return nil }
func (noopInjector) MouseDown(x, y int, button wire.MouseButton) error { return nil }
func (noopInjector) MouseUp(x, y int, button wire.MouseButton) error   { return nil }
func (noopInjector) Scroll(x, y int, delta int32) error                { return nil }
func (noopInjector) KeyDown(key uint32) error                          { return nil }
func (noopInjector) KeyUp(key uint32) error                            { return nil }
func (noopInjector) Close() error                                      { return nil }

// NewNoopInjector returns a portable Injector that logs nothing and does
// nothing; useful for headless builds and tests.
func NewNoopInjector() Injector { return noopInjector{} }
