package input

import (
	"testing"

	"github.com/mirrorx/endpoint/internal/wire"
)

type recordingInjector struct {
	moves  [][2]int
	downs  [][2]int
	keys   []uint32
}

func (r *recordingInjector) MouseMove(x, y int) error {
	r.moves = append(r.moves, [2]int{x, y})
	return nil
}
func (r *recordingInjector) MouseDown(x, y int, button wire.MouseButton) error {
	r.downs = append(r.downs, [2]int{x, y})
	return nil
}
func (r *recordingInjector) MouseUp(x, y int, button wire.MouseButton) error { return nil }
func (r *recordingInjector) Scroll(x, y int, delta int32) error             { return nil }
func (r *recordingInjector) KeyDown(key uint32) error {
	r.keys = append(r.keys, key)
	return nil
}
func (r *recordingInjector) KeyUp(key uint32) error { return nil }
func (r *recordingInjector) Close() error           { return nil }

func TestDispatcherScalesNormalizedCoordinates(t *testing.T) {
	rec := &recordingInjector{}
	d := NewDispatcher(rec, 1920, 1080)

	if err := d.Handle(wire.InputEvent{Kind: wire.InputMouseMove, X: 0.5, Y: 0.5}); err != nil {
		t.Fatal(err)
	}
	if len(rec.moves) != 1 || rec.moves[0] != [2]int{960, 540} {
		t.Fatalf("unexpected scaled move: %v", rec.moves)
	}
}

func TestDispatcherClampsOutOfRangeCoordinates(t *testing.T) {
	rec := &recordingInjector{}
	d := NewDispatcher(rec, 1920, 1080)

	if err := d.Handle(wire.InputEvent{Kind: wire.InputMouseDown, X: 1.5, Y: -0.5, Button: wire.MouseButtonLeft}); err != nil {
		t.Fatal(err)
	}
	if len(rec.downs) != 1 || rec.downs[0] != [2]int{1920, 0} {
		t.Fatalf("unexpected clamped down: %v", rec.downs)
	}
}

func TestDispatcherKeyEvents(t *testing.T) {
	rec := &recordingInjector{}
	d := NewDispatcher(rec, 1920, 1080)

	if err := d.Handle(wire.InputEvent{Kind: wire.InputKeyDown, Key: 65}); err != nil {
		t.Fatal(err)
	}
	if len(rec.keys) != 1 || rec.keys[0] != 65 {
		t.Fatalf("unexpected key events: %v", rec.keys)
	}
}

func TestNoopInjectorSatisfiesInterface(t *testing.T) {
	var _ Injector = NewNoopInjector()
}
