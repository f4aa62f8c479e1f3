//go:build linux

package input

import (
	"os/exec"
	"strconv"

	"github.com/mirrorx/endpoint/internal/wire"
)

// xdotoolInjector replays events via the xdotool CLI, matching the
// teacher's Linux input handler.
type xdotoolInjector struct{}

// NewInjector constructs the Linux backend.
func NewInjector() Injector { return xdotoolInjector{} }

func (xdotoolInjector) MouseMove(x, y int) error {
	return exec.Command("xdotool", "mousemove", strconv.Itoa(x), strconv.Itoa(y)).Run()
}

func (h xdotoolInjector) MouseDown(x, y int, button wire.MouseButton) error {
	if err := h.MouseMove(x, y); err != nil {
		return err
	}
	return exec.Command("xdotool", "mousedown", xdotoolButton(button)).Run()
}

func (h xdotoolInjector) MouseUp(x, y int, button wire.MouseButton) error {
	return exec.Command("xdotool", "mouseup", xdotoolButton(button)).Run()
}

func (xdotoolInjector) Scroll(x, y int, delta int32) error {
	direction := "4"
	if delta < 0 {
		delta = -delta
		direction = "5"
	}
	for i := int32(0); i < delta; i++ {
		if err := exec.Command("xdotool", "click", direction).Run(); err != nil {
			return err
		}
	}
	return nil
}

func (xdotoolInjector) KeyDown(key uint32) error {
	return exec.Command("xdotool", "keydown", keyName(key)).Run()
}

func (xdotoolInjector) KeyUp(key uint32) error {
	return exec.Command("xdotool", "keyup", keyName(key)).Run()
}

func (xdotoolInjector) Close() error { return nil }

func xdotoolButton(b wire.MouseButton) string {
	switch b {
	case wire.MouseButtonRight:
		return "3"
	case wire.MouseButtonMiddle:
		return "2"
	default:
		return "1"
	}
}
