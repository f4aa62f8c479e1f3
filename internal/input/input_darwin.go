//go:build darwin

package input

import (
	"fmt"
	"os/exec"

	"github.com/mirrorx/endpoint/internal/wire"
)

// osascriptInjector replays mouse events via cliclick when it is installed
// and key events via AppleScript, matching the teacher's Darwin input
// handler. Without cliclick, MouseMove falls back to AppleScript, MouseDown
// only moves the pointer, and MouseUp and Scroll do nothing.
type osascriptInjector struct{}

// NewInjector constructs the macOS backend.
func NewInjector() Injector { return osascriptInjector{} }

func (osascriptInjector) MouseMove(x, y int) error {
	if _, err := exec.LookPath("cliclick"); err == nil {
		return exec.Command("cliclick", fmt.Sprintf("m:%d,%d", x, y)).Run()
	}
	script := fmt.Sprintf(`tell application "System Events" to set mouseLocation to {%d, %d}`, x, y)
	return exec.Command("osascript", "-e", script).Run()
}

func (h osascriptInjector) MouseDown(x, y int, button wire.MouseButton) error {
	if _, err := exec.LookPath("cliclick"); err == nil {
		return exec.Command("cliclick", fmt.Sprintf("%s:%d,%d", cliclickDown(button), x, y)).Run()
	}
	return h.MouseMove(x, y)
}

func (h osascriptInjector) MouseUp(x, y int, button wire.MouseButton) error {
	if _, err := exec.LookPath("cliclick"); err == nil {
		return exec.Command("cliclick", fmt.Sprintf("%s:%d,%d", cliclickUp(button), x, y)).Run()
	}
	return nil
}

func (osascriptInjector) Scroll(x, y int, delta int32) error {
	if _, err := exec.LookPath("cliclick"); err == nil {
		return exec.Command("cliclick", fmt.Sprintf("sm:%d,%d", 0, delta)).Run()
	}
	return nil
}

func (osascriptInjector) KeyDown(key uint32) error {
	script := fmt.Sprintf(`tell application "System Events" to key down %d`, key)
	return exec.Command("osascript", "-e", script).Run()
}

func (osascriptInjector) KeyUp(key uint32) error {
	script := fmt.Sprintf(`tell application "System Events" to key up %d`, key)
	return exec.Command("osascript", "-e", script).Run()
}

func (osascriptInjector) Close() error { return nil }

func cliclickDown(b wire.MouseButton) string {
	if b == wire.MouseButtonRight {
		return "rd"
	}
	return "dd"
}

func cliclickUp(b wire.MouseButton) string {
	if b == wire.MouseButtonRight {
		return "ru"
	}
	return "du"
}
