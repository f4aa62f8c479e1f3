//go:build windows

package input

import (
	"syscall"
	"unsafe"

	"github.com/mirrorx/endpoint/internal/wire"
)

var (
	user32       = syscall.NewLazyDLL("user32.dll")
	procSendInput = user32.NewProc("SendInput")
	procSetCursorPos = user32.NewProc("SetCursorPos")
	procMapVirtualKey = user32.NewProc("MapVirtualKeyW")
)

const (
	inputMouse    = 0
	inputKeyboard = 1

	mouseEventFLeftDown   = 0x0002
	mouseEventFLeftUp     = 0x0004
	mouseEventFRightDown  = 0x0008
	mouseEventFRightUp    = 0x0010
	mouseEventFMiddleDown = 0x0020
	mouseEventFMiddleUp   = 0x0040
	mouseEventFWheel      = 0x0800

	keyEventFKeyUp    = 0x0002
	keyEventFScancode = 0x0008

	mapvkVKToVSC = 0
)

type mouseInput struct {
	dx, dy    int32
	mouseData uint32
	dwFlags   uint32
	time      uint32
	extraInfo uintptr
}

type keybdInput struct {
	vk        uint16
	scan      uint16
	dwFlags   uint32
	time      uint32
	extraInfo uintptr
}

// rawInput mirrors the Win32 INPUT union's maximum size (mouseInput is the
// largest of the union members the session needs).
type rawInput struct {
	inputType uint32
	_pad      uint32
	data      mouseInput
}

// winInjector replays events via SendInput, mirroring the teacher's
// Windows input handler (user32.dll SendInput/SetCursorPos).
type winInjector struct{}

// NewInjector constructs the Windows backend.
func NewInjector() Injector { return winInjector{} }

func (winInjector) MouseMove(x, y int) error {
	ret, _, err := procSetCursorPos.Call(uintptr(x), uintptr(y))
	if ret == 0 {
		return err
	}
	return nil
}

func (h winInjector) MouseDown(x, y int, button wire.MouseButton) error {
	if err := h.MouseMove(x, y); err != nil {
		return err
	}
	return sendMouseFlag(downFlagFor(button))
}

func (h winInjector) MouseUp(x, y int, button wire.MouseButton) error {
	return sendMouseFlag(upFlagFor(button))
}

func (winInjector) Scroll(x, y int, delta int32) error {
	in := rawInput{
		inputType: inputMouse,
		data: mouseInput{
			mouseData: uint32(int32(delta) * 120),
			dwFlags:   mouseEventFWheel,
		},
	}
	_, _, _ = procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	return nil
}

func (winInjector) KeyDown(key uint32) error {
	return sendKey(key, 0)
}

func (winInjector) KeyUp(key uint32) error {
	return sendKey(key, keyEventFKeyUp)
}

func (winInjector) Close() error { return nil }

func sendMouseFlag(flag uint32) error {
	in := rawInput{inputType: inputMouse, data: mouseInput{dwFlags: flag}}
	_, _, _ = procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	return nil
}

func downFlagFor(b wire.MouseButton) uint32 {
	switch b {
	case wire.MouseButtonRight:
		return mouseEventFRightDown
	case wire.MouseButtonMiddle:
		return mouseEventFMiddleDown
	default:
		return mouseEventFLeftDown
	}
}

func upFlagFor(b wire.MouseButton) uint32 {
	switch b {
	case wire.MouseButtonRight:
		return mouseEventFRightUp
	case wire.MouseButtonMiddle:
		return mouseEventFMiddleUp
	default:
		return mouseEventFLeftUp
	}
}

func sendKey(vk uint32, extraFlags uint32) error {
	scan, _, _ := procMapVirtualKey.Call(uintptr(vk), mapvkVKToVSC)
	in := struct {
		inputType uint32
		_pad      uint32
		data      keybdInput
	}{
		inputType: inputKeyboard,
		data: keybdInput{
			vk:      uint16(vk),
			scan:    uint16(scan),
			dwFlags: extraFlags,
		},
	}
	_, _, _ = procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	return nil
}
