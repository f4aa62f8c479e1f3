//go:build windows

package video

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"

	"github.com/mirrorx/endpoint/internal/wire"
)

var (
	user32                  = syscall.NewLazyDLL("user32.dll")
	procEnumDisplayMonitors = user32.NewProc("EnumDisplayMonitors")
	procGetMonitorInfoW     = user32.NewProc("GetMonitorInfoW")
)

type rect struct{ Left, Top, Right, Bottom int32 }

type monitorInfoEx struct {
	cbSize    uint32
	rcMonitor rect
	rcWork    rect
	dwFlags   uint32
	szDevice  [32]uint16
}

const monitorInfoFPrimary = 0x1

// listMonitors enumerates displays via EnumDisplayMonitors. COM is
// initialized (go-ole) because the DXGI duplicator constructed from the
// selected monitor shares the apartment with this enumeration call.
func listMonitors() ([]wire.MonitorDescription, error) {
	if err := ole.CoInitialize(0); err != nil {
		return nil, fmt.Errorf("video: CoInitialize: %w", err)
	}
	defer ole.CoUninitialize()

	var monitors []wire.MonitorDescription
	cb := syscall.NewCallback(func(hMonitor, hdc uintptr, lprc uintptr, lParam uintptr) uintptr {
		var info monitorInfoEx
		info.cbSize = uint32(unsafe.Sizeof(info))
		ret, _, _ := procGetMonitorInfoW.Call(hMonitor, uintptr(unsafe.Pointer(&info)))
		if ret == 0 {
			return 1 // continue enumeration
		}
		name := syscall.UTF16ToString(info.szDevice[:])
		monitors = append(monitors, wire.MonitorDescription{
			ID:        name,
			Name:      name,
			RefreshHz: 60,
			Width:     uint16(info.rcMonitor.Right - info.rcMonitor.Left),
			Height:    uint16(info.rcMonitor.Bottom - info.rcMonitor.Top),
			Primary:   info.dwFlags&monitorInfoFPrimary != 0,
		})
		return 1
	})

	ret, _, _ := procEnumDisplayMonitors.Call(0, 0, cb, 0)
	if ret == 0 {
		return nil, fmt.Errorf("video: EnumDisplayMonitors failed")
	}
	return monitors, nil
}

// dxgiDuplicator is a scaffold for the DXGI Desktop Duplication capture
// path (spec §4.6 "On Windows, capture is pulled on a ticker"). Full
// D3D11Device/IDXGIOutputDuplication wiring mirrors the teacher's
// capture_dxgi_windows.go; only the interface boundary is implemented here.
type dxgiDuplicator struct {
	monitorID string
}

// NewDuplicator constructs the Windows capture backend for the given
// monitor id (as returned by ListMonitors).
func NewDuplicator(monitorID string) (Duplicator, error) {
	return &dxgiDuplicator{monitorID: monitorID}, nil
}

func (d *dxgiDuplicator) Capture() (Frame, error) {
	return Frame{}, unsupported("dxgiDuplicator.Capture")
}

func (d *dxgiDuplicator) Close() error { return nil }
