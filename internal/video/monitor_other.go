//go:build !windows

package video

import "github.com/mirrorx/endpoint/internal/wire"

// listMonitors is a stub for non-Windows platforms: multi-monitor
// enumeration (EnumDisplayMonitors) is Windows-only, mirroring the teacher's
// monitor_other.go fallback.
func listMonitors() ([]wire.MonitorDescription, error) {
	return []wire.MonitorDescription{{
		ID:        "DISPLAY-0",
		Name:      "Default",
		RefreshHz: 60,
		Primary:   true,
	}}, nil
}

// pushDuplicator is the portable (macOS/Linux) capture backend: the OS
// source pushes frames into capturedCh; Capture blocks until one arrives,
// matching spec §4.6's "push-driven" capture description for macOS.
type pushDuplicator struct {
	capturedCh chan Frame
}

// NewDuplicator constructs the portable capture backend for the given
// monitor id.
func NewDuplicator(monitorID string) (Duplicator, error) {
	return &pushDuplicator{capturedCh: make(chan Frame, captureChannelCapacity)}, nil
}

func (d *pushDuplicator) Capture() (Frame, error) {
	f, ok := <-d.capturedCh
	if !ok {
		return Frame{}, unsupported("pushDuplicator.Capture: source closed")
	}
	return f, nil
}

func (d *pushDuplicator) Close() error {
	close(d.capturedCh)
	return nil
}

// Push is how the OS-specific source (not implemented here) would feed a
// captured frame in; exposed so tests can simulate push-driven capture.
func (d *pushDuplicator) Push(f Frame) {
	select {
	case d.capturedCh <- f:
	default:
		select {
		case <-d.capturedCh:
		default:
		}
		select {
		case d.capturedCh <- f:
		default:
		}
	}
}
