package video

import "github.com/mirrorx/endpoint/internal/wire"

// ListMonitors enumerates connected displays for NegotiateSelectMonitor
// (spec §4.5 step 2). Screenshot generation is left to the caller (it's a
// capture, not an enumeration, concern); ListMonitors only fills geometry.
func ListMonitors() ([]wire.MonitorDescription, error) {
	return listMonitors()
}
