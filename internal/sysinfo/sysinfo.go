// Package sysinfo reports the local OS identity used during negotiation
// (NegotiateParamsResponse.OS / OSVersion), grounded on the teacher's
// internal/collectors/hardware.go host-info lookup.
package sysinfo

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/host"
)

// Info describes the platform the endpoint is running on.
type Info struct {
	OS        string // "windows", "macos", "linux", ...
	OSVersion string
	Arch      string
}

// Collect queries the local host. On lookup failure it falls back to
// runtime.GOOS/GOARCH so callers always get a usable, if less precise,
// result rather than an error.
func Collect() Info {
	info := Info{
		OS:   normalizeOS(runtime.GOOS),
		Arch: runtime.GOARCH,
	}

	hostInfo, err := host.Info()
	if err != nil {
		return info
	}

	info.OS = normalizeOS(hostInfo.OS)
	info.OSVersion = hostInfo.PlatformVersion
	if info.OSVersion == "" {
		info.OSVersion = hostInfo.KernelVersion
	}
	return info
}

func normalizeOS(os string) string {
	if os == "darwin" {
		return "macos"
	}
	return os
}
