package blynk

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/host"
)

const clientIDPrefix = "blynk_go_"

// DetectDeviceInfo returns a DeviceInfo with Board set to <platform>/<arch>
// of the host, e.g. "raspbian/armv7l". Falls back to the Go runtime values.
func DetectDeviceInfo() DeviceInfo {
	info, err := host.Info()
	if err != nil || info.Platform == "" {
		return DeviceInfo{Board: fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)}
	}
	arch := info.KernelArch
	if arch == "" {
		arch = runtime.GOARCH
	}
	return DeviceInfo{Board: fmt.Sprintf("%s/%s", info.Platform, arch)}
}

// defaultClientID derives a stable id from the host id, random if unavailable
func defaultClientID() string {
	if id, err := host.HostID(); err == nil && id != "" {
		return clientIDPrefix + compactID(id)
	}
	return clientIDPrefix + compactID(uuid.NewString())[:12]
}

func compactID(id string) string {
	return strings.ToLower(strings.ReplaceAll(id, "-", ""))
}
