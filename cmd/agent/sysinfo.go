package main

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// collectMachineInfo gathers a best-effort hardware snapshot for the
// register call. Probe failures degrade to partial info, never to an error:
// a box with a broken /proc still registers.
func collectMachineInfo() map[string]any {
	info := map[string]any{
		"os":   runtime.GOOS,
		"arch": runtime.GOARCH,
	}

	if hostname, err := os.Hostname(); err == nil {
		info["hostname"] = hostname
	}

	if hostInfo, err := host.Info(); err == nil {
		info["platform"] = hostInfo.Platform
		info["platform_version"] = hostInfo.PlatformVersion
		info["kernel_version"] = hostInfo.KernelVersion
	}

	if counts, err := cpu.Counts(true); err == nil {
		info["cpu_count"] = counts
	}

	if stat, err := mem.VirtualMemory(); err == nil {
		info["memory_total_bytes"] = stat.Total
	}

	return info
}

// collectCapabilities is refreshed on every heartbeat so the control plane
// sees load changes without a re-register.
func collectCapabilities() map[string]any {
	caps := map[string]any{
		"goroutines": runtime.NumGoroutine(),
	}

	if values, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(values) > 0 {
		caps["cpu_percent"] = values[0]
	}

	if stat, err := mem.VirtualMemory(); err == nil {
		caps["mem_percent"] = stat.UsedPercent
	}

	return caps
}
