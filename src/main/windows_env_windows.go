//go:build windows

package main

import (
	"log"
	"syscall"
)

// enableDPIAwareness opts the process into per-monitor DPI awareness so
// the overlay geometry matches physical pixels on scaled displays.
func enableDPIAwareness() {
	shcore := syscall.NewLazyDLL("Shcore.dll")
	setProcessDpiAwareness := shcore.NewProc("SetProcessDpiAwareness")
	const processPerMonitorDPIAware = 2
	if err := setProcessDpiAwareness.Find(); err == nil {
		ret, _, _ := setProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware))
		if ret != 0 {
			log.Printf("DPI: SetProcessDpiAwareness failed with code %d", ret)
		}
		return
	}

	// Vista fallback: system-wide awareness only.
	user32 := syscall.NewLazyDLL("user32.dll")
	setProcessDPIAware := user32.NewProc("SetProcessDPIAware")
	if err := setProcessDPIAware.Find(); err == nil {
		if ret, _, _ := setProcessDPIAware.Call(); ret == 0 {
			log.Printf("DPI: SetProcessDPIAware fallback failed")
		}
	}
}

// logMonitorConfiguration records the monitor layout at startup; the
// virtual-screen metrics are the bounds the capture surface composites.
func logMonitorConfiguration() {
	user32 := syscall.NewLazyDLL("user32.dll")
	getSystemMetrics := user32.NewProc("GetSystemMetrics")

	const (
		smCXScreen        = 0
		smCYScreen        = 1
		smXVirtualScreen  = 76
		smYVirtualScreen  = 77
		smCXVirtualScreen = 78
		smCYVirtualScreen = 79
		smCMonitors       = 80
	)

	monitors, _, _ := getSystemMetrics.Call(uintptr(smCMonitors))
	vx, _, _ := getSystemMetrics.Call(uintptr(smXVirtualScreen))
	vy, _, _ := getSystemMetrics.Call(uintptr(smYVirtualScreen))
	vw, _, _ := getSystemMetrics.Call(uintptr(smCXVirtualScreen))
	vh, _, _ := getSystemMetrics.Call(uintptr(smCYVirtualScreen))
	pw, _, _ := getSystemMetrics.Call(uintptr(smCXScreen))
	ph, _, _ := getSystemMetrics.Call(uintptr(smCYScreen))

	log.Printf("Monitors: %d, virtual screen x:%d y:%d w:%d h:%d, primary w:%d h:%d",
		int(monitors), int(vx), int(vy), int(vw), int(vh), int(pw), int(ph))
}
