// Package tray owns the system tray icon and its menu. The menu is the
// mouse-driven entry point into capture, the result window and settings;
// the global hotkey and the single-instance TCP channel are the other two.
package tray

import (
	"log"
	"sync"

	"github.com/getlantern/systray"
)

// Config wires menu actions to their owners. Callbacks fire on the tray's
// menu goroutine and must not block; hand off to the event loop instead.
type Config struct {
	Tooltip    string
	Version    string
	OnCapture  func()
	OnShow     func()
	OnSettings func()
	OnQuit     func()
}

// Tray wraps the systray lifecycle. Tooltip and about-line updates are
// safe from any goroutine, including before the tray is ready.
type Tray struct {
	cfg Config

	mu      sync.Mutex
	ready   bool
	tooltip string
	extra   string
	info    *systray.MenuItem
}

func New(cfg Config) *Tray {
	if cfg.Tooltip == "" {
		cfg.Tooltip = "ScreenOCR"
	}
	return &Tray{cfg: cfg, tooltip: cfg.Tooltip}
}

// Run blocks until Quit is chosen from the menu or Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit asks the systray loop to exit. Safe from any goroutine.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes())
	systray.SetTitle(t.cfg.Tooltip)

	t.mu.Lock()
	tooltip := t.tooltip
	extra := t.extra
	t.mu.Unlock()
	systray.SetTooltip(tooltip)

	mCapture := systray.AddMenuItem("Capture Text", "Select a screen region and recognize its text")
	mShow := systray.AddMenuItem("Show Window", "Open the result and history window")
	mSettings := systray.AddMenuItem("Settings...", "Change hotkey, engine and behavior")
	systray.AddSeparator()
	mAbout := systray.AddMenuItem(aboutTitle(t.cfg.Version), "")
	mAbout.Disable()
	mInfo := systray.AddMenuItem("", "")
	mInfo.Disable()
	mInfo.Hide()
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit the application")

	t.mu.Lock()
	t.ready = true
	t.info = mInfo
	t.mu.Unlock()
	if extra != "" {
		mInfo.SetTitle(extra)
		mInfo.Show()
	}

	go t.menuLoop(mCapture, mShow, mSettings, mQuit)
}

func (t *Tray) menuLoop(capture, show, settings, quit *systray.MenuItem) {
	for {
		select {
		case <-capture.ClickedCh:
			log.Printf("Tray: capture requested")
			if t.cfg.OnCapture != nil {
				t.cfg.OnCapture()
			}
		case <-show.ClickedCh:
			log.Printf("Tray: show window requested")
			if t.cfg.OnShow != nil {
				t.cfg.OnShow()
			}
		case <-settings.ClickedCh:
			log.Printf("Tray: settings requested")
			if t.cfg.OnSettings != nil {
				t.cfg.OnSettings()
			}
		case <-quit.ClickedCh:
			log.Printf("Tray: quit requested")
			systray.Quit()
			return
		}
	}
}

func (t *Tray) onExit() {
	if t.cfg.OnQuit != nil {
		t.cfg.OnQuit()
	}
}

// UpdateTooltip replaces the hover text. The event loop uses this to show
// busy state while a capture is processing.
func (t *Tray) UpdateTooltip(text string) {
	t.mu.Lock()
	t.tooltip = text
	ready := t.ready
	t.mu.Unlock()
	if ready {
		systray.SetTooltip(text)
	}
}

// SetAboutExtra puts a status line under the about entry, e.g. the
// resident TCP port.
func (t *Tray) SetAboutExtra(text string) {
	t.mu.Lock()
	t.extra = text
	info := t.info
	t.mu.Unlock()
	if info != nil {
		info.SetTitle(text)
		info.Show()
	}
}

func aboutTitle(version string) string {
	if version == "" {
		return "ScreenOCR"
	}
	return "ScreenOCR " + version
}
