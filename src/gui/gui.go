// Package gui owns everything the user sees: the fullscreen selection
// overlay (windows driver in region_selector_windows.go) and the fyne
// result window with its history browser and settings form.
package gui

import "errors"

// ErrOverlayUnsupported is returned by Select on platforms without an
// overlay driver.
var ErrOverlayUnsupported = errors.New("interactive region selection is not supported on this platform")
