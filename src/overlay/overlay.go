// Package overlay implements the region-selection session as an explicit
// state machine over a frozen capture surface. The machine is platform
// independent; a driver (src/gui) feeds it input events and paints from
// its render state.
package overlay

import (
	"context"
	"image"

	"screenocr/src/screenshot"
)

// State is the selection session state.
type State int

const (
	// StateIdle awaits the first (or next) drag.
	StateIdle State = iota
	// StateSelecting is an active drag between press and release.
	StateSelecting
	// StateCaptured is terminal: a region was emitted.
	StateCaptured
	// StateCancelled is terminal: the session was aborted.
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelecting:
		return "selecting"
	case StateCaptured:
		return "captured"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal reports whether no further events can change the session.
func (s State) Terminal() bool {
	return s == StateCaptured || s == StateCancelled
}

// Outcome is what a single event produced.
type Outcome int

const (
	// OutcomeNone: state may have mutated, nothing was emitted.
	OutcomeNone Outcome = iota
	// OutcomeDiscarded: a release below the minimum size threw the
	// selection away; the session continues.
	OutcomeDiscarded
	// OutcomeCaptured: the session emitted its region and ended.
	OutcomeCaptured
	// OutcomeCancelled: the session ended without a region.
	OutcomeCancelled
)

// Capture is what a completed selection session produced: the chosen
// region and its crop from the frozen surface. The crop comes from the
// same pixels the user saw under the overlay, never from a re-grab.
type Capture struct {
	Region screenshot.Region
	Image  *image.RGBA
}

// Selector runs one interactive selection session. It is blocking and must
// be invoked only from the single event-loop goroutine. It returns the
// capture, or cancelled=true when the user aborted, or an error when the
// platform could not run the overlay at all.
type Selector interface {
	Select(ctx context.Context) (Capture, bool, error)
}

// SelectorFunc adapts a function to the Selector interface.
type SelectorFunc func(ctx context.Context) (Capture, bool, error)

func (f SelectorFunc) Select(ctx context.Context) (Capture, bool, error) {
	return f(ctx)
}

// InputGrab is the exclusive input ownership the platform grants a running
// session: the pointer while a drag is active, the keyboard for the whole
// session. Implementations must tolerate repeated releases.
type InputGrab interface {
	AcquirePointer()
	ReleasePointer()
	AcquireKeyboard()
	ReleaseKeyboard()
}

type nopGrab struct{}

func (nopGrab) AcquirePointer()  {}
func (nopGrab) ReleasePointer()  {}
func (nopGrab) AcquireKeyboard() {}
func (nopGrab) ReleaseKeyboard() {}
