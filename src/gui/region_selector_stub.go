//go:build !windows

package gui

import (
	"context"

	"screenocr/src/overlay"
)

// NewSelector returns the interactive region selector for this platform.
// Only windows has an overlay driver; everywhere else selection reports
// ErrOverlayUnsupported and the CLI file modes remain the way in.
func NewSelector() overlay.Selector {
	return stubSelector{}
}

type stubSelector struct{}

func (stubSelector) Select(ctx context.Context) (overlay.Capture, bool, error) {
	return overlay.Capture{}, false, ErrOverlayUnsupported
}
