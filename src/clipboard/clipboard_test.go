package clipboard

import (
	"testing"
)

func TestInitAndWrite(t *testing.T) {
	// Clipboard access depends on the session; headless runs exercise the
	// fallback path. Either way Init and Write must not panic.
	if err := Init(); err != nil {
		t.Logf("clipboard init: %v", err)
	}
	if err := Write("test text"); err != nil {
		t.Logf("clipboard write unavailable in this environment: %v", err)
	}
}
