package clipboard

import (
	"log"
	"sync"

	fallback "github.com/atotto/clipboard"
	xclipboard "golang.design/x/clipboard"
)

var (
	mu          sync.Mutex
	useFallback bool
)

// Init probes the native clipboard backend once at startup. When it is
// unavailable (headless session, missing display), writes fall back to
// the command-based backend.
func Init() error {
	mu.Lock()
	defer mu.Unlock()

	if err := xclipboard.Init(); err != nil {
		useFallback = true
		log.Printf("Native clipboard unavailable: %v (using fallback backend)", err)
	}
	return nil
}

// Write performs a mutex-guarded clipboard write to prevent corruption
// under parallel writes.
func Write(text string) error {
	mu.Lock()
	defer mu.Unlock()

	if useFallback {
		return fallback.WriteAll(text)
	}
	xclipboard.Write(xclipboard.FmtText, []byte(text))
	return nil
}
