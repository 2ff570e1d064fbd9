package popup

import (
	"log"
	"runtime"

	"github.com/mattn/go-runewidth"

	"screenocr/src/logutil"
	"screenocr/src/notification"
)

// maxDisplayCells is the widest text the transient popup shows, measured
// in display cells rather than bytes so CJK results do not overflow the
// window.
const maxDisplayCells = 200

// Truncate caps text at the popup's display budget, appending "..." when
// anything was cut.
func Truncate(text string) string {
	if runewidth.StringWidth(text) <= maxDisplayCells {
		return text
	}
	return runewidth.Truncate(text, maxDisplayCells, "...")
}

// Show displays text in the transient popup and returns immediately; the
// popup manages its own lifetime.
func Show(text string) error {
	display := Truncate(text)
	if _, file, line, ok := runtime.Caller(1); ok {
		log.Printf("Popup.Show called from %s:%d with %d characters: %q", file, line, len(text), logutil.SanitizeText(display))
	} else {
		log.Printf("Popup.Show called with %d characters: %q", len(text), logutil.SanitizeText(display))
	}
	notification.ShowResult(display)
	return nil
}

// StartCountdown displays a countdown popup that updates every second
// until UpdateText switches it to a result or the countdown runs out.
func StartCountdown(timeoutSeconds int) error {
	log.Printf("Popup.StartCountdown called with %d seconds", timeoutSeconds)
	return notification.StartCountdownPopup(timeoutSeconds)
}

// UpdateText switches the current popup from countdown to result mode.
func UpdateText(text string) error {
	log.Printf("Popup.UpdateText called with %d characters", len(text))
	return notification.UpdatePopupText(Truncate(text))
}

// Close dismisses the current popup if any.
func Close() error {
	log.Printf("Popup.Close called")
	return notification.ClosePopup()
}
