package notification

import "log"

// Package notification owns the transient popup window and the blocking
// error dialog. Callers hand it display-ready text; truncation policy
// lives in the popup package. On non-Windows builds everything falls
// back to the log so headless runs still leave a trace.

// ShowResult displays text in the transient popup and returns
// immediately. The popup closes itself after a few seconds or on the
// first click.
func ShowResult(text string) {
	go func() {
		if err := showPopup(text); err != nil {
			log.Printf("Notification: result popup failed: %v", err)
		}
	}()
}

// ShowError displays an error message in the transient popup.
func ShowError(message string) {
	log.Printf("Notification error: %s", message)
	go func() {
		if err := showPopup(message); err != nil {
			log.Printf("Notification: error popup failed: %v", err)
		}
	}()
}

// StartCountdownPopup opens the popup in countdown mode. The text ticks
// down once per second until UpdatePopupText switches it to result mode
// or the countdown reaches zero and the popup closes itself.
func StartCountdownPopup(timeoutSeconds int) error {
	return startCountdownPopup(timeoutSeconds)
}

// UpdatePopupText replaces the popup text. A popup in countdown mode
// switches to result mode and closes a few seconds later.
func UpdatePopupText(text string) error {
	return updatePopupText(text)
}

// ClosePopup dismisses the popup if one is visible.
func ClosePopup() error {
	return closePopup()
}

// ShowBlockingError displays a modal error dialog and returns after the
// user dismisses it. Used for startup failures before the tray exists.
func ShowBlockingError(title, message string) {
	showBlockingError(title, message)
}
