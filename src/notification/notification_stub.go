//go:build !windows

package notification

import "log"

func showBlockingError(title, message string) {
	log.Printf("%s: %s", title, message)
}

func showPopup(text string) error {
	log.Printf("OCR Result: %s", text)
	return nil
}

func startCountdownPopup(timeoutSeconds int) error {
	log.Printf("OCR in progress (up to %d seconds)", timeoutSeconds)
	return nil
}

func updatePopupText(text string) error {
	log.Printf("OCR Result: %s", text)
	return nil
}

func closePopup() error {
	return nil
}
