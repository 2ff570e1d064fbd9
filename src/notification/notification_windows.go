//go:build windows

package notification

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

const (
	popupClassName = "ScreenOCRPopup"
	popupWidth     = 400
	popupHeight    = 100
	popupMargin    = 20

	// Posted to the popup window when the display text changed.
	wmUpdateText = win.WM_USER + 1

	timerClose     = 1
	timerCountdown = 2

	resultVisibleMs = 3000
)

// All window calls run on one locked OS thread; the queue serializes
// popup requests onto it. The mutex guards the text and mode fields
// shared with callers.
var (
	popupQueue chan string
	popupOnce  sync.Once

	popupMu       sync.Mutex
	popupHwnd     win.HWND
	popupText     string
	countdownMode bool
	countdownLeft int
)

var (
	user32          = windows.NewLazySystemDLL("user32.dll")
	procMessageBoxW = user32.NewProc("MessageBoxW")
)

const (
	mbOK          = 0x00000000
	mbIconError   = 0x00000010
	mbSystemModal = 0x00001000
)

func showBlockingError(title, message string) {
	titlePtr, _ := syscall.UTF16PtrFromString(title)
	msgPtr, _ := syscall.UTF16PtrFromString(message)
	procMessageBoxW.Call(
		0,
		uintptr(unsafe.Pointer(msgPtr)),
		uintptr(unsafe.Pointer(titlePtr)),
		uintptr(mbOK|mbIconError|mbSystemModal),
	)
}

func showPopup(text string) error {
	ensurePopupThread()

	popupMu.Lock()
	countdownMode = false
	popupMu.Unlock()

	select {
	case popupQueue <- text:
		return nil
	default:
		return errors.New("popup queue full")
	}
}

func startCountdownPopup(timeoutSeconds int) error {
	ensurePopupThread()

	popupMu.Lock()
	if popupHwnd != 0 {
		// Ask the owning thread to close the current popup first.
		win.PostMessage(popupHwnd, win.WM_CLOSE, 0, 0)
	}
	countdownMode = true
	countdownLeft = timeoutSeconds
	initial := countdownText(timeoutSeconds)
	popupMu.Unlock()

	select {
	case popupQueue <- initial:
		return nil
	default:
		log.Printf("Popup: queue full, dropping countdown request")
		return nil
	}
}

func updatePopupText(text string) error {
	popupMu.Lock()
	popupText = text
	hwnd := popupHwnd
	popupMu.Unlock()

	if hwnd == 0 {
		log.Printf("Popup: no active popup to update")
		return nil
	}
	win.PostMessage(hwnd, wmUpdateText, 0, 0)
	return nil
}

func closePopup() error {
	popupMu.Lock()
	hwnd := popupHwnd
	popupMu.Unlock()

	if hwnd == 0 {
		return nil
	}
	win.PostMessage(hwnd, win.WM_CLOSE, 0, 0)
	return nil
}

func countdownText(remaining int) string {
	return fmt.Sprintf("OCR in progress...\n%d seconds remaining", remaining)
}

// ensurePopupThread starts the single thread that owns every popup
// window. Window handles must only be touched from their owning thread,
// so all creation goes through popupQueue.
func ensurePopupThread() {
	popupOnce.Do(func() {
		popupQueue = make(chan string, 10)

		go func() {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Popup thread panic: %v", r)
				}
			}()

			if err := registerPopupClass(); err != nil {
				log.Printf("Popup: window class registration failed: %v", err)
				return
			}

			for text := range popupQueue {
				if err := runPopupWindow(text); err != nil {
					log.Printf("Popup: %v", err)
				}
			}
		}()
	})
}

func registerPopupClass() error {
	className := syscall.StringToUTF16Ptr(popupClassName)
	wndClass := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		LpfnWndProc:   syscall.NewCallback(popupWndProc),
		HInstance:     win.GetModuleHandle(nil),
		HCursor:       win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_ARROW)),
		HbrBackground: win.HBRUSH(win.COLOR_WINDOW + 1),
		LpszClassName: className,
	}
	if win.RegisterClassEx(&wndClass) == 0 {
		return errors.New("RegisterClassEx failed")
	}
	return nil
}

// runPopupWindow creates one popup in the lower-left corner and pumps
// its messages until it is destroyed.
func runPopupWindow(text string) error {
	popupMu.Lock()
	popupText = text
	inCountdown := countdownMode
	popupMu.Unlock()

	screenHeight := win.GetSystemMetrics(win.SM_CYSCREEN)
	x := int32(popupMargin)
	y := screenHeight - popupHeight - popupMargin

	hwnd := win.CreateWindowEx(
		win.WS_EX_NOACTIVATE|win.WS_EX_TOOLWINDOW|win.WS_EX_CLIENTEDGE,
		syscall.StringToUTF16Ptr(popupClassName),
		syscall.StringToUTF16Ptr("OCR Result"),
		win.WS_POPUP|win.WS_VISIBLE,
		x, y, popupWidth, popupHeight,
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if hwnd == 0 {
		return errors.New("CreateWindowEx failed")
	}

	// Topmost without stealing focus from whatever the user is doing.
	win.SetWindowPos(hwnd, win.HWND_TOPMOST, 0, 0, 0, 0,
		win.SWP_NOACTIVATE|win.SWP_NOMOVE|win.SWP_NOSIZE)
	win.ShowWindow(hwnd, win.SW_SHOW)
	win.UpdateWindow(hwnd)

	popupMu.Lock()
	popupHwnd = hwnd
	popupMu.Unlock()

	if inCountdown {
		win.SetTimer(hwnd, timerCountdown, 1000, 0)
	} else {
		win.SetTimer(hwnd, timerClose, resultVisibleMs, 0)
	}

	var msg win.MSG
	for {
		ret := win.GetMessage(&msg, 0, 0, 0)
		if ret == 0 { // WM_QUIT
			break
		}
		if ret == -1 {
			log.Printf("Popup: GetMessage error")
			break
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)
	}

	// Drain leftovers so a stale message cannot leak into the next
	// popup's loop.
	for win.PeekMessage(&msg, 0, 0, 0, win.PM_REMOVE) {
	}
	return nil
}

func popupWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		popupMu.Lock()
		text := popupText
		popupMu.Unlock()
		win.SetBkMode(hdc, win.TRANSPARENT)
		rect := win.RECT{Left: 10, Top: 10, Right: popupWidth - 10, Bottom: popupHeight - 10}
		win.DrawTextEx(hdc, syscall.StringToUTF16Ptr(text), -1, &rect,
			win.DT_WORDBREAK|win.DT_NOPREFIX, nil)
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_TIMER:
		switch wParam {
		case timerCountdown:
			countdownTick(hwnd)
		case timerClose:
			win.KillTimer(hwnd, timerClose)
			win.KillTimer(hwnd, timerCountdown)
			win.DestroyWindow(hwnd)
		}
		return 0

	case wmUpdateText:
		popupMu.Lock()
		if countdownMode {
			countdownMode = false
			win.KillTimer(hwnd, timerCountdown)
			win.SetTimer(hwnd, timerClose, resultVisibleMs, 0)
		}
		popupMu.Unlock()
		win.InvalidateRect(hwnd, nil, true)
		return 0

	case win.WM_LBUTTONDOWN, win.WM_RBUTTONDOWN, win.WM_NCLBUTTONDOWN, win.WM_NCRBUTTONDOWN:
		// Any click dismisses the popup.
		win.KillTimer(hwnd, timerClose)
		win.KillTimer(hwnd, timerCountdown)
		win.DestroyWindow(hwnd)
		return 0

	case win.WM_CLOSE:
		win.KillTimer(hwnd, timerClose)
		win.KillTimer(hwnd, timerCountdown)
		win.DestroyWindow(hwnd)
		return 0

	case win.WM_DESTROY:
		popupMu.Lock()
		popupHwnd = 0
		countdownMode = false
		popupMu.Unlock()
		win.PostQuitMessage(0)
		return 0
	}

	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

// countdownTick advances the once-a-second countdown and closes the
// popup when it reaches zero.
func countdownTick(hwnd win.HWND) {
	popupMu.Lock()
	if !countdownMode {
		popupMu.Unlock()
		return
	}
	countdownLeft--
	if countdownLeft <= 0 {
		countdownMode = false
		popupMu.Unlock()
		win.KillTimer(hwnd, timerCountdown)
		win.DestroyWindow(hwnd)
		return
	}
	popupText = countdownText(countdownLeft)
	popupMu.Unlock()
	win.InvalidateRect(hwnd, nil, true)
}
