//go:build windows

package gui

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"
	"os"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"

	"screenocr/src/geometry"
	"screenocr/src/overlay"
	"screenocr/src/screenshot"
)

const (
	escPollTimerID    = 1
	escPollIntervalMs = 25

	// dimAlpha is the black veil over unselected pixels; the selection
	// shows the undimmed surface through it.
	dimAlpha = 110

	accentColorRef = win.COLORREF(0x00D47800) // BGR for (0,120,212)
	hintColorRef   = win.COLORREF(0x00FFFFFF)
)

var (
	user32DLL                    = syscall.NewLazyDLL("user32.dll")
	procAllowSetForegroundWindow = user32DLL.NewProc("AllowSetForegroundWindow")
	procGetAsyncKeyState         = user32DLL.NewProc("GetAsyncKeyState")

	gdi32DLL      = syscall.NewLazyDLL("gdi32.dll")
	procCreatePen = gdi32DLL.NewProc("CreatePen")
	procRectangle = gdi32DLL.NewProc("Rectangle")
)

// The window procedure cannot close over locals, so the running driver
// sits in a package slot for the duration of one selection. The event
// loop serializes selections, the mutex only guards against misuse.
var (
	activeMu     sync.Mutex
	activeDriver *overlayDriver
)

// NewSelector returns the interactive region selector for this platform.
func NewSelector() overlay.Selector {
	return win32Selector{}
}

type win32Selector struct{}

func (win32Selector) Select(ctx context.Context) (overlay.Capture, bool, error) {
	if err := ctx.Err(); err != nil {
		return overlay.Capture{}, false, err
	}
	return runSelection()
}

// overlayDriver owns one fullscreen overlay window and feeds its input
// into a selection session.
type overlayDriver struct {
	session *overlay.Session
	surface *screenshot.Surface
	bounds  geometry.Rect
	hwnd    win.HWND

	cross win.HCURSOR

	// GDI resources, created lazily on first paint and torn down after
	// the message loop ends.
	srcDC   win.HDC
	srcBmp  win.HBITMAP
	dimDC   win.HDC
	dimBmp  win.HBITMAP
	backDC  win.HDC
	backBmp win.HBITMAP

	escWasDown bool
}

// driverGrab maps the session's pointer grab onto SetCapture. Keyboard
// ownership needs no explicit grab: the fullscreen topmost window holds
// focus for the whole session.
type driverGrab struct {
	d *overlayDriver
}

func (g driverGrab) AcquirePointer() {
	if g.d.hwnd != 0 {
		win.SetCapture(g.d.hwnd)
	}
}

func (g driverGrab) ReleasePointer()  { win.ReleaseCapture() }
func (g driverGrab) AcquireKeyboard() {}
func (g driverGrab) ReleaseKeyboard() {}

func runSelection() (overlay.Capture, bool, error) {
	// The window, its message loop and all GDI work must stay on one OS
	// thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	log.Printf("OVERLAY: Starting region selection")

	surface, err := screenshot.Capture()
	if err != nil {
		return overlay.Capture{}, false, fmt.Errorf("capture surface: %w", err)
	}
	bounds := surface.Bounds()
	log.Printf("OVERLAY: Surface %s", bounds)

	d := &overlayDriver{
		surface: surface,
		bounds:  bounds,
	}
	d.session = overlay.NewSession(surface, driverGrab{d})

	activeMu.Lock()
	if activeDriver != nil {
		activeMu.Unlock()
		return overlay.Capture{}, false, fmt.Errorf("a selection overlay is already running")
	}
	activeDriver = d
	activeMu.Unlock()
	defer func() {
		activeMu.Lock()
		activeDriver = nil
		activeMu.Unlock()
	}()

	d.cross = win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_CROSS))
	if d.cross == 0 {
		log.Printf("OVERLAY: Failed to load cross cursor")
	}

	classNameStr := fmt.Sprintf("ScreenOCROverlay_%d", time.Now().UnixNano())
	className := syscall.StringToUTF16Ptr(classNameStr)
	wndClass := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		Style:         win.CS_HREDRAW | win.CS_VREDRAW,
		LpfnWndProc:   syscall.NewCallback(overlayWndProc),
		HInstance:     win.GetModuleHandle(nil),
		HCursor:       d.cross,
		HbrBackground: 0,
		LpszClassName: className,
	}
	if atom := win.RegisterClassEx(&wndClass); atom == 0 {
		return overlay.Capture{}, false, fmt.Errorf("register overlay window class")
	}
	defer win.UnregisterClass(className)

	d.hwnd = win.CreateWindowEx(
		win.WS_EX_TOPMOST,
		className,
		syscall.StringToUTF16Ptr("ScreenOCR - Select Region"),
		win.WS_POPUP|win.WS_VISIBLE,
		int32(bounds.X), int32(bounds.Y), int32(bounds.W), int32(bounds.H),
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if d.hwnd == 0 {
		return overlay.Capture{}, false, fmt.Errorf("create overlay window")
	}
	log.Printf("OVERLAY: Window created, hwnd=%v bounds=%s", d.hwnd, bounds)

	// Full raise dance. A popup created from a background process does
	// not reliably take the foreground without it.
	win.ShowWindow(d.hwnd, win.SW_SHOW)
	procAllowSetForegroundWindow.Call(uintptr(os.Getpid()))
	win.SetForegroundWindow(d.hwnd)
	win.BringWindowToTop(d.hwnd)
	win.SetFocus(d.hwnd)
	win.UpdateWindow(d.hwnd)

	// Fullscreen popups occasionally miss WM_KEYDOWN for Escape when
	// focus is stolen mid-session; poll it as a fallback.
	if win.SetTimer(d.hwnd, escPollTimerID, escPollIntervalMs, 0) == 0 {
		log.Printf("OVERLAY: Failed to start escape poll timer")
	}

	var msg win.MSG
	for !d.session.State().Terminal() {
		ret := win.GetMessage(&msg, 0, 0, 0)
		if ret == 0 { // WM_QUIT
			log.Printf("OVERLAY: WM_QUIT received")
			break
		}
		if ret == -1 {
			log.Printf("OVERLAY: GetMessage error")
			break
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)
	}

	win.KillTimer(d.hwnd, escPollTimerID)
	win.DestroyWindow(d.hwnd)
	d.releaseCanvases()

	switch d.session.State() {
	case overlay.StateCaptured:
		region := d.session.Result()
		crop, err := surface.Crop(region.Rect())
		if err != nil {
			return overlay.Capture{}, false, fmt.Errorf("crop selection: %w", err)
		}
		log.Printf("OVERLAY: Selection completed: %+v", region)
		return overlay.Capture{Region: region, Image: crop}, false, nil
	default:
		log.Printf("OVERLAY: Selection cancelled")
		return overlay.Capture{}, true, nil
	}
}

func overlayWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	activeMu.Lock()
	d := activeDriver
	activeMu.Unlock()
	if d == nil {
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	}

	switch msg {
	case win.WM_LBUTTONDOWN:
		pos := d.eventPos(lParam)
		log.Printf("OVERLAY: Mouse down at (%d, %d)", pos.X, pos.Y)
		d.session.Handle(overlay.PointerDown{Pos: pos})
		d.repaint(hwnd)
		return 0

	case win.WM_MOUSEMOVE:
		d.session.Handle(overlay.PointerMove{Pos: d.eventPos(lParam)})
		d.repaint(hwnd)
		return 0

	case win.WM_LBUTTONUP:
		pos := d.eventPos(lParam)
		outcome := d.session.Handle(overlay.PointerUp{Pos: pos})
		log.Printf("OVERLAY: Mouse up at (%d, %d), outcome=%d", pos.X, pos.Y, outcome)
		if outcome == overlay.OutcomeDiscarded {
			log.Printf("OVERLAY: Selection below %d px, waiting for another drag", overlay.MinSelectionSpan)
		}
		d.repaint(hwnd)
		return 0

	case win.WM_KEYDOWN:
		switch wParam {
		case uintptr(win.VK_ESCAPE):
			d.escWasDown = true
			log.Printf("OVERLAY: Escape pressed, cancelling")
			d.session.Handle(overlay.Cancel{})
		case uintptr(win.VK_LEFT):
			d.session.Handle(overlay.Nudge{Dir: overlay.DirLeft, Fast: shiftDown()})
		case uintptr(win.VK_RIGHT):
			d.session.Handle(overlay.Nudge{Dir: overlay.DirRight, Fast: shiftDown()})
		case uintptr(win.VK_UP):
			d.session.Handle(overlay.Nudge{Dir: overlay.DirUp, Fast: shiftDown()})
		case uintptr(win.VK_DOWN):
			d.session.Handle(overlay.Nudge{Dir: overlay.DirDown, Fast: shiftDown()})
		}
		d.repaint(hwnd)
		return 0

	case win.WM_KEYUP, win.WM_SYSKEYUP:
		if wParam == uintptr(win.VK_ESCAPE) {
			d.escWasDown = false
		}
		return 0

	case win.WM_TIMER:
		if wParam == escPollTimerID {
			d.pollEscape()
		}
		return 0

	case win.WM_SETCURSOR:
		if d.cross != 0 {
			win.SetCursor(d.cross)
		}
		return 1

	case win.WM_NCHITTEST:
		// Everything is client area so the window sees all mouse input.
		return uintptr(win.HTCLIENT)

	case win.WM_ERASEBKGND:
		// The paint handler covers every pixel.
		return 1

	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		d.paint(hdc)
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_DESTROY:
		// No PostQuitMessage: the loop exits on the terminal session
		// state, and a stray WM_QUIT left in the thread queue would
		// instantly cancel the next selection.
		return 0
	}

	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

// eventPos converts mouse lParam client coordinates to virtual-screen
// coordinates. The window origin sits at the surface origin.
func (d *overlayDriver) eventPos(lParam uintptr) geometry.Point {
	x := int(int16(win.LOWORD(uint32(lParam))))
	y := int(int16(win.HIWORD(uint32(lParam))))
	return geometry.Point{X: x + d.bounds.X, Y: y + d.bounds.Y}
}

func (d *overlayDriver) repaint(hwnd win.HWND) {
	win.InvalidateRect(hwnd, nil, false)
	win.UpdateWindow(hwnd)
}

func shiftDown() bool {
	state, _, _ := procGetAsyncKeyState.Call(uintptr(win.VK_SHIFT))
	return uint16(state)&0x8000 != 0
}

// pollEscape is the fallback for missed WM_KEYDOWN, with edge detection
// so one press cancels once.
func (d *overlayDriver) pollEscape() {
	state, _, _ := procGetAsyncKeyState.Call(uintptr(win.VK_ESCAPE))
	s := uint16(state)
	down := s&0x8000 != 0
	pressed := s&0x0001 != 0
	if !d.escWasDown && (down || pressed) {
		log.Printf("OVERLAY: Escape detected via polling, cancelling")
		d.session.Handle(overlay.Cancel{})
		d.repaint(d.hwnd)
	}
	d.escWasDown = down
}

// paint renders one frame into the back buffer and blits it in a single
// BitBlt to keep the overlay flicker free.
func (d *overlayDriver) paint(hdc win.HDC) {
	if !d.ensureCanvases(hdc) {
		return
	}

	w := int32(d.bounds.W)
	h := int32(d.bounds.H)

	win.BitBlt(d.backDC, 0, 0, w, h, d.dimDC, 0, 0, win.SRCCOPY)

	if rect, ok := d.session.Rect(); ok && !rect.Empty() {
		c := d.toClient(rect)
		// The selection shows the undimmed surface.
		win.BitBlt(d.backDC, int32(c.X), int32(c.Y), int32(c.W), int32(c.H),
			d.srcDC, int32(c.X), int32(c.Y), win.SRCCOPY)
		d.drawBorder(c)
		d.drawSizeLabel(rect)
	}

	mag := d.session.Magnify()
	magPos := geometry.Point{X: mag.Pos.X - d.bounds.X, Y: mag.Pos.Y - d.bounds.Y}
	blitImage(d.backDC, mag.Tile, int32(magPos.X), int32(magPos.Y))
	d.drawLabel(mag.CoordText, int32(magPos.X), int32(magPos.Y+overlay.MagnifierSize+4))

	if d.session.HintVisible() {
		d.drawLabel("Drag to select a region", 16, 16)
		d.drawLabel("Arrow keys nudge, Shift widens the step, ESC cancels", 16, 38)
	}

	win.BitBlt(hdc, 0, 0, w, h, d.backDC, 0, 0, win.SRCCOPY)
}

func (d *overlayDriver) drawBorder(c geometry.Rect) {
	pen, _, _ := procCreatePen.Call(0, 2, uintptr(accentColorRef))
	oldPen := win.SelectObject(d.backDC, win.HGDIOBJ(pen))
	oldBrush := win.SelectObject(d.backDC, win.GetStockObject(win.NULL_BRUSH))

	procRectangle.Call(uintptr(d.backDC),
		uintptr(int32(c.X)), uintptr(int32(c.Y)),
		uintptr(int32(c.Right())), uintptr(int32(c.Bottom())))

	win.SelectObject(d.backDC, oldPen)
	win.SelectObject(d.backDC, oldBrush)
	win.DeleteObject(win.HGDIOBJ(pen))
}

func (d *overlayDriver) drawSizeLabel(rect geometry.Rect) {
	text := d.session.SizeText()
	if text == "" {
		return
	}
	utf16, err := syscall.UTF16FromString(text)
	if err != nil {
		return
	}
	var extent win.SIZE
	win.GetTextExtentPoint32(d.backDC, &utf16[0], int32(len(utf16)-1), &extent)
	pos := overlay.SizeLabelPos(rect, int(extent.CX), int(extent.CY), d.bounds)
	d.drawLabel(text, int32(pos.X-d.bounds.X), int32(pos.Y-d.bounds.Y))
}

func (d *overlayDriver) drawLabel(text string, x, y int32) {
	win.SetBkMode(d.backDC, win.TRANSPARENT)
	win.SetTextColor(d.backDC, hintColorRef)
	win.TextOut(d.backDC, x, y, syscall.StringToUTF16Ptr(text), int32(len(text)))
}

func (d *overlayDriver) toClient(r geometry.Rect) geometry.Rect {
	return geometry.Rect{X: r.X - d.bounds.X, Y: r.Y - d.bounds.Y, W: r.W, H: r.H}
}

// ensureCanvases builds the session-long GDI surfaces on first paint: the
// raw surface, its dimmed copy and the back buffer.
func (d *overlayDriver) ensureCanvases(hdc win.HDC) bool {
	if d.backDC != 0 {
		return true
	}

	var err error
	d.srcDC, d.srcBmp, err = dibFromImage(hdc, d.surface.Image())
	if err != nil {
		log.Printf("OVERLAY: Source canvas failed: %v", err)
		return false
	}

	d.dimDC, d.dimBmp, err = dibFromImage(hdc, dimmedCopy(d.surface.Image()))
	if err != nil {
		log.Printf("OVERLAY: Dim canvas failed: %v", err)
		return false
	}

	d.backDC = win.CreateCompatibleDC(hdc)
	d.backBmp = win.CreateCompatibleBitmap(hdc, int32(d.bounds.W), int32(d.bounds.H))
	if d.backDC == 0 || d.backBmp == 0 {
		log.Printf("OVERLAY: Back buffer failed")
		return false
	}
	win.SelectObject(d.backDC, win.HGDIOBJ(d.backBmp))
	return true
}

func (d *overlayDriver) releaseCanvases() {
	for _, dc := range []win.HDC{d.srcDC, d.dimDC, d.backDC} {
		if dc != 0 {
			win.DeleteDC(dc)
		}
	}
	for _, bmp := range []win.HBITMAP{d.srcBmp, d.dimBmp, d.backBmp} {
		if bmp != 0 {
			win.DeleteObject(win.HGDIOBJ(bmp))
		}
	}
	d.srcDC, d.dimDC, d.backDC = 0, 0, 0
	d.srcBmp, d.dimBmp, d.backBmp = 0, 0, 0
}

func dimmedCopy(src *image.RGBA) *image.RGBA {
	dim := image.NewRGBA(src.Bounds())
	draw.Draw(dim, dim.Bounds(), src, src.Bounds().Min, draw.Src)
	veil := image.NewUniform(color.RGBA{A: dimAlpha})
	draw.Draw(dim, dim.Bounds(), veil, image.Point{}, draw.Over)
	return dim
}

// dibFromImage copies img into a 32-bit top-down DIB selected into its
// own memory DC. Pixels go in as BGRA.
func dibFromImage(ref win.HDC, img *image.RGBA) (win.HDC, win.HBITMAP, error) {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("empty image")
	}

	memDC := win.CreateCompatibleDC(ref)
	if memDC == 0 {
		return 0, 0, fmt.Errorf("CreateCompatibleDC failed")
	}

	bi := win.BITMAPINFO{
		BmiHeader: win.BITMAPINFOHEADER{
			BiSize:        uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
			BiWidth:       int32(w),
			BiHeight:      -int32(h),
			BiPlanes:      1,
			BiBitCount:    32,
			BiCompression: win.BI_RGB,
		},
	}

	var bits unsafe.Pointer
	bmp := win.CreateDIBSection(memDC, &bi.BmiHeader, win.DIB_RGB_COLORS, &bits, 0, 0)
	if bmp == 0 {
		win.DeleteDC(memDC)
		return 0, 0, fmt.Errorf("CreateDIBSection failed")
	}
	win.SelectObject(memDC, win.HGDIOBJ(bmp))

	stride := ((w*32 + 31) &^ 31) / 8
	dst := unsafe.Slice((*byte)(bits), stride*h)
	for y := 0; y < h; y++ {
		srcRow := img.Pix[y*img.Stride : y*img.Stride+w*4]
		dstRow := dst[y*stride : y*stride+w*4]
		for x := 0; x < w*4; x += 4 {
			dstRow[x] = srcRow[x+2]
			dstRow[x+1] = srcRow[x+1]
			dstRow[x+2] = srcRow[x]
			dstRow[x+3] = srcRow[x+3]
		}
	}
	return memDC, bmp, nil
}

// blitImage draws a small RGBA image (magnifier tile) through a throwaway
// DIB.
func blitImage(dst win.HDC, img *image.RGBA, x, y int32) {
	dc, bmp, err := dibFromImage(dst, img)
	if err != nil {
		return
	}
	win.BitBlt(dst, x, y, int32(img.Bounds().Dx()), int32(img.Bounds().Dy()), dc, 0, 0, win.SRCCOPY)
	win.DeleteDC(dc)
	win.DeleteObject(win.HGDIOBJ(bmp))
}
