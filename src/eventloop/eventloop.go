package eventloop

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"math"
	"time"

	"screenocr/src/engine"
	"screenocr/src/history"
	"screenocr/src/overlay"
	"screenocr/src/popup"
	"screenocr/src/session"
	"screenocr/src/settings"
	"screenocr/src/singleinstance"
	"screenocr/src/worker"
)

// Tray is the tooltip surface the loop updates as it goes busy/idle.
type Tray interface {
	UpdateTooltip(text string)
	SetAboutExtra(text string)
}

// Window is the result window the loop feeds and raises.
type Window interface {
	ShowResult(res *engine.Result)
	Raise()
}

// Popup drives the transient popup; Show is for one-shot messages
// outside the countdown flow.
type Popup interface {
	session.PopupController
	Show(text string) error
}

// RecognizeProvider returns the recognize func for the next job. The app
// swaps the underlying engine adapter when settings change, so the loop
// asks again before every capture.
type RecognizeProvider func() session.RecognizeFunc

// Config wires the loop's owned dependencies. Selector and Recognize are
// required; nil optional surfaces degrade to no-ops.
type Config struct {
	Deadline       time.Duration
	DefaultTooltip string

	Selector  overlay.Selector
	Recognize RecognizeProvider
	Settings  *settings.Store
	History   *history.Manager
	Tray      Tray
	Window    Window
	Popup     Popup
	Server    singleinstance.Server
}

// Loop is the single-threaded coordinator. It owns the busy flag, the
// tray tooltip and the popup; selection runs on the loop goroutine and
// recognition runs on the worker pool. Workers never touch the
// clipboard, tray, history or settings.
type Loop struct {
	deadline       time.Duration
	defaultTooltip string

	selector  overlay.Selector
	recognize RecognizeProvider
	store     *settings.Store
	hist      *history.Manager
	tray      Tray
	window    Window
	popup     Popup
	srv       singleinstance.Server

	pool     *worker.Pool
	busy     bool
	results  chan result
	hotkeyCh chan struct{}
}

type result struct {
	res     *engine.Result
	img     *image.RGBA
	elapsed time.Duration
	err     error
	target  resultTarget
	cancel  context.CancelFunc
}

type resultTarget interface {
	OnSuccess(res *engine.Result) error
	OnProcessError(err error)
	OnDeliveryError(err error)
	Close()
}

type requestCallbacks struct {
	onBusy        func()
	onSelectError func(err error)
	onCancelled   func()
}

// New creates the event loop. A non-positive deadline falls back to 20s.
func New(cfg Config) (*Loop, error) {
	if cfg.Selector == nil {
		return nil, errors.New("Selector is required")
	}
	if cfg.Recognize == nil {
		return nil, errors.New("Recognize is required")
	}

	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = 20 * time.Second
	}
	tooltip := cfg.DefaultTooltip
	if tooltip == "" {
		tooltip = "ScreenOCR"
	}
	p := cfg.Popup
	if p == nil {
		p = stdPopup{}
	}
	srv := cfg.Server
	if srv == nil {
		srv = singleinstance.NewServer()
	}

	return &Loop{
		deadline:       deadline,
		defaultTooltip: tooltip,
		selector:       cfg.Selector,
		recognize:      cfg.Recognize,
		store:          cfg.Settings,
		hist:           cfg.History,
		tray:           cfg.Tray,
		window:         cfg.Window,
		popup:          p,
		srv:            srv,
		pool:           worker.New(1, 0),
		results:        make(chan result, 1),
		hotkeyCh:       make(chan struct{}, 4),
	}, nil
}

// Deadline returns the configured OCR deadline for this loop.
func (l *Loop) Deadline() time.Duration { return l.deadline }

// TriggerCapture posts one capture request into the loop. Posts are
// dropped when the queue is full, so holding the hotkey down does not
// pile up sessions.
func (l *Loop) TriggerCapture() {
	select {
	case l.hotkeyCh <- struct{}{}:
	default:
	}
}

func (l *Loop) setBusy(b bool) {
	l.busy = b
	if l.tray == nil {
		return
	}
	if b {
		l.tray.UpdateTooltip(l.defaultTooltip + ": processing...")
	} else {
		l.tray.UpdateTooltip(l.defaultTooltip)
	}
}

// Run starts the single-instance server and processes hotkey triggers,
// delegated requests and recognition results until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.srv.Start(ctx); err != nil {
		return err
	}
	if p := l.srv.Port(); p > 0 {
		log.Printf("Resident listening on 127.0.0.1:%d", p)
		if l.tray != nil {
			l.tray.SetAboutExtra(fmt.Sprintf("Resident TCP port: %d", p))
		}
	}
	defer l.pool.Close()
	defer l.srv.Close()

	// Accept loop in background to avoid blocking result handling.
	reqCh := make(chan singleinstance.Conn, 4)
	go func() {
		for {
			conn, err := l.srv.Next(ctx)
			if err != nil {
				close(reqCh)
				return
			}
			reqCh <- conn
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.hotkeyCh:
			l.handleHotkey(ctx)
		case conn, ok := <-reqCh:
			if !ok {
				return nil
			}
			l.handleConn(ctx, conn)
		case res := <-l.results:
			l.handleResult(res)
		}
	}
}

func (l *Loop) handleHotkey(ctx context.Context) {
	log.Printf("handleHotkey: called")
	l.startRequest(ctx, hotkeyResultTarget{loop: l}, requestCallbacks{
		onBusy: func() {
			log.Printf("handleHotkey: busy, skipping")
			_ = l.popup.Show("Busy, please retry")
		},
		onSelectError: func(err error) {
			log.Printf("handleHotkey: selection error: %v", err)
			_ = l.popup.Show("Selection error")
		},
		onCancelled: func() {
			log.Printf("handleHotkey: selection cancelled")
		},
	})
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	req := conn.Request()
	if req.Kind == singleinstance.KindShow {
		log.Printf("handleConn: SHOW request")
		if l.window != nil {
			l.window.Raise()
			_ = conn.RespondSuccess("")
		} else {
			_ = conn.RespondError("no window available")
		}
		_ = conn.Close()
		return
	}

	target := newDelegatedResultTarget(conn, req.OutputToStdout)
	l.startRequest(ctx, target, requestCallbacks{
		onBusy: func() {
			target.OnProcessError(errors.New("Busy, please retry"))
			target.Close()
		},
		onSelectError: func(err error) {
			target.OnProcessError(fmt.Errorf("Failed to select region: %w", err))
			target.Close()
		},
		onCancelled: func() {
			target.OnProcessError(session.ErrSelectionCancelled)
			target.Close()
		},
	})
}

func (l *Loop) startRequest(ctx context.Context, target resultTarget, callbacks requestCallbacks) {
	if l.busy {
		if callbacks.onBusy != nil {
			callbacks.onBusy()
		}
		return
	}

	capture, cancelled, err := l.selector.Select(ctx)
	if err != nil {
		if callbacks.onSelectError != nil {
			callbacks.onSelectError(err)
		}
		return
	}
	if cancelled {
		if callbacks.onCancelled != nil {
			callbacks.onCancelled()
		}
		return
	}

	recognize := l.recognize()
	jobCtx, cancel := context.WithTimeout(ctx, l.deadline)
	_ = l.popup.StartCountdown(int(math.Ceil(l.deadline.Seconds())))

	l.setBusy(true)
	img := capture.Image
	submitted := l.pool.Submit(jobCtx, func(jc context.Context) {
		started := time.Now()
		res, jobErr := session.RecognizeCrop(jc, img, recognize)
		l.results <- result{
			res:     res,
			img:     img,
			elapsed: time.Since(started),
			err:     jobErr,
			target:  target,
			cancel:  cancel,
		}
	})
	if !submitted {
		cancel()
		l.setBusy(false)
		_ = l.popup.Close()
		if callbacks.onBusy != nil {
			callbacks.onBusy()
		}
	}
}

func (l *Loop) handleResult(res result) {
	log.Printf("handleResult: called with err=%v", res.err)
	defer func() {
		l.setBusy(false)
		if res.cancel != nil {
			res.cancel()
		}
	}()
	if res.target == nil {
		log.Printf("handleResult: missing target")
		_ = l.popup.Close()
		return
	}
	defer res.target.Close()

	if res.err != nil {
		log.Printf("handleResult: processing error: %v", res.err)
		_ = l.popup.Close()
		res.target.OnProcessError(res.err)
		return
	}

	l.recordHistory(res)

	if err := res.target.OnSuccess(res.res); err != nil {
		log.Printf("handleResult: delivery error: %v", err)
		_ = l.popup.Close()
		res.target.OnDeliveryError(err)
		return
	}

	if l.notificationsEnabled() {
		_ = l.popup.UpdateText(res.res.Text)
	} else {
		_ = l.popup.Close()
	}
}

func (l *Loop) recordHistory(res result) {
	if l.hist == nil || res.res == nil {
		return
	}
	var img image.Image
	if res.img != nil {
		img = res.img
	}
	l.hist.Add(res.res.Text, img, res.elapsed.Seconds())
}

func (l *Loop) autoCopy() bool {
	if l.store == nil {
		return true
	}
	return l.store.Current().AutoCopy
}

func (l *Loop) notificationsEnabled() bool {
	if l.store == nil {
		return true
	}
	return l.store.Current().ShowNotification
}

// hotkeyResultTarget delivers an interactive capture: clipboard when
// auto_copy is on, then the result window.
type hotkeyResultTarget struct {
	loop *Loop
}

func (t hotkeyResultTarget) OnSuccess(res *engine.Result) error {
	if t.loop.autoCopy() {
		if err := (session.ClipboardTarget{}).OnSuccess(res); err != nil {
			return err
		}
	}
	if t.loop.window != nil {
		t.loop.window.ShowResult(res)
	}
	return nil
}

func (t hotkeyResultTarget) OnProcessError(err error) {
	_ = t.loop.popup.Show(processErrorText(err))
}

func (t hotkeyResultTarget) OnDeliveryError(err error) {
	_ = t.loop.popup.Show("Clipboard error")
}

func (t hotkeyResultTarget) Close() {}

func processErrorText(err error) string {
	var unavail *engine.UnavailableError
	if errors.As(err, &unavail) {
		return "OCR engine unavailable"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "OCR timed out"
	}
	return "OCR failed"
}

type delegatedResultTarget struct {
	sink session.DelegatedTarget
	conn singleinstance.Conn
}

func newDelegatedResultTarget(conn singleinstance.Conn, outputToStdout bool) delegatedResultTarget {
	return delegatedResultTarget{
		sink: session.DelegatedTarget{Conn: conn, OutputToStdout: outputToStdout},
		conn: conn,
	}
}

func (t delegatedResultTarget) OnSuccess(res *engine.Result) error {
	return t.sink.OnSuccess(res)
}

func (t delegatedResultTarget) OnProcessError(err error) {
	_ = t.sink.OnFailure(err)
}

func (t delegatedResultTarget) OnDeliveryError(err error) {
	_ = t.sink.OnFailure(err)
}

func (t delegatedResultTarget) Close() {
	if t.conn != nil {
		_ = t.conn.Close()
	}
}

// stdPopup routes to the popup package.
type stdPopup struct{}

func (stdPopup) StartCountdown(timeoutSeconds int) error { return popup.StartCountdown(timeoutSeconds) }
func (stdPopup) UpdateText(text string) error            { return popup.UpdateText(text) }
func (stdPopup) Close() error                            { return popup.Close() }
func (stdPopup) Show(text string) error                  { return popup.Show(text) }
