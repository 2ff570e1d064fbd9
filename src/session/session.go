package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"math"
	"os"
	"time"

	"screenocr/src/clipboard"
	"screenocr/src/engine"
	"screenocr/src/overlay"
	"screenocr/src/popup"
	"screenocr/src/screenshot"
	"screenocr/src/singleinstance"
)

// ErrSelectionCancelled reports that the user dismissed the overlay
// without confirming a region.
var ErrSelectionCancelled = errors.New("selection cancelled")

// SelectFunc runs the interactive selection and returns the capture.
type SelectFunc func(ctx context.Context) (overlay.Capture, bool, error)

// RecognizeFunc runs OCR over the crop written to path. The session owns
// the file; implementations must not delete it.
type RecognizeFunc func(ctx context.Context, path string) (*engine.Result, error)

// ResultTarget receives the outcome of a session. OnSuccess delivery
// failures are reported back through OnFailure.
type ResultTarget interface {
	OnSuccess(res *engine.Result) error
	OnFailure(err error) error
}

// PopupController drives the transient countdown/result popup.
type PopupController interface {
	StartCountdown(timeoutSeconds int) error
	UpdateText(text string) error
	Close() error
}

// Options wires one session. Select, Recognize and Target are required;
// everything else has defaults.
type Options struct {
	Deadline               time.Duration
	Select                 SelectFunc
	Recognize              RecognizeFunc
	Target                 ResultTarget
	Popup                  PopupController
	SuccessVisibleDuration time.Duration
}

// Outcome is everything a completed session produced. Image is the crop
// that was recognized, kept so callers can thumbnail it for history.
type Outcome struct {
	Result  *engine.Result
	Image   *image.RGBA
	Region  screenshot.Region
	Elapsed time.Duration
}

// Execute runs one capture session end to end: selection, crop to a temp
// PNG, recognition under the deadline, delivery to the target.
func Execute(ctx context.Context, opts Options) (Outcome, error) {
	if opts.Select == nil {
		return Outcome{}, errors.New("Select is required")
	}
	if opts.Recognize == nil {
		return Outcome{}, errors.New("Recognize is required")
	}
	if opts.Target == nil {
		return Outcome{}, errors.New("Target is required")
	}

	capture, cancelled, err := opts.Select(ctx)
	if err != nil {
		_ = opts.Target.OnFailure(err)
		return Outcome{}, err
	}
	if cancelled {
		_ = opts.Target.OnFailure(ErrSelectionCancelled)
		return Outcome{}, ErrSelectionCancelled
	}

	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = 20 * time.Second
	}

	p := opts.Popup
	if p == nil {
		p = defaultPopupController{}
	}

	countdownSeconds := int(math.Ceil(deadline.Seconds()))
	if countdownSeconds < 1 {
		countdownSeconds = 1
	}
	_ = p.StartCountdown(countdownSeconds)

	jobCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	started := time.Now()
	res, err := RecognizeCrop(jobCtx, capture.Image, opts.Recognize)
	elapsed := time.Since(started)
	if err != nil {
		_ = p.Close()
		_ = opts.Target.OnFailure(err)
		return Outcome{}, err
	}

	if err := opts.Target.OnSuccess(res); err != nil {
		_ = p.Close()
		_ = opts.Target.OnFailure(err)
		return Outcome{}, err
	}

	_ = p.UpdateText(res.Text)

	if opts.SuccessVisibleDuration > 0 {
		time.Sleep(opts.SuccessVisibleDuration)
	}

	return Outcome{Result: res, Image: capture.Image, Region: capture.Region, Elapsed: elapsed}, nil
}

// RecognizeCrop owns the temp-file lifecycle for one recognition: the
// crop is written to a fresh temp PNG, recognized by path, and the file
// removed afterwards. Cleanup is best effort.
func RecognizeCrop(ctx context.Context, img image.Image, recognize RecognizeFunc) (*engine.Result, error) {
	if img == nil {
		return nil, errors.New("nothing to recognize")
	}
	if recognize == nil {
		return nil, errors.New("Recognize is required")
	}

	path, err := writeTempPNG(img)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil {
			log.Printf("Session: temp file cleanup failed: %v", rmErr)
		}
	}()

	return recognizeWithDeadline(ctx, recognize, path)
}

func writeTempPNG(img image.Image) (string, error) {
	data, err := screenshot.EncodePNG(img)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp("", "screenocr-*.png")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), nil
}

// recognizeWithDeadline runs the engine call in its own goroutine so a
// backend that ignores cancellation cannot hold the session past its
// deadline.
func recognizeWithDeadline(ctx context.Context, recognize RecognizeFunc, path string) (*engine.Result, error) {
	type outcome struct {
		res *engine.Result
		err error
	}
	resCh := make(chan outcome, 1)

	go func() {
		res, err := recognize(ctx, path)
		resCh <- outcome{res: res, err: err}
	}()

	select {
	case r := <-resCh:
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type defaultPopupController struct{}

func (defaultPopupController) StartCountdown(timeoutSeconds int) error {
	return popup.StartCountdown(timeoutSeconds)
}

func (defaultPopupController) UpdateText(text string) error {
	return popup.UpdateText(text)
}

func (defaultPopupController) Close() error {
	return popup.Close()
}

// ClipboardTarget copies the recognized text to the system clipboard.
type ClipboardTarget struct{}

func (ClipboardTarget) OnSuccess(res *engine.Result) error {
	return clipboard.Write(res.Text)
}

func (ClipboardTarget) OnFailure(err error) error {
	return nil
}

// StdoutTarget prints the recognized text, for run-once --stdout mode.
type StdoutTarget struct {
	Writer io.Writer
}

func (t StdoutTarget) OnSuccess(res *engine.Result) error {
	w := t.Writer
	if w == nil {
		w = os.Stdout
	}
	_, err := fmt.Fprint(w, res.Text)
	return err
}

func (t StdoutTarget) OnFailure(err error) error {
	return nil
}

// DelegatedTarget answers a run-once client over its single-instance
// connection: stdout mode sends the text back, clipboard mode writes the
// resident's clipboard and sends an empty success.
type DelegatedTarget struct {
	Conn           singleinstance.Conn
	OutputToStdout bool
}

func (t DelegatedTarget) OnSuccess(res *engine.Result) error {
	if t.Conn == nil {
		return errors.New("delegated target missing connection")
	}
	if t.OutputToStdout {
		return t.Conn.RespondSuccess(res.Text)
	}
	if err := clipboard.Write(res.Text); err != nil {
		return fmt.Errorf("clipboard error: %w", err)
	}
	return t.Conn.RespondSuccess("")
}

func (t DelegatedTarget) OnFailure(err error) error {
	if t.Conn == nil {
		return nil
	}
	if err == nil {
		return t.Conn.RespondError("unknown session error")
	}
	return t.Conn.RespondError(err.Error())
}

// ResultSink is anything that can present a full recognition result,
// normally the result window.
type ResultSink interface {
	ShowResult(res *engine.Result)
}

// WindowTarget forwards the result to an open result window.
type WindowTarget struct {
	Sink ResultSink
}

func (t WindowTarget) OnSuccess(res *engine.Result) error {
	if t.Sink == nil {
		return errors.New("window target missing sink")
	}
	t.Sink.ShowResult(res)
	return nil
}

func (t WindowTarget) OnFailure(err error) error {
	return nil
}
