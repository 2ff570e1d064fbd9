package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"strings"
	"testing"
	"time"

	"screenocr/src/engine"
	"screenocr/src/overlay"
	"screenocr/src/screenshot"
	"screenocr/src/singleinstance"
)

type fakePopup struct {
	countdowns []int
	updates    []string
	closes     int
}

func (p *fakePopup) StartCountdown(seconds int) error {
	p.countdowns = append(p.countdowns, seconds)
	return nil
}

func (p *fakePopup) UpdateText(text string) error {
	p.updates = append(p.updates, text)
	return nil
}

func (p *fakePopup) Close() error {
	p.closes++
	return nil
}

type recordTarget struct {
	results    []*engine.Result
	failures   []error
	successErr error
}

func (t *recordTarget) OnSuccess(res *engine.Result) error {
	t.results = append(t.results, res)
	return t.successErr
}

func (t *recordTarget) OnFailure(err error) error {
	t.failures = append(t.failures, err)
	return nil
}

func testCapture() overlay.Capture {
	img := image.NewRGBA(image.Rect(0, 0, 24, 12))
	return overlay.Capture{
		Region: screenshot.Region{X: 5, Y: 6, Width: 24, Height: 12},
		Image:  img,
	}
}

func selectCapture(c overlay.Capture) SelectFunc {
	return func(ctx context.Context) (overlay.Capture, bool, error) {
		return c, false, nil
	}
}

func TestExecuteHappyPath(t *testing.T) {
	popup := &fakePopup{}
	target := &recordTarget{}
	var seenPath string

	outcome, err := Execute(context.Background(), Options{
		Deadline: time.Second,
		Select:   selectCapture(testCapture()),
		Recognize: func(ctx context.Context, path string) (*engine.Result, error) {
			seenPath = path
			info, statErr := os.Stat(path)
			if statErr != nil {
				t.Errorf("expected temp file to exist during recognition: %v", statErr)
			} else if info.Size() == 0 {
				t.Errorf("expected temp file to hold PNG bytes")
			}
			return &engine.Result{Text: "hello world"}, nil
		},
		Target: target,
		Popup:  popup,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if outcome.Result == nil || outcome.Result.Text != "hello world" {
		t.Errorf("expected recognized text in outcome, got %+v", outcome.Result)
	}
	if outcome.Image == nil {
		t.Errorf("expected crop image in outcome")
	}
	if outcome.Region.Width != 24 || outcome.Region.Height != 12 {
		t.Errorf("expected region passthrough, got %+v", outcome.Region)
	}
	if len(target.results) != 1 {
		t.Fatalf("expected one delivery, got %d", len(target.results))
	}
	if len(popup.countdowns) != 1 || popup.countdowns[0] != 1 {
		t.Errorf("expected 1s countdown for a 1s deadline, got %v", popup.countdowns)
	}
	if len(popup.updates) != 1 || popup.updates[0] != "hello world" {
		t.Errorf("expected popup update with result text, got %v", popup.updates)
	}

	if seenPath == "" {
		t.Fatalf("recognize was never called")
	}
	if _, statErr := os.Stat(seenPath); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("expected temp file removed after session, got %v", statErr)
	}
}

func TestExecuteCancelledSelection(t *testing.T) {
	popup := &fakePopup{}
	target := &recordTarget{}

	_, err := Execute(context.Background(), Options{
		Select: func(ctx context.Context) (overlay.Capture, bool, error) {
			return overlay.Capture{}, true, nil
		},
		Recognize: func(ctx context.Context, path string) (*engine.Result, error) {
			t.Errorf("recognize must not run for a cancelled selection")
			return nil, nil
		},
		Target: target,
		Popup:  popup,
	})
	if !errors.Is(err, ErrSelectionCancelled) {
		t.Fatalf("expected ErrSelectionCancelled, got %v", err)
	}
	if len(target.failures) != 1 || !errors.Is(target.failures[0], ErrSelectionCancelled) {
		t.Errorf("expected cancellation reported to target, got %v", target.failures)
	}
	if len(popup.countdowns) != 0 {
		t.Errorf("expected no countdown for a cancelled selection")
	}
}

func TestExecuteSelectionError(t *testing.T) {
	target := &recordTarget{}
	boom := errors.New("no display")

	_, err := Execute(context.Background(), Options{
		Select: func(ctx context.Context) (overlay.Capture, bool, error) {
			return overlay.Capture{}, false, boom
		},
		Recognize: func(ctx context.Context, path string) (*engine.Result, error) {
			return &engine.Result{}, nil
		},
		Target: target,
		Popup:  &fakePopup{},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected selection error, got %v", err)
	}
	if len(target.failures) != 1 {
		t.Errorf("expected failure delivered to target")
	}
}

func TestExecuteRecognitionErrorClosesPopup(t *testing.T) {
	popup := &fakePopup{}
	target := &recordTarget{}
	boom := errors.New("engine offline")

	_, err := Execute(context.Background(), Options{
		Deadline:  time.Second,
		Select:    selectCapture(testCapture()),
		Recognize: func(ctx context.Context, path string) (*engine.Result, error) { return nil, boom },
		Target:    target,
		Popup:     popup,
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected recognition error, got %v", err)
	}
	if popup.closes != 1 {
		t.Errorf("expected popup closed on failure, got %d closes", popup.closes)
	}
	if len(target.failures) != 1 || !errors.Is(target.failures[0], boom) {
		t.Errorf("expected failure reported, got %v", target.failures)
	}
	if len(popup.updates) != 0 {
		t.Errorf("expected no result update after failure")
	}
}

func TestExecuteDeliveryFailure(t *testing.T) {
	popup := &fakePopup{}
	target := &recordTarget{successErr: errors.New("clipboard error")}

	_, err := Execute(context.Background(), Options{
		Deadline:  time.Second,
		Select:    selectCapture(testCapture()),
		Recognize: func(ctx context.Context, path string) (*engine.Result, error) { return &engine.Result{Text: "x"}, nil },
		Target:    target,
		Popup:     popup,
	})
	if err == nil || !strings.Contains(err.Error(), "clipboard error") {
		t.Fatalf("expected delivery error, got %v", err)
	}
	if popup.closes != 1 {
		t.Errorf("expected popup closed on delivery failure")
	}
	if len(target.failures) != 1 {
		t.Errorf("expected delivery failure reported back, got %v", target.failures)
	}
}

func TestExecuteDeadlineCutsOffSlowEngine(t *testing.T) {
	popup := &fakePopup{}
	target := &recordTarget{}

	started := time.Now()
	_, err := Execute(context.Background(), Options{
		Deadline: 50 * time.Millisecond,
		Select:   selectCapture(testCapture()),
		Recognize: func(ctx context.Context, path string) (*engine.Result, error) {
			// Ignores ctx on purpose, like a blocking cgo backend.
			time.Sleep(2 * time.Second)
			return &engine.Result{Text: "late"}, nil
		},
		Target: target,
		Popup:  popup,
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Errorf("expected prompt deadline return, took %v", elapsed)
	}
	if popup.closes != 1 {
		t.Errorf("expected popup closed on deadline")
	}
}

func TestExecuteRequiresDependencies(t *testing.T) {
	recognize := func(ctx context.Context, path string) (*engine.Result, error) { return nil, nil }

	cases := []struct {
		name string
		opts Options
	}{
		{"missing select", Options{Recognize: recognize, Target: &recordTarget{}}},
		{"missing recognize", Options{Select: selectCapture(testCapture()), Target: &recordTarget{}}},
		{"missing target", Options{Select: selectCapture(testCapture()), Recognize: recognize}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Execute(context.Background(), tc.opts); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestRecognizeCropRejectsNilImage(t *testing.T) {
	_, err := RecognizeCrop(context.Background(), nil, func(ctx context.Context, path string) (*engine.Result, error) {
		return &engine.Result{}, nil
	})
	if err == nil {
		t.Fatalf("expected error for nil image")
	}
}

func TestStdoutTargetWritesText(t *testing.T) {
	var buf bytes.Buffer
	target := StdoutTarget{Writer: &buf}
	if err := target.OnSuccess(&engine.Result{Text: "printed"}); err != nil {
		t.Fatalf("on success: %v", err)
	}
	if buf.String() != "printed" {
		t.Errorf("expected raw text on writer, got %q", buf.String())
	}
}

type fakeConn struct {
	req       singleinstance.Request
	successes []string
	errorMsgs []string
}

func (c *fakeConn) Request() singleinstance.Request { return c.req }

func (c *fakeConn) RespondSuccess(text string) error {
	c.successes = append(c.successes, text)
	return nil
}

func (c *fakeConn) RespondError(msg string) error {
	c.errorMsgs = append(c.errorMsgs, msg)
	return nil
}

func (c *fakeConn) Close() error { return nil }

func TestDelegatedTargetStdoutMode(t *testing.T) {
	conn := &fakeConn{}
	target := DelegatedTarget{Conn: conn, OutputToStdout: true}
	if err := target.OnSuccess(&engine.Result{Text: "delegated"}); err != nil {
		t.Fatalf("on success: %v", err)
	}
	if len(conn.successes) != 1 || conn.successes[0] != "delegated" {
		t.Errorf("expected text sent over connection, got %v", conn.successes)
	}
}

func TestDelegatedTargetReportsFailure(t *testing.T) {
	conn := &fakeConn{}
	target := DelegatedTarget{Conn: conn}
	if err := target.OnFailure(errors.New("engine offline")); err != nil {
		t.Fatalf("on failure: %v", err)
	}
	if len(conn.errorMsgs) != 1 || conn.errorMsgs[0] != "engine offline" {
		t.Errorf("expected error relayed, got %v", conn.errorMsgs)
	}
	if err := target.OnFailure(nil); err != nil {
		t.Fatalf("on failure nil: %v", err)
	}
	if len(conn.errorMsgs) != 2 {
		t.Errorf("expected generic error for nil failure, got %v", conn.errorMsgs)
	}
}

func TestWindowTargetForwardsResult(t *testing.T) {
	sink := &recordSink{}
	target := WindowTarget{Sink: sink}
	res := &engine.Result{Text: "shown"}
	if err := target.OnSuccess(res); err != nil {
		t.Fatalf("on success: %v", err)
	}
	if len(sink.shown) != 1 || sink.shown[0] != res {
		t.Errorf("expected result forwarded to sink")
	}
	if err := (WindowTarget{}).OnSuccess(res); err == nil {
		t.Errorf("expected error for missing sink")
	}
}

type recordSink struct {
	shown []*engine.Result
}

func (s *recordSink) ShowResult(res *engine.Result) {
	s.shown = append(s.shown, res)
}
