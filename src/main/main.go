package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"screenocr/src/config"
	"screenocr/src/eventloop"
	"screenocr/src/gui"
	"screenocr/src/hotkey"
	"screenocr/src/logutil"
	"screenocr/src/runtimeinit"
	"screenocr/src/session"
	"screenocr/src/settings"
	"screenocr/src/singleinstance"
	"screenocr/src/tray"
)

const appVersion = "1.0.0"

type mainOptions struct {
	runOnce    bool
	stdout     bool
	apiKeyPath string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"screenocr"}
	}

	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screenocr",
		Short:         "Screenshot OCR utility",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.runOnce {
				return runOnceMode(*opts)
			}
			return runResident(*opts)
		},
	}

	cmd.Flags().BoolVar(&opts.runOnce, "run-once", false, "Capture once, deliver the text, and exit")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "With --run-once, print the text instead of copying it")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to the vision API key file (highest precedence)")

	return cmd
}

// normalizeLegacyArgs maps single-dash long flags from older builds onto
// cobra's double-dash form.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	long := []string{"run-once", "stdout", "api-key-path"}
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range long {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "--" + name + arg[len(name)+1:]
			}
		}
	}

	return normalized
}

type runOnceClient interface {
	TryRunOnce(ctx context.Context, outputToStdout bool) (bool, string, error)
}

// runOnceMode prefers delegating the capture to a running resident over
// booting a second full stack; without one it runs standalone.
func runOnceMode(opts mainOptions) error {
	// Merge .env first so SINGLEINSTANCE_PORT_* applies to the scan.
	_, _ = config.Load()

	var standaloneErr error
	handleRunOnceWithDelegation(opts.stdout, singleinstance.NewClient(), func() {
		standaloneErr = runOnceStandalone(opts)
	})
	return standaloneErr
}

func handleRunOnceWithDelegation(outputToStdout bool, client runOnceClient, fallback func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	delegated, text, err := client.TryRunOnce(ctx, outputToStdout)
	if err != nil {
		log.Printf("Delegation error: %v; falling back to standalone", err)
		fallback()
		return
	}
	if delegated {
		log.Printf("Delegated to resident")
		if outputToStdout {
			fmt.Print(text)
		}
		return
	}
	log.Printf("No resident detected, running standalone")
	fallback()
}

// runOnceStandalone runs one capture session with a locally booted
// runtime and exits. Cancelling the selection is a silent success.
func runOnceStandalone(opts mainOptions) error {
	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:             config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath},
		SetupLogging:            logutil.Setup,
		ShowBlockingEngineError: !opts.stdout,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	enableDPIAwareness()

	var target session.ResultTarget
	visible := time.Duration(0)
	if opts.stdout {
		target = session.StdoutTarget{}
	} else {
		target = session.ClipboardTarget{}
		// Keep the result popup on screen before the process exits.
		visible = 3 * time.Second
	}

	outcome, err := session.Execute(context.Background(), session.Options{
		Deadline:               time.Duration(rt.Config.OCRDeadlineSec) * time.Second,
		Select:                 gui.NewSelector().Select,
		Recognize:              rt.Recognize,
		Target:                 target,
		SuccessVisibleDuration: visible,
	})
	if err != nil {
		if errors.Is(err, session.ErrSelectionCancelled) {
			log.Printf("Selection cancelled, exiting")
			return nil
		}
		return err
	}

	rt.History.Add(outcome.Result.Text, outcome.Image, outcome.Elapsed.Seconds())
	log.Printf("Run-once completed (%d chars)", len(outcome.Result.Text))
	return nil
}

// runResident boots the full stack: tray, result window, global hotkey,
// single-instance server and the event loop. The fyne window owns the
// main goroutine.
func runResident(opts mainOptions) error {
	enableDPIAwareness()

	// Merge .env so the pre-flight scan uses the configured port range.
	_, _ = config.Load()
	startPort, _ := singleinstance.GetPortRangeForDebug()
	addr := fmt.Sprintf("127.0.0.1:%d", startPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("Pre-flight: port %d busy, resident already running", startPort)
		if shown, showErr := singleinstance.NewClient().TryShow(context.Background()); showErr == nil && shown {
			return nil
		}
		return fmt.Errorf("another instance is already running on port %d", startPort)
	}
	// Release the port so the event loop server can re-bind it.
	_ = listener.Close()
	log.Printf("Pre-flight: port %d free, claiming resident duty", startPort)

	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:             config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath},
		SetupLogging:            logutil.Setup,
		ShowBlockingEngineError: true,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	logMonitorConfiguration()

	current := rt.Settings.Current()
	tooltip := fmt.Sprintf("ScreenOCR - Press %s to capture", hotkey.DisplayName(current.Hotkey))
	log.Printf("ScreenOCR %s initialized (engine %s, hotkey %s)", appVersion, current.OCREngine, current.Hotkey)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var loop *eventloop.Loop

	window := gui.NewWindow(gui.WindowConfig{
		Settings: rt.Settings,
		History:  rt.History,
		Version:  appVersion,
		OnQuit:   cancel,
	})

	trayIcon := tray.New(tray.Config{
		Tooltip: tooltip,
		Version: appVersion,
		OnCapture: func() {
			if loop != nil {
				loop.TriggerCapture()
			}
		},
		OnShow:     window.Raise,
		OnSettings: window.Raise,
		OnQuit:     cancel,
	})

	loop, err = eventloop.New(eventloop.Config{
		Deadline:       time.Duration(rt.Config.OCRDeadlineSec) * time.Second,
		DefaultTooltip: tooltip,
		Selector:       gui.NewSelector(),
		Recognize:      func() session.RecognizeFunc { return rt.Recognize },
		Settings:       rt.Settings,
		History:        rt.History,
		Tray:           trayIcon,
		Window:         window,
	})
	if err != nil {
		return err
	}

	hk := hotkey.NewManager()
	if err := hk.Bind(current.Hotkey, loop.TriggerCapture); err != nil {
		log.Printf("Hotkey bind failed: %v", err)
	} else if err := hk.Start(); err != nil {
		log.Printf("Hotkey hook failed: %v", err)
	}
	hk.SetEnabled(current.HotkeyEnabled)
	defer hk.Stop()

	rt.Settings.Subscribe(func(s settings.Settings) {
		hk.SetEnabled(s.HotkeyEnabled)
		if err := hk.Rebind(s.Hotkey); err != nil {
			log.Printf("Hotkey rebind failed: %v", err)
		}
		trayIcon.UpdateTooltip(fmt.Sprintf("ScreenOCR - Press %s to capture", hotkey.DisplayName(s.Hotkey)))
	})

	go trayIcon.Run()

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()

	go func() {
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Event loop stopped: %v", err)
		}
		trayIcon.Quit()
		window.Quit()
	}()

	// Blocks on the fyne main loop until Quit.
	window.Run()
	cancel()
	return nil
}
