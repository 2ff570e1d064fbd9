// Package runtimeinit assembles the runtime shared by the resident app
// and the standalone run-once path: process config, settings store,
// history manager, clipboard and the resolved OCR engine. The engine
// adapter is picked once here and swapped only when the engine or
// language setting changes; nothing downstream branches on engine kind.
package runtimeinit

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"screenocr/src/clipboard"
	"screenocr/src/config"
	"screenocr/src/engine"
	"screenocr/src/history"
	"screenocr/src/notification"
	"screenocr/src/settings"
)

type Options struct {
	LoadOptions config.LoadOptions

	SetupLogging func(enableFileLogging bool)

	// ShowBlockingEngineError pops a modal dialog when the engine cannot
	// be constructed at startup. The resident app wants it; the CLI-style
	// paths report on stderr instead.
	ShowBlockingEngineError bool
}

// Runtime is the wired application core handed to the entry points.
type Runtime struct {
	Config   *config.Config
	Settings *settings.Store
	History  *history.Manager

	mu      sync.Mutex
	eng     engine.Engine
	engErr  error
	engKind string
	engLang string
}

// Bootstrap loads configuration and settings, initializes the clipboard
// and resolves the OCR engine. An engine failure here is the only fatal
// path; later re-resolution failures just disable recognition until the
// settings change again.
func Bootstrap(opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging)
	}

	settingsPath, err := settings.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve settings path: %w", err)
	}
	store := settings.NewStore(settingsPath)

	hist := history.NewManager(filepath.Dir(settingsPath))
	hist.SetMaxRecords(store.Current().HistoryMaxRecords)

	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
	}

	rt := &Runtime{
		Config:   cfg,
		Settings: store,
		History:  hist,
	}

	if err := rt.resolveEngine(store.Current()); err != nil {
		if opts.ShowBlockingEngineError {
			notification.ShowBlockingError("OCR engine unavailable",
				fmt.Sprintf("Startup check failed: %v", err))
		}
		return nil, err
	}

	store.Subscribe(func(s settings.Settings) {
		hist.SetMaxRecords(s.HistoryMaxRecords)
		if err := rt.resolveEngine(s); err != nil {
			log.Printf("Engine re-resolution failed, recognition disabled: %v", err)
		}
	})
	if err := store.Watch(); err != nil {
		log.Printf("Settings watch unavailable: %v", err)
	}

	return rt, nil
}

// resolveEngine swaps the adapter when the engine or language selection
// changed. On failure the old adapter is gone and Recognize surfaces the
// construction error until a later settings change succeeds.
func (rt *Runtime) resolveEngine(s settings.Settings) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.eng != nil && rt.engKind == s.OCREngine && rt.engLang == s.OCRLanguage {
		return nil
	}

	if rt.eng != nil {
		_ = rt.eng.Close()
		rt.eng = nil
	}

	eng, err := engine.New(engine.Config{
		Kind:      s.OCREngine,
		Language:  s.OCRLanguage,
		Endpoint:  rt.Config.PaddleEndpoint,
		APIKey:    rt.Config.APIKey,
		Model:     rt.Config.Model,
		Providers: rt.Config.Providers,
	})
	if err != nil {
		rt.engErr = err
		return err
	}

	log.Printf("OCR engine resolved: %s (language %s)", eng.Name(), s.OCRLanguage)
	rt.eng = eng
	rt.engErr = nil
	rt.engKind = s.OCREngine
	rt.engLang = s.OCRLanguage
	return nil
}

// Recognize runs one recognition against the current adapter. Document
// mode follows the doc_use_* toggles at call time.
func (rt *Runtime) Recognize(ctx context.Context, path string) (*engine.Result, error) {
	rt.mu.Lock()
	eng := rt.eng
	engErr := rt.engErr
	rt.mu.Unlock()

	if eng == nil {
		if engErr != nil {
			return nil, engErr
		}
		return nil, fmt.Errorf("no ocr engine resolved")
	}

	s := rt.Settings.Current()
	req := engine.Request{
		Path:     path,
		Language: s.OCRLanguage,
	}
	if s.DocOptionsEnabled() {
		req.Document = true
		req.Doc = engine.DocOptions{
			TableRecognition:   s.DocUseTableRecognition,
			FormulaRecognition: s.DocUseFormulaRecognition,
			SealRecognition:    s.DocUseSealRecognition,
			ChartRecognition:   s.DocUseChartRecognition,
			DocOrientation:     s.DocUseDocOrientation,
			DocUnwarping:       s.DocUseDocUnwarping,
		}
	}
	return eng.Recognize(ctx, req)
}

// Close releases the engine and stops the settings watcher.
func (rt *Runtime) Close() {
	rt.mu.Lock()
	if rt.eng != nil {
		_ = rt.eng.Close()
		rt.eng = nil
	}
	rt.mu.Unlock()
	_ = rt.Settings.Close()
}
