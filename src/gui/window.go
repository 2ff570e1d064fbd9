package gui

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"log"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"github.com/disintegration/imaging"

	"screenocr/src/clipboard"
	"screenocr/src/engine"
	"screenocr/src/history"
	"screenocr/src/hotkey"
	"screenocr/src/settings"
)

// WindowConfig wires the result window to its owned collaborators.
type WindowConfig struct {
	Settings *settings.Store
	History  *history.Manager
	Version  string
	OnQuit   func()
}

// Window is the main application window: result view, history browser and
// settings form in tabs. ShowResult and Raise are safe from any goroutine;
// everything else runs on the fyne thread.
type Window struct {
	cfg  WindowConfig
	app  fyne.App
	win  fyne.Window
	tabs *container.AppTabs

	result    *engine.Result
	text      *widget.Entry
	conf      *widget.Label
	threshold *widget.Slider
	threshLbl *widget.Label
	editBtn   *widget.Button

	search   *widget.Entry
	list     *widget.List
	visible  []history.Record
	selected int
	thumb    *canvas.Image
	detail   *widget.Label

	form      *settingsForm
	shortcuts []fyne.Shortcut
}

func NewWindow(cfg WindowConfig) *Window {
	w := &Window{cfg: cfg, selected: -1}
	w.app = fyneapp.NewWithID("io.screenocr.desktop")

	current := cfg.Settings.Current()
	w.app.Settings().SetTheme(newTheme(current.Theme))

	w.win = w.app.NewWindow("ScreenOCR")
	w.win.Resize(fyne.NewSize(760, 520))
	w.win.SetCloseIntercept(w.handleClose)

	w.tabs = container.NewAppTabs(
		container.NewTabItem("Result", w.buildResultTab()),
		container.NewTabItem("History", w.buildHistoryTab()),
		container.NewTabItem("Settings", w.buildSettingsTab()),
	)
	w.win.SetContent(w.tabs)

	w.bindShortcuts(current)
	cfg.Settings.Subscribe(func(s settings.Settings) {
		fyne.Do(func() {
			w.app.Settings().SetTheme(newTheme(s.Theme))
			w.bindShortcuts(s)
			w.form.load(s)
		})
	})
	return w
}

// Run shows the window unless start_minimized asks otherwise and blocks
// on the fyne main loop. Must be called from the main goroutine.
func (w *Window) Run() {
	if !w.cfg.Settings.Current().StartMinimized {
		w.win.Show()
	}
	w.app.Run()
}

// Quit tears the window down. Safe from any goroutine.
func (w *Window) Quit() {
	fyne.Do(func() { w.app.Quit() })
}

func (w *Window) handleClose() {
	if w.cfg.Settings.Current().MinimizeToTray {
		w.win.Hide()
		return
	}
	if w.cfg.OnQuit != nil {
		w.cfg.OnQuit()
	}
	w.app.Quit()
}

// ShowResult loads a recognition into the result tab and raises the
// window.
func (w *Window) ShowResult(res *engine.Result) {
	if res == nil {
		return
	}
	fyne.Do(func() {
		w.result = res
		w.threshold.SetValue(0)
		w.text.SetText(res.Text)
		w.conf.SetText(confidenceText(res))
		w.tabs.SelectIndex(0)
		w.refreshHistory()
		w.win.Show()
		w.win.RequestFocus()
	})
}

// Raise brings the window to the front, e.g. for a second instance's
// SHOW request.
func (w *Window) Raise() {
	fyne.Do(func() {
		w.win.Show()
		w.win.RequestFocus()
	})
}

// --- result tab ---

func (w *Window) buildResultTab() fyne.CanvasObject {
	w.text = widget.NewMultiLineEntry()
	w.text.Wrapping = fyne.TextWrapWord
	w.text.SetPlaceHolder("Recognized text appears here")
	w.text.Disable()

	w.conf = widget.NewLabel("")
	w.threshLbl = widget.NewLabel("Hide lines below: off")
	w.threshold = widget.NewSlider(0, 100)
	w.threshold.Step = 5
	w.threshold.OnChanged = w.applyThreshold

	copyBtn := widget.NewButton("Copy", w.copyResult)
	saveBtn := widget.NewButton("Save...", w.saveResult)
	w.editBtn = widget.NewButton("Edit", w.toggleEdit)

	controls := container.NewHBox(copyBtn, saveBtn, w.editBtn, w.conf)
	filter := container.NewBorder(nil, nil, w.threshLbl, nil, w.threshold)
	return container.NewBorder(controls, filter, nil, nil, w.text)
}

// applyThreshold regenerates the text from the kept lines. Filtering
// always starts from the recognized lines, so raising and lowering the
// bar round-trips; manual edits are replaced.
func (w *Window) applyThreshold(v float64) {
	if v <= 0 {
		w.threshLbl.SetText("Hide lines below: off")
	} else {
		w.threshLbl.SetText(fmt.Sprintf("Hide lines below: %.0f%%", v))
	}
	if w.result == nil || len(w.result.Lines) == 0 {
		return
	}
	if v <= 0 {
		w.text.SetText(w.result.Text)
		return
	}
	var kept []string
	for _, l := range w.result.Lines {
		if l.Confidence*100.0 >= v {
			kept = append(kept, l.Text)
		}
	}
	w.text.SetText(strings.Join(kept, "\n"))
}

func (w *Window) copyResult() {
	if err := clipboard.Write(w.text.Text); err != nil {
		log.Printf("Window: clipboard write failed: %v", err)
		dialog.ShowError(err, w.win)
	}
}

func (w *Window) saveResult() {
	if strings.TrimSpace(w.text.Text) == "" {
		return
	}
	dialog.ShowFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, w.win)
			return
		}
		if wc == nil {
			return
		}
		defer wc.Close()
		if _, err := wc.Write([]byte(w.text.Text)); err != nil {
			dialog.ShowError(err, w.win)
		}
	}, w.win)
}

func (w *Window) toggleEdit() {
	if w.text.Disabled() {
		w.text.Enable()
		w.editBtn.SetText("Lock")
	} else {
		w.text.Disable()
		w.editBtn.SetText("Edit")
	}
}

func confidenceText(res *engine.Result) string {
	if res == nil || res.AvgConfidence <= 0 {
		return ""
	}
	return fmt.Sprintf("Avg confidence: %.1f%%", res.AvgConfidence*100)
}

// --- history tab ---

func (w *Window) buildHistoryTab() fyne.CanvasObject {
	w.search = widget.NewEntry()
	w.search.SetPlaceHolder("Search history")
	w.search.OnChanged = func(string) { w.refreshHistory() }

	w.list = widget.NewList(
		func() int { return len(w.visible) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, obj fyne.CanvasObject) {
			if i < 0 || i >= len(w.visible) {
				return
			}
			obj.(*widget.Label).SetText(listLine(w.visible[i]))
		},
	)
	w.list.OnSelected = w.showRecord
	w.list.OnUnselected = func(widget.ListItemID) { w.selected = -1 }

	w.thumb = &canvas.Image{FillMode: canvas.ImageFillContain}
	w.thumb.SetMinSize(fyne.NewSize(160, 120))
	w.detail = widget.NewLabel("")
	w.detail.Wrapping = fyne.TextWrapWord

	restore := widget.NewButton("Restore", w.restoreSelected)
	remove := widget.NewButton("Delete", w.deleteSelected)
	clear := widget.NewButton("Clear All", w.clearHistory)

	side := container.NewVBox(w.thumb, w.detail, restore, remove, clear)
	content := container.NewBorder(w.search, nil, nil, side, w.list)
	w.refreshHistory()
	return content
}

func (w *Window) refreshHistory() {
	query := strings.TrimSpace(w.search.Text)
	if query == "" {
		w.visible = w.cfg.History.Records(0, 0)
	} else {
		w.visible = w.cfg.History.Search(query, 0)
	}
	w.selected = -1
	w.list.UnselectAll()
	w.list.Refresh()
	w.thumb.Image = nil
	w.thumb.Refresh()
	w.detail.SetText(fmt.Sprintf("%d records", len(w.visible)))
}

func (w *Window) showRecord(i widget.ListItemID) {
	if i < 0 || i >= len(w.visible) {
		return
	}
	w.selected = i
	rec := w.visible[i]
	w.detail.SetText(fmt.Sprintf("%s\nRecognized in %.2fs", rec.Timestamp, rec.ElapsedTime))
	w.thumb.Image = decodeThumbnail(rec.ImageThumbnail)
	w.thumb.Refresh()
}

func (w *Window) restoreSelected() {
	if w.selected < 0 || w.selected >= len(w.visible) {
		return
	}
	rec := w.visible[w.selected]
	w.result = &engine.Result{Text: rec.Text}
	w.threshold.SetValue(0)
	w.text.SetText(rec.Text)
	w.conf.SetText("")
	w.tabs.SelectIndex(0)
}

func (w *Window) deleteSelected() {
	if w.selected < 0 || w.selected >= len(w.visible) {
		return
	}
	if !w.cfg.History.Delete(w.visible[w.selected].ID) {
		log.Printf("Window: history record already gone")
	}
	w.refreshHistory()
}

func (w *Window) clearHistory() {
	dialog.ShowConfirm("Clear History", "Delete all history records?", func(ok bool) {
		if !ok {
			return
		}
		w.cfg.History.Clear()
		w.refreshHistory()
	}, w.win)
}

// listLine renders one history row: timestamp plus the first line of the
// text, trimmed.
func listLine(r history.Record) string {
	text := strings.TrimSpace(r.Text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	runes := []rune(text)
	if len(runes) > 60 {
		text = string(runes[:60]) + "..."
	}
	return r.Timestamp + "  " + text
}

// decodeThumbnail decodes the stored base64 JPEG; nil when absent or
// corrupt.
func decodeThumbnail(enc string) image.Image {
	if enc == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		log.Printf("Window: bad thumbnail encoding: %v", err)
		return nil
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		log.Printf("Window: bad thumbnail image: %v", err)
		return nil
	}
	return img
}

// --- settings tab ---

type settingsForm struct {
	hotkey     *widget.Entry
	hotkeyCopy *widget.Entry
	hotkeySave *widget.Entry
	hotkeyEdit *widget.Entry
	engine     *widget.Select
	language   *widget.Entry
	theme      *widget.Select
	device     *widget.Select
	autoCopy   *widget.Check
	notify     *widget.Check
	minimize   *widget.Check
	startMin   *widget.Check
	hotkeyOn   *widget.Check
	maxRecords *widget.Entry
	docTable   *widget.Check
	docFormula *widget.Check
	docSeal    *widget.Check
	docChart   *widget.Check
	docOrient  *widget.Check
	docUnwarp  *widget.Check
	status     *widget.Label
}

func newSettingsForm() *settingsForm {
	f := &settingsForm{
		hotkey:     widget.NewEntry(),
		hotkeyCopy: widget.NewEntry(),
		hotkeySave: widget.NewEntry(),
		hotkeyEdit: widget.NewEntry(),
		engine:     widget.NewSelect([]string{engine.KindTesseract, engine.KindPaddle, engine.KindVision}, nil),
		language:   widget.NewEntry(),
		theme:      widget.NewSelect([]string{"dark", "light", "system"}, nil),
		device:     widget.NewSelect([]string{"cpu", "gpu"}, nil),
		autoCopy:   widget.NewCheck("Copy result to clipboard", nil),
		notify:     widget.NewCheck("Show result popup", nil),
		minimize:   widget.NewCheck("Minimize to tray on close", nil),
		startMin:   widget.NewCheck("Start minimized", nil),
		hotkeyOn:   widget.NewCheck("Global hotkey enabled", nil),
		maxRecords: widget.NewEntry(),
		docTable:   widget.NewCheck("Tables", nil),
		docFormula: widget.NewCheck("Formulas", nil),
		docSeal:    widget.NewCheck("Seals", nil),
		docChart:   widget.NewCheck("Charts", nil),
		docOrient:  widget.NewCheck("Orientation", nil),
		docUnwarp:  widget.NewCheck("Unwarping", nil),
		status:     widget.NewLabel(""),
	}

	// Live grammar feedback; the full cross-field check runs on save.
	for _, e := range []*widget.Entry{f.hotkey, f.hotkeyCopy, f.hotkeySave, f.hotkeyEdit} {
		e.Validator = hotkey.Validate
	}
	f.maxRecords.Validator = func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n < 1 {
			return fmt.Errorf("must be a positive number")
		}
		return nil
	}
	return f
}

func (w *Window) buildSettingsTab() fyne.CanvasObject {
	f := newSettingsForm()
	w.form = f
	f.load(w.cfg.Settings.Current())

	form := widget.NewForm(
		widget.NewFormItem("Capture hotkey", f.hotkey),
		widget.NewFormItem("Copy shortcut", f.hotkeyCopy),
		widget.NewFormItem("Save shortcut", f.hotkeySave),
		widget.NewFormItem("Edit shortcut", f.hotkeyEdit),
		widget.NewFormItem("OCR engine", f.engine),
		widget.NewFormItem("Language", f.language),
		widget.NewFormItem("Theme", f.theme),
		widget.NewFormItem("Device", f.device),
		widget.NewFormItem("History size", f.maxRecords),
		widget.NewFormItem("", f.hotkeyOn),
		widget.NewFormItem("", f.autoCopy),
		widget.NewFormItem("", f.notify),
		widget.NewFormItem("", f.minimize),
		widget.NewFormItem("", f.startMin),
		widget.NewFormItem("Document mode", container.NewHBox(f.docTable, f.docFormula, f.docSeal)),
		widget.NewFormItem("", container.NewHBox(f.docChart, f.docOrient, f.docUnwarp)),
	)
	form.SubmitText = "Save"
	form.OnSubmit = w.saveSettings

	about := widget.NewLabel(aboutLine(w.cfg.Version))
	return container.NewBorder(nil, container.NewVBox(f.status, about), nil, nil, container.NewVScroll(form))
}

func aboutLine(version string) string {
	if version == "" {
		return "ScreenOCR"
	}
	return "ScreenOCR " + version
}

func (f *settingsForm) load(s settings.Settings) {
	f.hotkey.SetText(s.Hotkey)
	f.hotkeyCopy.SetText(s.HotkeyCopy)
	f.hotkeySave.SetText(s.HotkeySave)
	f.hotkeyEdit.SetText(s.HotkeyEdit)
	f.engine.SetSelected(s.OCREngine)
	f.language.SetText(s.OCRLanguage)
	f.theme.SetSelected(s.Theme)
	f.device.SetSelected(s.DefaultDevice)
	f.autoCopy.SetChecked(s.AutoCopy)
	f.notify.SetChecked(s.ShowNotification)
	f.minimize.SetChecked(s.MinimizeToTray)
	f.startMin.SetChecked(s.StartMinimized)
	f.hotkeyOn.SetChecked(s.HotkeyEnabled)
	f.maxRecords.SetText(strconv.Itoa(s.HistoryMaxRecords))
	f.docTable.SetChecked(s.DocUseTableRecognition)
	f.docFormula.SetChecked(s.DocUseFormulaRecognition)
	f.docSeal.SetChecked(s.DocUseSealRecognition)
	f.docChart.SetChecked(s.DocUseChartRecognition)
	f.docOrient.SetChecked(s.DocUseDocOrientation)
	f.docUnwarp.SetChecked(s.DocUseDocUnwarping)
}

func (f *settingsForm) collect(base settings.Settings) (settings.Settings, error) {
	s := base
	s.Hotkey = strings.ToLower(strings.TrimSpace(f.hotkey.Text))
	s.HotkeyCopy = strings.ToLower(strings.TrimSpace(f.hotkeyCopy.Text))
	s.HotkeySave = strings.ToLower(strings.TrimSpace(f.hotkeySave.Text))
	s.HotkeyEdit = strings.ToLower(strings.TrimSpace(f.hotkeyEdit.Text))
	s.OCREngine = f.engine.Selected
	s.OCRLanguage = strings.TrimSpace(f.language.Text)
	s.Theme = f.theme.Selected
	s.DefaultDevice = f.device.Selected
	s.AutoCopy = f.autoCopy.Checked
	s.ShowNotification = f.notify.Checked
	s.MinimizeToTray = f.minimize.Checked
	s.StartMinimized = f.startMin.Checked
	s.HotkeyEnabled = f.hotkeyOn.Checked
	s.DocUseTableRecognition = f.docTable.Checked
	s.DocUseFormulaRecognition = f.docFormula.Checked
	s.DocUseSealRecognition = f.docSeal.Checked
	s.DocUseChartRecognition = f.docChart.Checked
	s.DocUseDocOrientation = f.docOrient.Checked
	s.DocUseDocUnwarping = f.docUnwarp.Checked

	n, err := strconv.Atoi(strings.TrimSpace(f.maxRecords.Text))
	if err != nil || n < 1 {
		return s, fmt.Errorf("history size must be a positive number")
	}
	s.HistoryMaxRecords = n
	return s, nil
}

func (w *Window) saveSettings() {
	next, err := w.form.collect(w.cfg.Settings.Current())
	if err == nil {
		err = w.cfg.Settings.Save(next)
	}
	if err != nil {
		w.form.status.SetText(err.Error())
		dialog.ShowError(err, w.win)
		return
	}
	w.form.status.SetText("Saved")
}

// --- window shortcuts ---

// bindShortcuts maps the window-level shortcuts (copy, save, edit toggle)
// onto the canvas, replacing earlier registrations. The capture hotkey
// stays global and is not bound here.
func (w *Window) bindShortcuts(s settings.Settings) {
	cv := w.win.Canvas()
	for _, sc := range w.shortcuts {
		cv.RemoveShortcut(sc)
	}
	w.shortcuts = w.shortcuts[:0]

	bind := func(combo string, fn func()) {
		sc, ok := comboShortcut(combo)
		if !ok {
			log.Printf("Window: cannot map %q to a window shortcut", combo)
			return
		}
		cv.AddShortcut(sc, func(fyne.Shortcut) { fn() })
		w.shortcuts = append(w.shortcuts, sc)
	}
	bind(s.HotkeyCopy, w.copyResult)
	bind(s.HotkeySave, w.saveResult)
	bind(s.HotkeyEdit, w.toggleEdit)
}

// comboShortcut translates a stored combo like "ctrl+shift+c" into a
// desktop shortcut.
func comboShortcut(combo string) (fyne.Shortcut, bool) {
	var mod fyne.KeyModifier
	key := ""
	for _, p := range strings.Split(strings.ToLower(strings.TrimSpace(combo)), "+") {
		switch p = strings.TrimSpace(p); p {
		case "":
		case "ctrl":
			mod |= fyne.KeyModifierControl
		case "alt":
			mod |= fyne.KeyModifierAlt
		case "shift":
			mod |= fyne.KeyModifierShift
		case "win":
			mod |= fyne.KeyModifierSuper
		default:
			key = p
		}
	}
	name, ok := fyneKeyName(key)
	if !ok {
		return nil, false
	}
	return &desktop.CustomShortcut{KeyName: name, Modifier: mod}, true
}

func fyneKeyName(key string) (fyne.KeyName, bool) {
	if key == "" {
		return "", false
	}
	if len(key) == 1 {
		c := key[0]
		if c >= 'a' && c <= 'z' {
			return fyne.KeyName(strings.ToUpper(key)), true
		}
		if c >= '0' && c <= '9' {
			return fyne.KeyName(key), true
		}
	}
	switch key {
	case "esc":
		return fyne.KeyEscape, true
	case "enter":
		return fyne.KeyReturn, true
	case "space":
		return fyne.KeySpace, true
	case "tab":
		return fyne.KeyTab, true
	case "backspace":
		return fyne.KeyBackspace, true
	case "delete":
		return fyne.KeyDelete, true
	case "insert":
		return fyne.KeyInsert, true
	case "home":
		return fyne.KeyHome, true
	case "end":
		return fyne.KeyEnd, true
	case "pageup":
		return fyne.KeyPageUp, true
	case "pagedown":
		return fyne.KeyPageDown, true
	case "up":
		return fyne.KeyUp, true
	case "down":
		return fyne.KeyDown, true
	case "left":
		return fyne.KeyLeft, true
	case "right":
		return fyne.KeyRight, true
	}
	if strings.HasPrefix(key, "f") {
		if n, err := strconv.Atoi(key[1:]); err == nil && n >= 1 && n <= 12 {
			return fyne.KeyName(fmt.Sprintf("F%d", n)), true
		}
	}
	return "", false
}
