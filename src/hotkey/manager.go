package hotkey

import (
	"fmt"
	"log"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// keyState tracks one key of the bound combination. Modifiers match on
// either their left or right variant.
type keyState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

// Manager owns the global keyboard hook and fires the bound callback
// whenever every key of the combination is down at once. The hook is
// process-global, so run at most one Manager.
type Manager struct {
	mu      sync.Mutex
	keys    []keyState
	combo   string
	fire    func()
	enabled bool
	started bool
}

func NewManager() *Manager {
	return &Manager{enabled: true}
}

// Bind sets the active combination and its callback. Safe to call while
// the hook is running; the new combination takes effect on the next key
// event.
func (m *Manager) Bind(combo string, fire func()) error {
	keys, err := compileCombo(combo)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.keys = keys
	m.combo = combo
	m.fire = fire
	m.mu.Unlock()

	log.Printf("Hotkey bound: %s", combo)
	return nil
}

// Rebind swaps the combination, keeping the current callback.
func (m *Manager) Rebind(combo string) error {
	keys, err := compileCombo(combo)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.keys = keys
	m.combo = combo
	m.mu.Unlock()

	log.Printf("Hotkey rebound: %s", combo)
	return nil
}

// SetEnabled suppresses or restores firing without tearing the hook down.
func (m *Manager) SetEnabled(on bool) {
	m.mu.Lock()
	m.enabled = on
	m.mu.Unlock()
}

// Start installs the hook and begins watching key events in a goroutine.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	events := gohook.Start()
	if events == nil {
		return fmt.Errorf("keyboard hook failed to start")
	}

	go m.watch(events)
	return nil
}

// Stop uninstalls the hook. The watch goroutine exits when the event
// channel closes.
func (m *Manager) Stop() {
	m.mu.Lock()
	started := m.started
	m.started = false
	m.mu.Unlock()

	if started {
		gohook.End()
	}
}

func (m *Manager) watch(events chan gohook.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC in hotkey watcher: %v", r)
		}
	}()

	for ev := range events {
		switch ev.Kind {
		case gohook.KeyDown:
			if fire := m.keyDown(ev.Rawcode); fire != nil {
				fire()
			}
		case gohook.KeyUp:
			m.keyUp(ev.Rawcode)
		}
	}
	log.Printf("Hotkey event channel closed")
}

// keyDown marks the key pressed and, when that completes the
// combination, resets the tracked state and returns the callback to run.
func (m *Manager) keyDown(rawcode uint16) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := false
	for i := range m.keys {
		if matchesRawcode(&m.keys[i], rawcode) {
			m.keys[i].pressed = true
			matched = true
		}
	}
	if !matched || len(m.keys) == 0 {
		return nil
	}

	for i := range m.keys {
		if !m.keys[i].pressed {
			return nil
		}
	}

	for i := range m.keys {
		m.keys[i].pressed = false
	}
	if !m.enabled {
		return nil
	}
	log.Printf("Hotkey combination detected: %s", m.combo)
	return m.fire
}

func (m *Manager) keyUp(rawcode uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.keys {
		if matchesRawcode(&m.keys[i], rawcode) {
			m.keys[i].pressed = false
		}
	}
}

func matchesRawcode(k *keyState, rawcode uint16) bool {
	for _, rc := range k.rawcodes {
		if rc == rawcode {
			return true
		}
	}
	return false
}

// compileCombo resolves each part of the combination to its virtual key
// codes. Unmappable parts fail the whole bind so a typo never leaves a
// half-armed hotkey.
func compileCombo(combo string) ([]keyState, error) {
	parts := parseCombo(combo)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty hotkey %q", combo)
	}

	keys := make([]keyState, 0, len(parts))
	for _, name := range parts {
		rawcodes := keyRawcodes(name)
		if len(rawcodes) == 0 {
			return nil, fmt.Errorf("cannot map key %q to a virtual key code", name)
		}
		keys = append(keys, keyState{name: name, rawcodes: rawcodes})
	}
	return keys, nil
}

// parseCombo lowercases and splits a combination, folding the cmd/super
// aliases onto win.
func parseCombo(combo string) []string {
	var parts []string
	for _, p := range strings.Split(strings.ToLower(combo), "+") {
		p = strings.TrimSpace(p)
		switch p {
		case "":
		case "cmd", "super":
			parts = append(parts, "win")
		default:
			parts = append(parts, p)
		}
	}
	return parts
}

// namedKeys maps key names to Windows virtual key codes. Modifiers list
// both their left and right variants.
var namedKeys = map[string][]uint16{
	"ctrl":  {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":   {164, 165}, // VK_LMENU, VK_RMENU
	"shift": {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"win":   {91, 92},   // VK_LWIN, VK_RWIN

	"space":      {32},
	"enter":      {13},
	"return":     {13},
	"esc":        {27},
	"escape":     {27},
	"tab":        {9},
	"backspace":  {8},
	"delete":     {46},
	"del":        {46},
	"insert":     {45},
	"ins":        {45},
	"home":       {36},
	"end":        {35},
	"pageup":     {33}, // VK_PRIOR
	"pgup":       {33},
	"pagedown":   {34}, // VK_NEXT
	"pgdn":       {34},
	"left":       {37},
	"up":         {38},
	"right":      {39},
	"down":       {40},
	"print":      {44},  // VK_SNAPSHOT
	"scrolllock": {145}, // VK_SCROLL
	"pause":      {19},
	"numlock":    {144},

	"`":  {192}, // VK_OEM_3
	"-":  {189}, // VK_OEM_MINUS
	"=":  {187}, // VK_OEM_PLUS
	"[":  {219}, // VK_OEM_4
	"]":  {221}, // VK_OEM_6
	"\\": {220}, // VK_OEM_5
	";":  {186}, // VK_OEM_1
	"'":  {222}, // VK_OEM_7
	",":  {188}, // VK_OEM_COMMA
	".":  {190}, // VK_OEM_PERIOD
	"/":  {191}, // VK_OEM_2
}

// keyRawcodes maps a key name to its virtual key codes. Letters and
// digits share their ASCII uppercase codes; function keys start at
// VK_F1 = 112.
func keyRawcodes(name string) []uint16 {
	name = strings.ToLower(strings.TrimSpace(name))

	if len(name) == 1 {
		c := name[0]
		switch {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(c - 'a' + 'A')}
		case c >= '0' && c <= '9':
			return []uint16{uint16(c)}
		}
	}

	if n, ok := functionKeyNumber(name); ok && n >= 1 && n <= 24 {
		return []uint16{uint16(111 + n)}
	}

	return namedKeys[name]
}
