package hotkey

import (
	"fmt"
	"strings"
)

// Combinations are stored lowercase with '+' separators, e.g.
// "ctrl+shift+o". Validate enforces that grammar; DisplayName renders it
// for UI labels.

// reservedHotkeys cannot be rebound. Most belong to the OS; esc belongs
// to the selection overlay.
var reservedHotkeys = []string{
	"ctrl+alt+delete",
	"ctrl+shift+esc",
	"alt+f4",
	"alt+tab",
	"win",
	"win+l",
	"win+d",
	"win+e",
	"win+r",
	"print",
	"ctrl+alt+tab",
	"esc",
}

var modifierNames = map[string]bool{
	"ctrl":  true,
	"alt":   true,
	"shift": true,
	"win":   true,
}

var validKeys = buildValidKeys()

func buildValidKeys() map[string]bool {
	keys := make(map[string]bool)
	for c := 'a'; c <= 'z'; c++ {
		keys[string(c)] = true
	}
	for c := '0'; c <= '9'; c++ {
		keys[string(c)] = true
	}
	for i := 1; i <= 12; i++ {
		keys[fmt.Sprintf("f%d", i)] = true
	}
	for _, k := range []string{
		"esc", "tab", "space", "enter", "backspace", "delete", "insert",
		"home", "end", "pageup", "pagedown", "up", "down", "left", "right",
		"print", "scrolllock", "pause", "numlock",
		"`", "-", "=", "[", "]", "\\", ";", "'", ",", ".", "/",
	} {
		keys[k] = true
	}
	return keys
}

// Validate reports whether combo can be registered as a global hotkey.
// The last '+'-separated part must be a known key; anything but a
// function key also needs at least one modifier in front of it.
func Validate(combo string) error {
	if strings.TrimSpace(combo) == "" {
		return fmt.Errorf("hotkey cannot be empty")
	}
	combo = strings.ToLower(strings.TrimSpace(combo))

	for _, reserved := range reservedHotkeys {
		if combo == reserved {
			return fmt.Errorf("%q is a reserved system shortcut", combo)
		}
	}

	var parts []string
	for _, p := range strings.Split(combo, "+") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return fmt.Errorf("invalid hotkey format")
	}

	key := parts[len(parts)-1]
	if !validKeys[key] {
		return fmt.Errorf("invalid key: %q", key)
	}

	// Function keys may stand alone.
	if _, ok := functionKeyNumber(key); ok {
		return nil
	}

	for _, p := range parts[:len(parts)-1] {
		if modifierNames[p] {
			return nil
		}
	}
	return fmt.Errorf("hotkey needs at least one modifier (ctrl/alt/shift/win)")
}

// Binding names a configured combination, e.g. {"hotkey_copy", "ctrl+c"}.
type Binding struct {
	Name  string
	Combo string
}

// Conflict pairs the first binding that claimed a combination with a
// later binding that claimed it again.
type Conflict struct {
	First  string
	Second string
	Combo  string
}

// Conflicts reports duplicate combinations among bindings, in binding
// order.
func Conflicts(bindings []Binding) []Conflict {
	seen := make(map[string]string)
	var conflicts []Conflict
	for _, b := range bindings {
		normalized := strings.ToLower(strings.TrimSpace(b.Combo))
		if first, ok := seen[normalized]; ok {
			conflicts = append(conflicts, Conflict{First: first, Second: b.Name, Combo: normalized})
			continue
		}
		seen[normalized] = b.Name
	}
	return conflicts
}

// DisplayName renders a stored combo for UI labels:
// "ctrl+shift+o" -> "Ctrl+Shift+O".
func DisplayName(combo string) string {
	if combo == "" {
		return ""
	}

	parts := strings.Split(combo, "+")
	display := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		lower := strings.ToLower(p)
		switch {
		case lower == "ctrl":
			display = append(display, "Ctrl")
		case lower == "alt":
			display = append(display, "Alt")
		case lower == "shift":
			display = append(display, "Shift")
		case lower == "win":
			display = append(display, "Win")
		default:
			if _, ok := functionKeyNumber(lower); ok {
				display = append(display, strings.ToUpper(p))
			} else {
				display = append(display, capitalize(p))
			}
		}
	}
	return strings.Join(display, "+")
}

// functionKeyNumber parses names like "f1".."f24".
func functionKeyNumber(s string) (int, bool) {
	if len(s) < 2 || s[0] != 'f' {
		return 0, false
	}
	n := 0
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
