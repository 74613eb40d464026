package proctor

import "strings"

// EventKind names a raw environment signal delivered by the exam shell.
type EventKind string

const (
	EventFullscreenExit EventKind = "fullscreen-exit"
	EventHidden         EventKind = "document-hidden"
	EventBlur           EventKind = "window-blur"
	EventMouseLeave     EventKind = "mouse-leave"
	EventContextMenu    EventKind = "context-menu"
	EventKeyDown        EventKind = "key-down"
)

// Event is one environment signal plus whatever detail the shell attached
// (for key-down: the key combo, e.g. "F12" or "Ctrl+Shift+I").
type Event struct {
	Kind   EventKind `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

// Keys suppressed outright during an attempt.
var blockedKeys = map[string]struct{}{
	"F12": {},
	"F5":  {},
	"F11": {},
}

// Modifier combos suppressed during an attempt.
var blockedShortcuts = map[string]struct{}{
	"Ctrl+C":       {},
	"Ctrl+V":       {},
	"Ctrl+X":       {},
	"Ctrl+A":       {},
	"Ctrl+R":       {},
	"Ctrl+U":       {},
	"Ctrl+I":       {},
	"Ctrl+S":       {},
	"Ctrl+P":       {},
	"Ctrl+Shift+I": {},
	"Ctrl+Shift+J": {},
	"Ctrl+Shift+C": {},
	"Alt+Tab":      {},
}

// classifyKey maps a key combo to its violation type. Non-blocked keys
// return ok=false and must pass through untouched.
func classifyKey(combo string) (ViolationType, bool) {
	combo = canonicalCombo(combo)
	if _, ok := blockedKeys[combo]; ok {
		return TypeBlockedKey, true
	}
	if _, ok := blockedShortcuts[combo]; ok {
		return TypeBlockedShortcut, true
	}
	return "", false
}

// canonicalCombo normalizes modifier order and casing so "ctrl+shift+i"
// and "Shift+Ctrl+I" hit the same table entry.
func canonicalCombo(combo string) string {
	parts := strings.Split(combo, "+")
	var ctrl, shift, alt bool
	key := ""
	for _, p := range parts {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "ctrl", "control":
			ctrl = true
		case "shift":
			shift = true
		case "alt":
			alt = true
		default:
			key = strings.TrimSpace(p)
		}
	}
	switch {
	case key == "":
	case len(key) == 1:
		key = strings.ToUpper(key)
	default:
		key = strings.ToUpper(key[:1]) + key[1:]
	}
	out := make([]string, 0, 4)
	if ctrl {
		out = append(out, "Ctrl")
	}
	if alt {
		out = append(out, "Alt")
	}
	if shift {
		out = append(out, "Shift")
	}
	out = append(out, key)
	return strings.Join(out, "+")
}
