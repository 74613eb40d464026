package proctor

import "testing"

func TestClassifyKey(t *testing.T) {
	tests := []struct {
		combo   string
		want    ViolationType
		blocked bool
	}{
		{"F12", TypeBlockedKey, true},
		{"F5", TypeBlockedKey, true},
		{"F11", TypeBlockedKey, true},
		{"Ctrl+C", TypeBlockedShortcut, true},
		{"ctrl+v", TypeBlockedShortcut, true},
		{"Ctrl+Shift+I", TypeBlockedShortcut, true},
		{"Shift+Ctrl+J", TypeBlockedShortcut, true}, // modifier order
		{"ctrl+shift+c", TypeBlockedShortcut, true},
		{"Alt+Tab", TypeBlockedShortcut, true},
		{"Ctrl+P", TypeBlockedShortcut, true},
		{"A", "", false},
		{"Enter", "", false},
		{"Ctrl+Z", "", false}, // undo stays available
		{"Shift+A", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.combo, func(t *testing.T) {
			got, blocked := classifyKey(tt.combo)
			if blocked != tt.blocked {
				t.Fatalf("classifyKey(%q) blocked = %v, want %v", tt.combo, blocked, tt.blocked)
			}
			if blocked && got != tt.want {
				t.Errorf("classifyKey(%q) = %s, want %s", tt.combo, got, tt.want)
			}
		})
	}
}

func TestCanonicalCombo(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ctrl+shift+i", "Ctrl+Shift+I"},
		{"Shift+Ctrl+I", "Ctrl+Shift+I"},
		{"alt+tab", "Alt+Tab"},
		{"F12", "F12"},
		{"control+s", "Ctrl+S"},
	}
	for _, tt := range tests {
		if got := canonicalCombo(tt.in); got != tt.want {
			t.Errorf("canonicalCombo(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
