package logging

import "testing"

func TestMaskToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"short", "***"},
		{"12345678", "***"},
		{"gho_abcdefghijklmnop", "gho***nop"},
	}

	for _, tt := range tests {
		if got := MaskToken(tt.in); got != tt.want {
			t.Errorf("MaskToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error", "", "bogus", " INFO "} {
		if logger := New(level); logger == nil {
			t.Errorf("New(%q) returned nil", level)
		}
	}
}
