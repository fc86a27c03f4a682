package ui

import (
	"strings"
	"testing"
)

func TestMarkers(t *testing.T) {
	tests := []struct {
		got  string
		icon string
	}{
		{Pass("done"), IconPass},
		{Warn("careful"), IconWarn},
		{Fail("broken"), IconFail},
	}
	for _, tt := range tests {
		if !strings.Contains(tt.got, tt.icon) {
			t.Errorf("%q: missing icon %q", tt.got, tt.icon)
		}
	}
	if !strings.Contains(Pass("done"), "done") {
		t.Error("Pass dropped its text")
	}
}
