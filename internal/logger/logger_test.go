package logger

import "testing"

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := New("debug", format)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", format, err)
		}
		if !l.Core().Enabled(-1) {
			t.Errorf("%s: debug level should be enabled", format)
		}
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New("loud", "json"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
