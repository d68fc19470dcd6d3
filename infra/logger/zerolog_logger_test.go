package logger

import (
	"testing"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("depot")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Infow("info", map[string]any{"k": 1})
	l.Warnf("warn")
	l.Errorf("error")
}

func TestNewWithOptions(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		l := NewWithOptions("depot", "debug", format)
		if l == nil {
			t.Fatalf("nil logger for format %s", format)
		}
		l.Debugf("visible at debug level")
	}
	// Unknown levels fall back to info.
	l := NewWithOptions("depot", "shout", "json")
	l.Infof("still works")
}
