package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_FormatterByEnvironment(t *testing.T) {
	if _, ok := New("production", "debug").Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected JSON formatter in production")
	}
	if _, ok := New("development", "debug").Formatter.(*logrus.TextFormatter); !ok {
		t.Fatalf("expected text formatter in development")
	}
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	if lvl := New("development", "loud").GetLevel(); lvl != logrus.InfoLevel {
		t.Fatalf("expected info level, got %v", lvl)
	}
	if lvl := New("development", "warn").GetLevel(); lvl != logrus.WarnLevel {
		t.Fatalf("expected warn level, got %v", lvl)
	}
}
