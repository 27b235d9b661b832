package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenWritesStartupLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "log started") {
		t.Errorf("expected startup line, got: %s", data)
	}
}

func TestLogAppendsFormattedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer l.Close()

	l.Log("worker %s claimed %s", "w1", "f1")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "worker w1 claimed f1") {
		t.Errorf("expected log line, got: %s", data)
	}
}

func TestEmptyPathReturnsNoOpLogger(t *testing.T) {
	l, err := Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	l.Log("this should not panic or write anywhere")
	if err := l.Close(); err != nil {
		t.Errorf("close on no-op logger should not error: %v", err)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Log("should not panic")
	if err := l.Close(); err != nil {
		t.Errorf("close on nil logger should not error: %v", err)
	}
}
