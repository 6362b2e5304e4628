package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNew_WritesFile(t *testing.T) {
	dir := t.TempDir()
	var stderr bytes.Buffer

	l := New(Options{Dir: dir, Stderr: &stderr})
	l.Named("sync").Printf("synced %s", "prd.md")
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if l.Path() != filepath.Join(dir, FileName) {
		t.Errorf("Path() = %q", l.Path())
	}
	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "[sync] synced prd.md") {
		t.Errorf("log file = %q", data)
	}
	if stderr.Len() != 0 {
		t.Errorf("quiet logger wrote to stderr: %q", stderr.String())
	}
}

func TestNew_Verbose(t *testing.T) {
	dir := t.TempDir()
	var stderr bytes.Buffer

	l := New(Options{Dir: dir, Verbose: true, Stderr: &stderr})
	defer l.Close()
	l.Named("notion").Print("retrying")

	if !strings.Contains(stderr.String(), "[notion] retrying") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestNew_NoSinks(t *testing.T) {
	l := New(Options{})
	l.Named("sync").Print("dropped")

	if l.Path() != "" {
		t.Errorf("Path() = %q, want empty", l.Path())
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestNew_RunID(t *testing.T) {
	a, b := New(Options{}), New(Options{})
	if _, err := uuid.Parse(a.RunID); err != nil {
		t.Errorf("RunID %q is not a uuid: %v", a.RunID, err)
	}
	if a.RunID == b.RunID {
		t.Error("run ids repeat")
	}
}
