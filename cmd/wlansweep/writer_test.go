package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iti/wlansweep"
)

func TestNewWritersStdoutOnly(t *testing.T) {
	var buf bytes.Buffer
	w, err := newWriters(&buf, "")
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	if _, ok := w.(*wlansweep.StdoutWriter); !ok {
		t.Fatalf("expected *wlansweep.StdoutWriter, got %T", w)
	}
	if err := w.Write(wlansweep.GoodputSample{StationCount: 2, ThroughputMbps: 5.5}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := buf.String(); got != "2 5.5\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestNewWritersWithResults(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "data.txt")
	w, err := newWriters(&buf, path)
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	if _, ok := w.(*wlansweep.MultiWriter); !ok {
		t.Fatalf("expected *wlansweep.MultiWriter, got %T", w)
	}
	w.Write(wlansweep.GoodputSample{StationCount: 1, ThroughputMbps: 5.81})
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	if strings.TrimSpace(string(data)) != "1 5.81" || strings.TrimSpace(buf.String()) != "1 5.81" {
		t.Fatalf("unexpected rows: file %q stdout %q", data, buf.String())
	}
}

func TestRenderReport(t *testing.T) {
	var buf bytes.Buffer
	samples := []wlansweep.GoodputSample{{StationCount: 1, ThroughputMbps: 5.8}, {StationCount: 2, ThroughputMbps: 5.2}}
	if err := renderReport(&buf, samples); err != nil {
		t.Fatalf("renderReport: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"STATIONS", "5.800", "5.200", "samples 2", "at 1 stations"} {
		if !strings.Contains(out, want) {
			t.Errorf("report lacks %q:\n%s", want, out)
		}
	}
}
