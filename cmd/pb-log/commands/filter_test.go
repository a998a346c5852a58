package commands

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/pixelblaze-tools/pb-go/pkg/log"
)

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()
	r, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer r.Close()

	var events []log.Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		events = append(events, e)
	}
}

func TestFilterByConnectionAndRemote(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, ConnectionID: "a", RemoteAddr: "10.0.0.2"},
		{Timestamp: ts, ConnectionID: "b", RemoteAddr: "10.0.0.2"},
		{Timestamp: ts, ConnectionID: "a", RemoteAddr: "10.0.0.3"},
	}
	path := createTestLogFile(t, events)
	out := filepath.Join(t.TempDir(), "out.pblog")

	n, err := RunFilter(path, FilterOptions{Output: out, ConnID: "a", RemoteAddr: "10.0.0.2"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("wrote %d events, want 1", n)
	}
	got := readAll(t, out)
	if len(got) != 1 || got[0].ConnectionID != "a" || got[0].RemoteAddr != "10.0.0.2" {
		t.Errorf("unexpected events: %+v", got)
	}
}

func TestFilterByTimeRangeAndLayer(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Layer: log.LayerWire},
		{Timestamp: ts.Add(time.Minute), Layer: log.LayerWire},
		{Timestamp: ts.Add(time.Minute), Layer: log.LayerTransport},
		{Timestamp: ts.Add(2 * time.Minute), Layer: log.LayerWire},
	}
	path := createTestLogFile(t, events)
	out := filepath.Join(t.TempDir(), "out.pblog")

	n, err := RunFilter(path, FilterOptions{
		Output:    out,
		TimeStart: "2026-01-28T10:00:30Z",
		TimeEnd:   "2026-01-28T10:01:30Z",
		Layer:     "wire",
	})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 1 {
		t.Errorf("wrote %d events, want 1", n)
	}
}

func TestFilterRejectsBadOptions(t *testing.T) {
	path := createTestLogFile(t, []log.Event{{}})
	out := filepath.Join(t.TempDir(), "out.pblog")

	cases := []FilterOptions{
		{Output: out, TimeStart: "yesterday"},
		{Output: out, TimeEnd: "tomorrow"},
		{Output: out, Layer: "service"},
		{Output: out, Direction: "up"},
		{Output: out, Category: "snapshot"},
	}
	for _, opts := range cases {
		if _, err := RunFilter(path, opts); err == nil {
			t.Errorf("expected error for %+v", opts)
		}
	}
}
