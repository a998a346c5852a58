package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pixelblaze-tools/pb-go/pkg/log"
	"github.com/pixelblaze-tools/pb-go/pkg/wire"
)

func TestStatsCountsByLayer(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Layer: log.LayerTransport, Category: log.CategoryMessage},
		{Timestamp: ts, Layer: log.LayerTransport, Category: log.CategoryMessage},
		{Timestamp: ts, Layer: log.LayerWire, Category: log.CategoryMessage},
		{Timestamp: ts, Layer: log.LayerSession, Category: log.CategoryState},
	}
	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{"TRANSPORT:", "WIRE:", "SESSION:", "Total Events: 4"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestStatsPerConnection(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{
			Timestamp:    ts,
			ConnectionID: "conn-aaaa-1",
			RemoteAddr:   "192.168.4.1",
			Direction:    log.DirectionOut,
			Layer:        log.LayerTransport,
			Frame:        &log.FrameEvent{Size: 20},
		},
		{
			Timestamp:    ts.Add(50 * time.Millisecond),
			ConnectionID: "conn-aaaa-1",
			Direction:    log.DirectionIn,
			Layer:        log.LayerTransport,
			Frame:        &log.FrameEvent{Size: 100},
		},
		{
			Timestamp:    ts.Add(60 * time.Millisecond),
			ConnectionID: "conn-aaaa-1",
			Direction:    log.DirectionOut,
			Layer:        log.LayerWire,
			Message:      &log.MessageEvent{Keys: []string{wire.KeyBrightness, wire.KeySave}},
		},
		{
			Timestamp:    ts.Add(70 * time.Millisecond),
			ConnectionID: "conn-aaaa-1",
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Message:      &log.MessageEvent{Keys: []string{wire.KeyAck}},
		},
		{
			Timestamp:    ts.Add(80 * time.Millisecond),
			ConnectionID: "conn-aaaa-1",
			Layer:        log.LayerTransport,
			Category:     log.CategoryState,
			StateChange:  &log.StateChangeEvent{Entity: log.StateEntityConnection, NewState: "CLOSED"},
		},
	}
	path := createTestLogFile(t, events)

	stats, err := CollectStats(path)
	if err != nil {
		t.Fatalf("CollectStats failed: %v", err)
	}

	conn := stats.Connections["conn-aaaa-1"]
	if conn == nil {
		t.Fatal("expected connection stats")
	}
	if conn.Events != 5 {
		t.Errorf("Events = %d, want 5", conn.Events)
	}
	if conn.BytesIn != 100 || conn.BytesOut != 20 {
		t.Errorf("bytes = %d in, %d out", conn.BytesIn, conn.BytesOut)
	}
	if conn.RemoteAddr != "192.168.4.1" {
		t.Errorf("RemoteAddr = %q", conn.RemoteAddr)
	}
	if conn.LastState != "CLOSED" {
		t.Errorf("LastState = %q", conn.LastState)
	}
	if stats.MessageKeys[wire.KeyBrightness] != 1 {
		t.Errorf("brightness key count = %d", stats.MessageKeys[wire.KeyBrightness])
	}
	if _, ok := stats.MessageKeys[wire.KeyAck]; ok {
		t.Error("incoming keys should not be counted")
	}

	var buf bytes.Buffer
	printStats(&buf, stats)
	output := buf.String()
	if !strings.Contains(output, "[conn-aaa] 5 events, duration 80ms") {
		t.Errorf("expected connection line, got:\n%s", output)
	}
	if !strings.Contains(output, "Bytes: 100 in, 20 out") {
		t.Errorf("expected byte counts, got:\n%s", output)
	}
}

func TestStatsCountsErrors(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Category: log.CategoryError, Error: &log.ErrorEventData{Message: "a"}},
		{Timestamp: ts, Category: log.CategoryError, Error: &log.ErrorEventData{Message: "b"}},
		{Timestamp: ts, Category: log.CategoryControl},
	}
	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Errors: 2") {
		t.Errorf("expected error count, got:\n%s", buf.String())
	}
}
