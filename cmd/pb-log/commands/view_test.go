package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pixelblaze-tools/pb-go/pkg/log"
	"github.com/pixelblaze-tools/pb-go/pkg/wire"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pblog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func TestFormatMessageEvent(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	event := log.Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-6789",
		Direction:    log.DirectionOut,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		RemoteAddr:   "192.168.4.1",
		Message: &log.MessageEvent{
			Kind: log.MessageKindJSON,
			Keys: []string{wire.KeyBrightness, wire.KeySave},
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{
		"2026-01-28T10:15:32.123456Z",
		"[conn:abc12345]",
		"OUT",
		"WIRE",
		"JSON",
		"Remote: 192.168.4.1",
		"Keys: brightness, save",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestFormatBinaryMessageEvent(t *testing.T) {
	ft := uint8(wire.FrameProgramList)
	flags := uint8(0x04)
	event := log.Event{
		Direction: log.DirectionIn,
		Layer:     log.LayerWire,
		Message: &log.MessageEvent{
			Kind:       log.MessageKindBinary,
			FrameType:  &ft,
			FrameFlags: &flags,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "BINARY") {
		t.Errorf("expected BINARY kind, got:\n%s", output)
	}
	if !strings.Contains(output, "FrameType: PROGRAM_LIST (7)") {
		t.Errorf("expected frame type line, got:\n%s", output)
	}
	if !strings.Contains(output, "FrameFlags: 0x04") {
		t.Errorf("expected frame flags line, got:\n%s", output)
	}
	if !strings.Contains(output, "[conn:-]") {
		t.Errorf("expected placeholder connection id, got:\n%s", output)
	}
}

func TestFormatFrameEvent(t *testing.T) {
	text := log.Event{
		Layer: log.LayerTransport,
		Frame: log.NewFrameEvent([]byte(`{"ping":true}`), false),
	}
	var buf bytes.Buffer
	formatEvent(&buf, text)
	if !strings.Contains(buf.String(), `Data: {"ping":true}`) {
		t.Errorf("expected text payload, got:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "Size: 13 bytes (text)") {
		t.Errorf("expected size line, got:\n%s", buf.String())
	}

	binary := log.Event{
		Layer: log.LayerTransport,
		Frame: log.NewFrameEvent([]byte{0x07, 0x01, 0xff}, true),
	}
	buf.Reset()
	formatEvent(&buf, binary)
	if !strings.Contains(buf.String(), "Data: 0701ff") {
		t.Errorf("expected hex payload, got:\n%s", buf.String())
	}
}

func TestFormatStateChangeEvent(t *testing.T) {
	event := log.Event{
		Layer:    log.LayerSession,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: "EXECUTING",
			NewState: "VERIFYING",
			Reason:   "read back",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "Entity: SESSION") {
		t.Errorf("expected entity, got:\n%s", output)
	}
	if !strings.Contains(output, "EXECUTING -> VERIFYING") {
		t.Errorf("expected transition, got:\n%s", output)
	}
	if !strings.Contains(output, "Reason: read back") {
		t.Errorf("expected reason, got:\n%s", output)
	}
}

func TestFormatErrorEvent(t *testing.T) {
	event := log.Event{
		Layer:    log.LayerTransport,
		Category: log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: "connection reset",
			Context: "reading frame",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "Message: connection reset") {
		t.Errorf("expected message, got:\n%s", output)
	}
	if !strings.Contains(output, "Context: reading frame") {
		t.Errorf("expected context, got:\n%s", output)
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayerFlag("Session"); err != nil || l != log.LayerSession {
		t.Errorf("ParseLayerFlag(Session) = %v, %v", l, err)
	}
	if _, err := ParseLayerFlag("service"); err == nil {
		t.Error("expected error for unknown layer")
	}
	if d, err := ParseDirectionFlag("OUT"); err != nil || d != log.DirectionOut {
		t.Errorf("ParseDirectionFlag(OUT) = %v, %v", d, err)
	}
	if _, err := ParseDirectionFlag("sideways"); err == nil {
		t.Error("expected error for unknown direction")
	}
	if c, err := ParseCategoryFlag("control"); err != nil || c != log.CategoryControl {
		t.Errorf("ParseCategoryFlag(control) = %v, %v", c, err)
	}
	if _, err := ParseCategoryFlag("snapshot"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestRunViewFiltersByLayer(t *testing.T) {
	events := []log.Event{
		{Layer: log.LayerTransport, Frame: log.NewFrameEvent([]byte("x"), false)},
		{Layer: log.LayerWire, Message: &log.MessageEvent{Keys: []string{wire.KeyPing}}},
		{Layer: log.LayerSession, StateChange: &log.StateChangeEvent{NewState: "RESOLVING"}},
	}
	path := createTestLogFile(t, events)

	layer := log.LayerWire
	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Layer: &layer}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "Keys: ping") {
		t.Errorf("expected wire event, got:\n%s", output)
	}
	if strings.Contains(output, "TRANSPORT") || strings.Contains(output, "RESOLVING") {
		t.Errorf("unexpected non-wire event in output:\n%s", output)
	}
}

func TestRunViewMissingFile(t *testing.T) {
	err := RunView(filepath.Join(t.TempDir(), "missing.pblog"), ViewFilter{}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
