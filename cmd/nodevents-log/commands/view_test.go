package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/nodevents/nodevents-go/pkg/log"
	"github.com/nodevents/nodevents-go/pkg/topic"
)

func TestFormatStateChange(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[0])

	out := buf.String()
	for _, want := range []string{
		"2026-01-28T10:15:32.123456Z",
		"[session:abc12345]",
		"TRANSPORT State",
		"Entity: CONNECTION",
		"IDLE -> CONNECTING",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatSubscription(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[1])

	out := buf.String()
	if !strings.Contains(out, "OUT SUBSCRIPTION REQUESTED") {
		t.Errorf("unexpected header:\n%s", out)
	}
	if !strings.Contains(out, "Topic: milestone-info/latest") {
		t.Errorf("missing topic:\n%s", out)
	}
	if !strings.Contains(out, "QoS: 1") {
		t.Errorf("missing qos:\n%s", out)
	}
}

func TestFormatRawMessageShowsHex(t *testing.T) {
	event := log.Event{
		Timestamp: time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC),
		Layer:     log.LayerDispatch,
		Category:  log.CategoryMessage,
		Topic:     "blocks",
		Message:   log.NewMessageEvent(topic.ClassRawBytes, "blocks", []byte{0xde, 0xad}),
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)

	out := buf.String()
	if !strings.Contains(out, "DISPATCH RAW") {
		t.Errorf("unexpected header:\n%s", out)
	}
	if !strings.Contains(out, "Data: dead") {
		t.Errorf("missing hex data:\n%s", out)
	}
}

func TestFormatTruncatedData(t *testing.T) {
	msg := log.NewMessageEvent(topic.ClassRawBytes, "blocks", make([]byte, log.MaxDataSize+10))

	var buf bytes.Buffer
	formatMessageDetails(&buf, msg)

	if !strings.Contains(buf.String(), "(truncated)") {
		t.Errorf("expected truncation marker:\n%s", buf.String())
	}
}

func TestFormatDroppedAndDecodeError(t *testing.T) {
	dropped := log.Event{Category: log.CategoryMessage, Message: &log.MessageEvent{Dropped: true}}
	if got := typeLabel(dropped); got != "Dropped" {
		t.Errorf("typeLabel(dropped) = %q, want Dropped", got)
	}

	var buf bytes.Buffer
	formatMessageDetails(&buf, &log.MessageEvent{Class: topic.ClassMilestone, DecodeError: "missing index"})
	if !strings.Contains(buf.String(), "Decode error: missing index") {
		t.Errorf("missing decode error:\n%s", buf.String())
	}
}

func TestFormatError(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, log.Event{
		Category: log.CategoryError,
		Error:    &log.ErrorEventData{Layer: log.LayerTransport, Message: "connection lost", Context: "disconnect"},
	})

	out := buf.String()
	if !strings.Contains(out, "Message: connection lost") || !strings.Contains(out, "Context: disconnect") {
		t.Errorf("unexpected error output:\n%s", out)
	}
}

func TestShortenID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "abc"},
		{"abcdefgh", "abcdefgh"},
		{"abcdefghijkl", "abcdefgh"},
	}
	for _, tt := range tests {
		if got := shortenID(tt.in); got != tt.want {
			t.Errorf("shortenID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayer("Dispatch"); err != nil || l != log.LayerDispatch {
		t.Errorf("ParseLayer(Dispatch) = %v, %v", l, err)
	}
	if _, err := ParseLayer("wire"); err == nil {
		t.Error("ParseLayer(wire) should fail")
	}
	if d, err := ParseDirection("OUT"); err != nil || d != log.DirectionOut {
		t.Errorf("ParseDirection(OUT) = %v, %v", d, err)
	}
	if c, err := ParseCategory("subscription"); err != nil || c != log.CategorySubscription {
		t.Errorf("ParseCategory(subscription) = %v, %v", c, err)
	}
	if c, err := ParseClass("metadata"); err != nil || c != topic.ClassEntityMetadata {
		t.Errorf("ParseClass(metadata) = %v, %v", c, err)
	}
	if _, err := ParseClass("block"); err == nil {
		t.Error("ParseClass(block) should fail")
	}
}

func TestRunViewFiltersByClass(t *testing.T) {
	path := createTestTraceFile(t, sampleEvents())

	class := topic.ClassMilestone
	var buf bytes.Buffer
	if err := RunView(path, log.Filter{Class: &class}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	out := buf.String()
	if strings.Count(out, "[session:") != 1 {
		t.Errorf("expected exactly one event:\n%s", out)
	}
	if !strings.Contains(out, `Payload`) && !strings.Contains(out, "Data:") {
		t.Errorf("expected message details:\n%s", out)
	}
}
