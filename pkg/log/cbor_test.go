package log

import (
	"testing"
	"time"

	"github.com/nodevents/nodevents-go/pkg/topic"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456789, time.UTC)
	original := Event{
		Timestamp: ts,
		SessionID: "abc12345-def6-7890-abcd-ef1234567890",
		Direction: DirectionOut,
		Layer:     LayerSubscription,
		Category:  CategorySubscription,
		Broker:    "tcp://node.local:1883",
		ClientID:  "nodevents-abc12345",
		Topic:     "milestone-info/latest",
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.SessionID != original.SessionID {
		t.Errorf("SessionID: got %q, want %q", decoded.SessionID, original.SessionID)
	}
	if decoded.Direction != original.Direction {
		t.Errorf("Direction: got %v, want %v", decoded.Direction, original.Direction)
	}
	if decoded.Layer != original.Layer {
		t.Errorf("Layer: got %v, want %v", decoded.Layer, original.Layer)
	}
	if decoded.Category != original.Category {
		t.Errorf("Category: got %v, want %v", decoded.Category, original.Category)
	}
	if decoded.Broker != original.Broker {
		t.Errorf("Broker: got %q, want %q", decoded.Broker, original.Broker)
	}
	if decoded.ClientID != original.ClientID {
		t.Errorf("ClientID: got %q, want %q", decoded.ClientID, original.ClientID)
	}
	if decoded.Topic != original.Topic {
		t.Errorf("Topic: got %q, want %q", decoded.Topic, original.Topic)
	}
}

func TestMessageEventCBORRoundTrip(t *testing.T) {
	type milestone struct {
		Index     uint32 `json:"index"`
		Timestamp uint64 `json:"timestamp"`
	}

	original := Event{
		Timestamp: time.Now(),
		SessionID: "session-1",
		Direction: DirectionIn,
		Layer:     LayerDispatch,
		Category:  CategoryMessage,
		Topic:     "milestone-info/confirmed",
		Message: &MessageEvent{
			Class:   topic.ClassMilestone,
			Rule:    "milestone-confirmed",
			Size:    32,
			Data:    []byte(`{"index":7,"timestamp":99}`),
			Payload: milestone{Index: 7, Timestamp: 99},
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Message == nil {
		t.Fatal("Message is nil")
	}
	if decoded.Message.Class != topic.ClassMilestone {
		t.Errorf("Class: got %v, want MILESTONE", decoded.Message.Class)
	}
	if decoded.Message.Rule != "milestone-confirmed" {
		t.Errorf("Rule: got %q", decoded.Message.Rule)
	}
	if string(decoded.Message.Data) != string(original.Message.Data) {
		t.Errorf("Data: got %q", decoded.Message.Data)
	}

	payload, ok := decoded.Message.Payload.(map[string]any)
	if !ok {
		t.Fatalf("Payload type = %T, want map[string]any", decoded.Message.Payload)
	}
	if payload["index"] != uint64(7) {
		t.Errorf("Payload[index] = %v (%T), want 7", payload["index"], payload["index"])
	}
}

func TestStateChangeEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp: time.Now(),
		SessionID: "session-1",
		Layer:     LayerTransport,
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityConnection,
			OldState: "SUBSCRIBING",
			NewState: "ACTIVE",
			Reason:   "all filters acknowledged",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.StateChange == nil {
		t.Fatal("StateChange is nil")
	}
	if *decoded.StateChange != *original.StateChange {
		t.Errorf("StateChange: got %+v, want %+v", *decoded.StateChange, *original.StateChange)
	}
	if decoded.Message != nil || decoded.Subscription != nil || decoded.Error != nil {
		t.Error("unexpected payloads set after decode")
	}
}

func TestSubscriptionAndErrorCBORRoundTrip(t *testing.T) {
	events := []Event{
		{
			Timestamp:    time.Now(),
			Category:     CategorySubscription,
			Topic:        "blocks",
			Subscription: &SubscriptionEvent{Result: SubscriptionFailed, QoS: 1, Reconnect: true},
		},
		{
			Timestamp: time.Now(),
			Category:  CategoryError,
			Error:     &ErrorEventData{Layer: LayerTransport, Message: "connection refused", Context: "connect"},
		},
	}

	for _, original := range events {
		data, err := EncodeEvent(original)
		if err != nil {
			t.Fatalf("EncodeEvent failed: %v", err)
		}
		decoded, err := DecodeEvent(data)
		if err != nil {
			t.Fatalf("DecodeEvent failed: %v", err)
		}
		if original.Subscription != nil && (decoded.Subscription == nil || *decoded.Subscription != *original.Subscription) {
			t.Errorf("Subscription: got %+v, want %+v", decoded.Subscription, original.Subscription)
		}
		if original.Error != nil && (decoded.Error == nil || *decoded.Error != *original.Error) {
			t.Errorf("Error: got %+v, want %+v", decoded.Error, original.Error)
		}
	}
}

func TestDecodeEventGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff, 0x00, 0x13}); err == nil {
		t.Error("DecodeEvent should fail on garbage")
	}
}
