package protocol

import (
	"testing"

	"reportvoice/core"
	"reportvoice/events/exchange"
)

func TestMarshalUnmarshal(t *testing.T) {
	data, err := Marshal(MsgError, ErrorPayload{Message: "boom"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	msgType, raw, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if msgType != MsgError {
		t.Errorf("type = %s", msgType)
	}
	payload, err := UnmarshalPayload[ErrorPayload](raw)
	if err != nil || payload.Message != "boom" {
		t.Errorf("payload = %+v, err = %v", payload, err)
	}
}

func TestUnmarshal_MissingType(t *testing.T) {
	if _, _, err := Unmarshal([]byte(`{"payload":{}}`)); err == nil {
		t.Error("expected error for missing type")
	}
	if _, _, err := Unmarshal([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid json")
	}
}

func TestMarshalEvent(t *testing.T) {
	packet := core.NewEventPacket(&exchange.ExchangeLanguageDetectedEvent{Language: "en"}, "s1", "ExchangeHandler")
	data, err := MarshalEvent(packet)
	if err != nil {
		t.Fatalf("MarshalEvent: %v", err)
	}
	msgType, raw, err := Unmarshal(data)
	if err != nil || msgType != MsgEvent {
		t.Fatalf("type = %s, err = %v", msgType, err)
	}
	payload, err := UnmarshalPayload[EventPayload](raw)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.EventID != "exchange.language_detected" || payload.SessionID != "s1" || payload.Uid != packet.Uid {
		t.Errorf("payload = %+v", payload)
	}
	detected, err := UnmarshalPayload[exchange.ExchangeLanguageDetectedEvent](payload.Data)
	if err != nil || detected.Language != "en" {
		t.Errorf("event data = %+v, err = %v", detected, err)
	}
}

func TestMarshalEvent_Nil(t *testing.T) {
	if _, err := MarshalEvent(nil); err == nil {
		t.Error("expected error for nil packet")
	}
}
