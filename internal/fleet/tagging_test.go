package fleet

import (
	"encoding/json"
	"testing"
)

func TestTagEntityID_InjectsIntoJSONObject(t *testing.T) {
	payload := []byte(`{"speed":1.5}`)
	tagged := TagEntityID(payload, "rover-kiwi")

	var obj map[string]interface{}
	if err := json.Unmarshal(tagged, &obj); err != nil {
		t.Fatalf("expected valid JSON, got error: %v", err)
	}
	if obj["entity_id"] != "rover-kiwi" {
		t.Fatalf("expected entity_id to be injected, got %v", obj["entity_id"])
	}
	if obj["speed"] != 1.5 {
		t.Fatalf("expected original fields preserved, got %v", obj["speed"])
	}
}

func TestTagEntityID_PassesThroughNonObjectPayload(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	tagged := TagEntityID(payload, "rover-kiwi")
	if string(tagged) != string(payload) {
		t.Fatalf("expected raw bytes to pass through unchanged")
	}
}

func TestIsStructuredTelemetry(t *testing.T) {
	if IsStructuredTelemetry(TopicVideo) {
		t.Fatalf("expected video topic to be raw media, not structured telemetry")
	}
	if !IsStructuredTelemetry(TopicRoverTelemetry) {
		t.Fatalf("expected rover telemetry topic to be structured")
	}
}
