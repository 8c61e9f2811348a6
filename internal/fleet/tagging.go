package fleet

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// TagEntityID injects (or overwrites) an "entity_id" field into a JSON
// telemetry payload before forwarding it uplink, mirroring
// forward_telemetry_with_entity_id in zenoh_bridge/src/main.rs. Non-JSON or
// non-object payloads (raw video/audio bytes) pass through unchanged.
func TagEntityID(payload []byte, entityID string) []byte {
	if !gjson.ValidBytes(payload) || !gjson.ParseBytes(payload).IsObject() {
		return payload
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(payload, &obj); err != nil {
		return payload
	}
	obj["entity_id"] = entityID

	tagged, err := json.Marshal(obj)
	if err != nil {
		return payload
	}
	return tagged
}

// IsStructuredTelemetry reports whether a topic's payload is tagged JSON
// telemetry rather than raw media bytes, used to decide whether TagEntityID
// applies.
func IsStructuredTelemetry(topic string) bool {
	switch topic {
	case TopicVideo, TopicAudio:
		return false
	default:
		return true
	}
}
