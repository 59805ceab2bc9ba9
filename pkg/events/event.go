package events

import "time"

// Event is the envelope delivered to the extension. It is built once and
// treated as read-only afterwards; handlers never mutate the payload.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}

// Event types consumed by the extension.
const (
	TypeRequestContent        = "request_content"
	TypeConfigurationResponse = "configuration_response"
)

// Payload keys for request-content events.
const (
	KeyRegisterDevice = "registerdevice"
	KeyTrackClick     = "trackclick"
	KeyTrackReceive   = "trackreceive"
	KeyDeviceToken    = "devicetoken"
	KeyUserKey        = "userkey"
	KeyTrackInfo      = "trackinfo"
	KeyDeliveryID     = "deliveryId"
	KeyBroadlogID     = "broadlogId"
)

// BoolFlag reads a boolean payload flag. Absent or malformed values read
// as false.
func (e *Event) BoolFlag(name string) bool {
	if e == nil || e.Payload == nil {
		return false
	}
	v, ok := e.Payload[name].(bool)
	return ok && v
}

// StringField reads a string payload field, returning "" when absent or
// of the wrong type.
func (e *Event) StringField(name string) string {
	if e == nil || e.Payload == nil {
		return ""
	}
	v, _ := e.Payload[name].(string)
	return v
}

// MapField reads a nested map payload field.
func (e *Event) MapField(name string) (map[string]interface{}, bool) {
	if e == nil || e.Payload == nil {
		return nil, false
	}
	v, ok := e.Payload[name].(map[string]interface{})
	return v, ok
}
