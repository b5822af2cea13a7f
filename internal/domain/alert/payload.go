package alert

// Payloads exchanged over the broker. Matching is exact and case-sensitive.
const (
	// PayloadAlert raises the alert when received on the alert topic.
	PayloadAlert = "ALERT"
	// PayloadStop clears the alert when received, and acknowledges it when published.
	PayloadStop = "STOP"
	// PayloadTestAlert is published on the control topic when a test alert is triggered locally.
	PayloadTestAlert = "TEST_ALERT"
)

// Default broker topics.
const (
	// DefaultAlertTopic is subscribed for inbound alert payloads.
	DefaultAlertTopic = "cucoon/alert"
	// DefaultControlTopic receives acknowledgements and test notifications.
	DefaultControlTopic = "cucoon/control"
)

// ParsePayload maps an inbound payload to the state it requests.
// The second result is false for payloads that must be ignored,
// TEST_ALERT included.
func ParsePayload(payload []byte) (State, bool) {
	switch string(payload) {
	case PayloadAlert:
		return StateAlert, true
	case PayloadStop:
		return StateSafe, true
	default:
		return StateSafe, false
	}
}
