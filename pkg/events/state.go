package events

// Status reports whether a shared state is available for an event.
type Status int

const (
	StatusPending Status = iota
	StatusSet
)

func (s Status) String() string {
	if s == StatusSet {
		return "set"
	}
	return "pending"
}

// Shared state keys published by the host configuration.
const (
	StateKeyIntegrationKey  = "campaign.integrationKey"
	StateKeyMarketingServer = "campaign.server"
	StateKeyTrackingServer  = "campaign.trackingServer"
	StateKeyTimeoutSeconds  = "campaign.timeout"
	StateKeyPrivacyStatus   = "global.privacy"
)

// StateProvider exposes the host shared states the extension reads. Both
// queries are scoped to an event: the returned map is the state valid at
// the time the event was dispatched.
type StateProvider interface {
	ConfigurationState(e *Event) (map[string]interface{}, Status)
	LifecycleState(e *Event) (map[string]interface{}, Status)
}
