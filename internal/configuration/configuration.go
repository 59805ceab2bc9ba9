package configuration

import (
	"time"

	"pushbridge/internal/constants"
	"pushbridge/pkg/events"
)

// PrivacyStatus is the user consent state gating all outbound traffic.
type PrivacyStatus int

const (
	PrivacyUnknown PrivacyStatus = iota
	PrivacyOptedIn
	PrivacyOptedOut
)

func (p PrivacyStatus) String() string {
	switch p {
	case PrivacyOptedIn:
		return "optedin"
	case PrivacyOptedOut:
		return "optedout"
	default:
		return "unknown"
	}
}

// ParsePrivacyStatus maps the shared-state string to a PrivacyStatus.
// Anything unrecognized is unknown.
func ParsePrivacyStatus(s string) PrivacyStatus {
	switch s {
	case "optedin":
		return PrivacyOptedIn
	case "optedout":
		return PrivacyOptedOut
	default:
		return PrivacyUnknown
	}
}

// Snapshot is the configuration resolved for a single event. It is built
// once per event and never mutated afterwards.
type Snapshot struct {
	IntegrationKey  string
	MarketingServer string
	TrackingServer  string
	Timeout         time.Duration
	Privacy         PrivacyStatus
}

// Default returns the snapshot used when no configuration shared state
// exists yet.
func Default() Snapshot {
	return Snapshot{
		Timeout: constants.DefaultRequestTimeout,
		Privacy: PrivacyUnknown,
	}
}

// Resolve derives the snapshot for an event from the host's configuration
// shared state. A missing state is a normal transient condition and yields
// the all-defaults snapshot.
func Resolve(e *events.Event, provider events.StateProvider) Snapshot {
	snapshot := Default()

	if provider == nil {
		return snapshot
	}

	state, status := provider.ConfigurationState(e)
	if status != events.StatusSet || state == nil {
		return snapshot
	}

	if v, ok := state[events.StateKeyIntegrationKey].(string); ok {
		snapshot.IntegrationKey = v
	}
	if v, ok := state[events.StateKeyMarketingServer].(string); ok {
		snapshot.MarketingServer = v
	}
	if v, ok := state[events.StateKeyTrackingServer].(string); ok {
		snapshot.TrackingServer = v
	}
	if v, ok := state[events.StateKeyPrivacyStatus].(string); ok {
		snapshot.Privacy = ParsePrivacyStatus(v)
	}
	if seconds := timeoutSeconds(state[events.StateKeyTimeoutSeconds]); seconds > 0 {
		snapshot.Timeout = time.Duration(seconds) * time.Second
	}

	return snapshot
}

// timeoutSeconds tolerates the numeric types a JSON-decoded or map-built
// shared state can carry.
func timeoutSeconds(v interface{}) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
