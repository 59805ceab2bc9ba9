package registration

import (
	"fmt"
	"net/url"
	"sort"

	"pushbridge/internal/constants"
)

// Request is the transient value describing one device registration. It
// is built from an event plus the resolved configuration, encoded into a
// form payload, and discarded.
type Request struct {
	DeviceToken     string
	IntegrationKey  string
	MarketingServer string
	UserKey         string
	Lifecycle       map[string]interface{}
}

// EncodePayload renders the URL-encoded form body. Lifecycle fields ride
// along as additional flat parameters; keys are encoded in sorted order
// so the payload is deterministic.
func (r Request) EncodePayload() string {
	values := url.Values{}
	values.Set(constants.PayloadKeyRegistrationToken, r.DeviceToken)
	values.Set(constants.PayloadKeyMobileAppID, r.IntegrationKey)
	values.Set(constants.PayloadKeyUserKey, r.UserKey)

	keys := make([]string, 0, len(r.Lifecycle))
	for k := range r.Lifecycle {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values.Set(k, fmt.Sprintf("%v", r.Lifecycle[k]))
	}

	return values.Encode()
}

// URL renders the registration endpoint for the configured marketing
// server.
func (r Request) URL() string {
	return fmt.Sprintf(constants.RegistrationURLFormat, r.MarketingServer)
}

// Hash returns the dedup digest of the identifying tuple.
func (r Request) Hash() string {
	return Hash(r.DeviceToken, r.IntegrationKey, r.MarketingServer)
}
