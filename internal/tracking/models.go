package tracking

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"pushbridge/internal/constants"
)

// Request is the transient value describing one tracking hit.
type Request struct {
	DeliveryID     string
	BroadlogID     string
	TagID          string
	TrackingServer string
}

// URL renders the tracking redirect endpoint with the broadlog id,
// delivery id and tag id substituted in order.
func (r Request) URL() string {
	return fmt.Sprintf(constants.TrackingURLFormat, r.TrackingServer, r.BroadlogID, r.DeliveryID, r.TagID)
}

// NormalizeBroadlogID canonicalizes the broadlog id for the tracking URL.
// UUID-shaped ids pass unchanged, decimal ids are rendered as lowercase
// hex the way the tracking endpoint expects them, and anything else is
// passed through verbatim.
func NormalizeBroadlogID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}

	if n, err := strconv.ParseInt(id, 10, 64); err == nil && n >= 0 {
		return strconv.FormatInt(n, 16)
	}

	return id
}
