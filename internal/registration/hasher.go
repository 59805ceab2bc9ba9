package registration

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash produces the digest of the registration tuple used by the dedup
// check. The field order is fixed; changing it invalidates every stored
// hash.
func Hash(deviceToken, integrationKey, marketingServer string) string {
	var builder strings.Builder
	builder.WriteString(deviceToken)
	builder.WriteString("|")
	builder.WriteString(integrationKey)
	builder.WriteString("|")
	builder.WriteString(marketingServer)

	sum := sha256.Sum256([]byte(builder.String()))
	return hex.EncodeToString(sum[:])
}
