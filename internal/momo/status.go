// momo-gateway/internal/momo/status.go
package momo

import (
	"log"
	"strings"

	"github.com/example/momo-gateway/internal/intent"
)

// MapProviderStatus translates the provider's status vocabulary into the
// internal enum. The polling path and the webhook path MUST both go
// through this function; an unrecognized word is never treated as
// terminal, so vocabulary drift cannot silently lose a money event.
func MapProviderStatus(providerStatus string) intent.Status {
	switch strings.ToUpper(strings.TrimSpace(providerStatus)) {
	case "SUCCESSFUL":
		return intent.StatusSuccessful
	case "FAILED", "REJECTED", "TIMEOUT":
		return intent.StatusFailed
	case "PENDING", "CREATED", "ONGOING":
		return intent.StatusPending
	default:
		log.Printf("[momo] unrecognized provider status %q, treating as PENDING", providerStatus)
		return intent.StatusPending
	}
}
