package payments

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MintReference produces the opaque reference attached to an outbound
// payment: "<userId>_<CURRENCY>_<unixMillis>". The reference binds the
// payment attempt to the account that gets credited on success; global
// uniqueness comes from the provider transaction id, not the timestamp.
func MintReference(userID uint, currency Currency, now time.Time) string {
	return fmt.Sprintf("%d_%s_%d", userID, currency, now.UnixMilli())
}

// ParseReference recovers the owning user and currency from a minted
// reference. At least the userId and currency segments must be present.
func ParseReference(ref string) (uint, Currency, error) {
	parts := strings.Split(strings.TrimSpace(ref), "_")
	if len(parts) < 2 {
		return 0, "", ErrMalformedReference
	}
	id, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil || id == 0 {
		return 0, "", ErrMalformedReference
	}
	currency, err := ParseCurrency(parts[1])
	if err != nil {
		return 0, "", ErrMalformedReference
	}
	return uint(id), currency, nil
}

// AuthorizeReference checks that the reference belongs to callerID.
// This is a security gate, not a business decision: a mismatch is fatal
// for the request and never retried.
func AuthorizeReference(ref string, callerID uint) error {
	owner, _, err := ParseReference(ref)
	if err != nil {
		return err
	}
	if owner != callerID {
		return ErrUnauthorizedReference
	}
	return nil
}
