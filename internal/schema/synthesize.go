package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Exactly two synthesis rules exist. Anything else missing is a validation
// failure, not a guess.

// SynthesizeCustomerID derives a stable identifier from the customer email.
// The same email always yields the same id, so re-uploads keep customer
// rollups consistent.
func SynthesizeCustomerID(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "cust-" + hex.EncodeToString(sum[:6])
}

// SynthesizeOrderID combines the row date with the row index. Deterministic
// for a given dataset, unique within it.
func SynthesizeOrderID(date time.Time, rowIndex int) string {
	return fmt.Sprintf("%s-%d", date.Format("2006-01-02"), rowIndex)
}
