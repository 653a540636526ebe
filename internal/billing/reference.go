package billing

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Reference code prefixes, one per intent.
const (
	PrefixMonthly   = "MTH"
	PrefixExtension = "TRIAL"
	PrefixUpgrade   = "UPG-PROV"
	PrefixMigrate   = "MIGRATE"
)

// NewReference builds PREFIX-YYYYMMDD-XXXXXXXX with a random upper-case hex
// suffix.
func NewReference(prefix string, now time.Time) (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("failed to generate reference suffix: %w", err)
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(suffix))), nil
}
