package ledger

import (
	"strings"
	"time"

	"github.com/primebond/ledger/internal/domain/shared"
)

// Cadence is the periodicity at which returns are scheduled
type Cadence string

const (
	CadenceMonthly  Cadence = "monthly"
	CadenceAnnually Cadence = "annually"
)

// IsValid checks if the cadence is a known value
func (c Cadence) IsValid() bool {
	return c == CadenceMonthly || c == CadenceAnnually
}

func (c Cadence) String() string {
	return string(c)
}

// ParseCadence accepts the canonical values plus the "yearly"/"annual" spellings
func ParseCadence(s string) (Cadence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly", "month":
		return CadenceMonthly, nil
	case "annually", "annual", "yearly", "year":
		return CadenceAnnually, nil
	}
	return "", shared.NewValidationError(ReasonInvalidCadence, "cadence must be monthly or annually")
}

// Advance returns from moved forward by one period.
// Month arithmetic follows time.AddDate normalization, so Jan 31 + 1 month is Mar 2 or 3.
func (c Cadence) Advance(from time.Time) time.Time {
	if c == CadenceAnnually {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}
