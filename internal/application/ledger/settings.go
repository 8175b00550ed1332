package ledger

import (
	"context"

	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Settings holds the business parameters of the ledger
type Settings struct {
	Currency           valueobject.Currency
	RegistrationFee    decimal.Decimal
	MemberNumberPrefix string
}

// DefaultSettings returns the settings used when none are configured
func DefaultSettings() Settings {
	return Settings{
		Currency:           valueobject.DefaultCurrency,
		RegistrationFee:    decimal.NewFromInt(50),
		MemberNumberPrefix: "PRB",
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Currency == "" {
		s.Currency = d.Currency
	}
	if !s.RegistrationFee.IsPositive() {
		s.RegistrationFee = d.RegistrationFee
	}
	if s.MemberNumberPrefix == "" {
		s.MemberNumberPrefix = d.MemberNumberPrefix
	}
	return s
}

type eventSource interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}

// publishEvents forwards the events raised on committed aggregates.
// Publishing happens after commit, so failures are logged and dropped.
func publishEvents(ctx context.Context, publisher shared.EventPublisher, logger *zap.Logger, sources ...eventSource) {
	var events []shared.DomainEvent
	for _, src := range sources {
		if src == nil {
			continue
		}
		events = append(events, src.GetDomainEvents()...)
		src.ClearDomainEvents()
	}
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.Warn("Failed to publish domain events",
			zap.Int("count", len(events)),
			zap.Error(err))
	}
}
