package persistence

import (
	"fmt"
	"strings"

	"github.com/primebond/ledger/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// InvestmentSortFields contains allowed sort fields for investments
var InvestmentSortFields = map[string]bool{
	"created_at":       true,
	"updated_at":       true,
	"amount":           true,
	"status":           true,
	"next_payout_date": true,
	"start_date":       true,
}

// PaymentSortFields contains allowed sort fields for payments
var PaymentSortFields = map[string]bool{
	"created_at":   true,
	"amount":       true,
	"status":       true,
	"type":         true,
	"confirmed_at": true,
}

// ROISortFields contains allowed sort fields for ROI records
var ROISortFields = map[string]bool{
	"created_at":       true,
	"total_paid":       true,
	"payouts_made":     true,
	"last_payout_date": true,
}

// ReturnSortFields contains allowed sort fields for returns
var ReturnSortFields = map[string]bool{
	"created_at":  true,
	"payout_date": true,
	"amount":      true,
	"status":      true,
	"paid_at":     true,
}

// paginate applies whitelisted ordering and limit/offset from filter
func paginate(query *gorm.DB, filter shared.Filter, allowed map[string]bool, defaultField string) *gorm.DB {
	f := filter.Normalize()
	field := ValidateSortField(filter.OrderBy, allowed, defaultField)
	query = query.Order(fmt.Sprintf("%s %s, id %s", field, ValidateSortOrder(f.OrderDir), ValidateSortOrder(f.OrderDir)))
	return query.Limit(f.PageSize).Offset(f.Offset())
}
