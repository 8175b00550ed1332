package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/primebond/ledger/internal/domain/shared"
)

// PayoutMethod is the closed set of destinations a payout can be sent to:
// BankPayout, CashPayout, CardPayout or CryptoPayout. The unexported marker
// method keeps the set closed to this package.
type PayoutMethod interface {
	Kind() PaymentMethod
	Validate() error
	payoutMethod()
}

// BankPayout sends the payout by bank transfer
type BankPayout struct {
	AccountHolder string `json:"account_holder"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	IBAN          string `json:"iban,omitempty"`
	SwiftCode     string `json:"swift_code,omitempty"`
	IFSCCode      string `json:"ifsc_code,omitempty"`
	SortCode      string `json:"sort_code,omitempty"`
	RoutingNumber string `json:"routing_number,omitempty"`
}

// CashPayout is collected in person
type CashPayout struct {
	CollectionPoint string `json:"collection_point,omitempty"`
}

// CardPayout is pushed to a tokenized card
type CardPayout struct {
	CardToken string `json:"card_token"`
	Last4     string `json:"last4"`
}

// CryptoPayout is sent to a wallet
type CryptoPayout struct {
	WalletAddress string `json:"wallet_address"`
	CoinType      string `json:"coin_type"`
}

func (BankPayout) Kind() PaymentMethod   { return PaymentMethodBank }
func (CashPayout) Kind() PaymentMethod   { return PaymentMethodCash }
func (CardPayout) Kind() PaymentMethod   { return PaymentMethodCard }
func (CryptoPayout) Kind() PaymentMethod { return PaymentMethodCrypto }

func (BankPayout) payoutMethod()   {}
func (CashPayout) payoutMethod()   {}
func (CardPayout) payoutMethod()   {}
func (CryptoPayout) payoutMethod() {}

func (b BankPayout) Validate() error {
	if strings.TrimSpace(b.AccountHolder) == "" || strings.TrimSpace(b.AccountNumber) == "" || strings.TrimSpace(b.BankName) == "" {
		return shared.NewValidationError(ReasonInvalidPayoutMethod, "bank payouts require account holder, account number and bank name")
	}
	return nil
}

func (CashPayout) Validate() error { return nil }

func (c CardPayout) Validate() error {
	if c.CardToken == "" {
		return shared.NewValidationError(ReasonInvalidPayoutMethod, "card payouts require a card token")
	}
	if len(c.Last4) != 4 {
		return shared.NewValidationError(ReasonInvalidPayoutMethod, "card last4 must be four digits")
	}
	return nil
}

func (c CryptoPayout) Validate() error {
	if strings.TrimSpace(c.WalletAddress) == "" || strings.TrimSpace(c.CoinType) == "" {
		return shared.NewValidationError(ReasonInvalidPayoutMethod, "crypto payouts require wallet address and coin type")
	}
	return nil
}

// DescribePayout renders the destination for notifications and settlement
// responses. Account numbers are masked to their last four characters.
func DescribePayout(m PayoutMethod) string {
	switch v := m.(type) {
	case BankPayout:
		parts := []string{fmt.Sprintf("%s, %s, account %s", v.BankName, v.AccountHolder, mask(v.AccountNumber))}
		if v.IBAN != "" {
			parts = append(parts, "IBAN "+mask(v.IBAN))
		}
		if v.SwiftCode != "" {
			parts = append(parts, "SWIFT "+v.SwiftCode)
		}
		if v.IFSCCode != "" {
			parts = append(parts, "IFSC "+v.IFSCCode)
		}
		if v.SortCode != "" {
			parts = append(parts, "sort code "+v.SortCode)
		}
		if v.RoutingNumber != "" {
			parts = append(parts, "routing "+v.RoutingNumber)
		}
		return "Bank transfer: " + strings.Join(parts, "; ")
	case CashPayout:
		if v.CollectionPoint != "" {
			return "Cash collection at " + v.CollectionPoint
		}
		return "Cash collection"
	case CardPayout:
		return "Card ending " + v.Last4
	case CryptoPayout:
		return fmt.Sprintf("%s wallet %s", strings.ToUpper(v.CoinType), mask(v.WalletAddress))
	case nil:
		return ""
	default:
		panic(fmt.Sprintf("ledger: unhandled payout method %T", m))
	}
}

// PayoutDetails returns the destination as a flat map for API responses
func PayoutDetails(m PayoutMethod) map[string]string {
	switch v := m.(type) {
	case BankPayout:
		return map[string]string{
			"account_holder": v.AccountHolder,
			"account_number": mask(v.AccountNumber),
			"bank_name":      v.BankName,
			"iban":           mask(v.IBAN),
			"swift_code":     v.SwiftCode,
			"ifsc_code":      v.IFSCCode,
			"sort_code":      v.SortCode,
			"routing_number": v.RoutingNumber,
		}
	case CashPayout:
		return map[string]string{"collection_point": v.CollectionPoint}
	case CardPayout:
		return map[string]string{"last4": v.Last4}
	case CryptoPayout:
		return map[string]string{"wallet_address": v.WalletAddress, "coin_type": v.CoinType}
	case nil:
		return nil
	default:
		panic(fmt.Sprintf("ledger: unhandled payout method %T", m))
	}
}

func mask(s string) string {
	if len(s) <= 4 {
		return s
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

type payoutEnvelope struct {
	Kind   PaymentMethod   `json:"kind"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// MarshalPayoutMethod encodes m as {"kind": ..., "detail": {...}}
func MarshalPayoutMethod(m PayoutMethod) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	detail, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(payoutEnvelope{Kind: m.Kind(), Detail: detail})
}

// UnmarshalPayoutMethod decodes the envelope written by MarshalPayoutMethod.
// Empty input yields a nil method.
func UnmarshalPayoutMethod(data []byte) (PayoutMethod, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var env payoutEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode payout method: %w", err)
	}
	return DecodePayoutDetail(env.Kind, env.Detail)
}

// DecodePayoutDetail builds the variant for kind from its JSON detail
func DecodePayoutDetail(kind PaymentMethod, detail []byte) (PayoutMethod, error) {
	if len(detail) == 0 {
		detail = []byte("{}")
	}
	var (
		m   PayoutMethod
		err error
	)
	switch kind {
	case PaymentMethodBank:
		var v BankPayout
		err = json.Unmarshal(detail, &v)
		m = v
	case PaymentMethodCash:
		var v CashPayout
		err = json.Unmarshal(detail, &v)
		m = v
	case PaymentMethodCard:
		var v CardPayout
		err = json.Unmarshal(detail, &v)
		m = v
	case PaymentMethodCrypto:
		var v CryptoPayout
		err = json.Unmarshal(detail, &v)
		m = v
	default:
		return nil, shared.NewValidationError(ReasonInvalidPayoutMethod, fmt.Sprintf("unsupported payout kind %q", kind))
	}
	if err != nil {
		return nil, shared.NewValidationError(ReasonInvalidPayoutMethod, "malformed payout details").WithCause(err)
	}
	return m, nil
}
