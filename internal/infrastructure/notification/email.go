// Package notification delivers payment receipts and payout notices.
package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/gomail.v2"
)

// Sender sends prepared messages. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailConfig holds the SMTP settings of the notifier
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	// AdminAddress receives a blind copy of each notice when set
	AdminAddress string
}

// EmailNotifier implements appledger.Notifier over SMTP. The recipient
// address is read from the member profile.
type EmailNotifier struct {
	sender   Sender
	profiles appledger.ProfileStore
	from     string
	admin    string
	logger   *zap.Logger
}

// NewEmailNotifier creates a notifier that dials the configured SMTP server
func NewEmailNotifier(cfg EmailConfig, profiles appledger.ProfileStore, logger *zap.Logger) *EmailNotifier {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	return NewEmailNotifierWithSender(dialer, cfg.From, cfg.AdminAddress, profiles, logger)
}

// NewEmailNotifierWithSender creates a notifier on an existing sender
func NewEmailNotifierWithSender(sender Sender, from, admin string, profiles appledger.ProfileStore, logger *zap.Logger) *EmailNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailNotifier{
		sender:   sender,
		profiles: profiles,
		from:     from,
		admin:    admin,
		logger:   logger.Named("notification"),
	}
}

var noticeTemplate = template.Must(template.New("notice").Parse(`<p>Dear {{.Name}},</p>
<p>{{.Description}}</p>
<table>
<tr><td>Amount</td><td>{{.Amount}} {{.Currency}}</td></tr>
<tr><td>Reference</td><td>{{.Reference}}</td></tr>
{{- if .PayoutDetails}}
<tr><td>Paid to</td><td>{{.PayoutDetails}}</td></tr>
{{- end}}
</table>
<p>Payment ID: {{.PaymentID}}</p>`))

type noticeData struct {
	Name          string
	Description   string
	Amount        string
	Currency      string
	Reference     string
	PayoutDetails string
	PaymentID     string
}

// Notify implements appledger.Notifier
func (n *EmailNotifier) Notify(ctx context.Context, note appledger.Notification) error {
	member, err := n.profiles.GetUser(ctx, note.UserID)
	if err != nil {
		return err
	}
	if member.Email == "" {
		return shared.NewExternalServiceError(ledger.ReasonNotificationFailed,
			fmt.Sprintf("member %s has no email address", note.UserID), nil)
	}

	var body bytes.Buffer
	if err := noticeTemplate.Execute(&body, noticeData{
		Name:          displayName(member.Name),
		Description:   note.Description,
		Amount:        formatAmount(note.Amount),
		Currency:      note.Currency,
		Reference:     note.Reference,
		PayoutDetails: note.PayoutDetails,
		PaymentID:     note.PaymentID.String(),
	}); err != nil {
		return fmt.Errorf("render notice: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", member.Email)
	if n.admin != "" {
		m.SetHeader("Bcc", n.admin)
	}
	m.SetHeader("Subject", note.Description)
	m.SetBody("text/html", body.String())

	if err := n.sender.DialAndSend(m); err != nil {
		return shared.NewExternalServiceError(ledger.ReasonNotificationFailed, "send notification email", err)
	}
	n.logger.Info("Notification sent",
		zap.String("user_id", note.UserID),
		zap.String("reference", note.Reference))
	return nil
}

var (
	amountPrinter = message.NewPrinter(language.English)
	nameCaser     = cases.Title(language.English)
)

// formatAmount renders d with two decimals and grouped thousands
func formatAmount(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	_, frac, _ := strings.Cut(fixed, ".")
	whole := amountPrinter.Sprintf("%d", d.Abs().Truncate(0).IntPart())
	if d.IsNegative() {
		whole = "-" + whole
	}
	return whole + "." + frac
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Member"
	}
	return nameCaser.String(name)
}

var _ appledger.Notifier = (*EmailNotifier)(nil)
