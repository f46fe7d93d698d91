package cls

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// a software/service license tracked by the register. CardDigits holds
// the last 0-4 digits of the payment card in plaintext - it is stored
// encrypted at rest, the db layer decrypts on read.
type License struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Type              string          `json:"type"`
	Department        string          `json:"department"`
	Supplier          string          `json:"supplier"`
	RenewalDate       time.Time       `json:"renewalDate"`
	ServiceOwnerEmail string          `json:"serviceOwnerEmail"`
	CostType          string          `json:"costType"`
	MonthlyCost       decimal.Decimal `json:"monthlyCost"`
	PaymentMethod     string          `json:"paymentMethod"`
	CardDigits        string          `json:"cardDigits"`
	CCEmails          []string        `json:"ccEmails"`
}

func (l License) String() string {
	return fmt.Sprintf(
		"License {%s (%s), Dept: %s, Supplier: %s, Renewal: %s, Owner: %s, Cost: %s %s}",
		l.Name, l.Type, l.Department, l.Supplier,
		l.RenewalDate.Format("2006-01-02"), l.ServiceOwnerEmail,
		l.MonthlyCost, l.CostType,
	)
}

// master switch + per tier message templates for renewal reminders
type NotificationSettings struct {
	Enabled   bool            `json:"enabled"`
	Templates map[Tier]string `json:"emailTemplates"`
}

// credentials for the email provider. All four fields must be set for
// the scheduler to consider dispatch possible.
type EmailSettings struct {
	ServiceID   string `json:"serviceId"`
	TemplateID  string `json:"templateId"`
	PublicKey   string `json:"publicKey"`
	SenderEmail string `json:"senderEmail"`
}

// whether all required provider fields are present
func (es EmailSettings) Configured() bool {
	return es.ServiceID != "" && es.TemplateID != "" &&
		es.PublicKey != "" && es.SenderEmail != ""
}
