package paypal

import (
	"encoding/json"
	"fmt"
)

const (
	IntentCapture = "CAPTURE"

	StatusCreated   = "CREATED"
	StatusCompleted = "COMPLETED"

	relPayerAction = "payer-action"
	relApprove     = "approve"
)

type Amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type PurchaseUnit struct {
	ReferenceID string `json:"reference_id"`
	Description string `json:"description,omitempty"`
	Amount      Amount `json:"amount"`
}

type ExperienceContext struct {
	PaymentMethodPreference string `json:"payment_method_preference"`
	BrandName               string `json:"brand_name"`
	Locale                  string `json:"locale"`
	LandingPage             string `json:"landing_page"`
	UserAction              string `json:"user_action"`
	ReturnURL               string `json:"return_url"`
	CancelURL               string `json:"cancel_url"`
}

type PaymentSource struct {
	PayPal struct {
		ExperienceContext ExperienceContext `json:"experience_context"`
	} `json:"paypal"`
}

type CreateOrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
	PaymentSource PaymentSource  `json:"payment_source"`
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

type Payer struct {
	EmailAddress string `json:"email_address"`
}

type Capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount Amount `json:"amount"`
}

type OrderUnit struct {
	ReferenceID string `json:"reference_id"`
	Payments    struct {
		Captures []Capture `json:"captures"`
	} `json:"payments"`
}

// Order is the subset of the provider order resource the service reads
type Order struct {
	ID            string      `json:"id"`
	Status        string      `json:"status"`
	Links         []Link      `json:"links"`
	Payer         *Payer      `json:"payer,omitempty"`
	PurchaseUnits []OrderUnit `json:"purchase_units"`

	// Raw is the provider response body, kept for audit
	Raw json.RawMessage `json:"-"`
}

// ApprovalURL returns the payer-action link, falling back to the legacy approve link
func (o *Order) ApprovalURL() string {
	var approve string
	for _, link := range o.Links {
		switch link.Rel {
		case relPayerAction:
			return link.Href
		case relApprove:
			approve = link.Href
		}
	}
	return approve
}

// ReferenceID returns the course id embedded in the first purchase unit
func (o *Order) ReferenceID() string {
	if len(o.PurchaseUnits) == 0 {
		return ""
	}
	return o.PurchaseUnits[0].ReferenceID
}

func (o *Order) PayerEmail() string {
	if o.Payer == nil {
		return ""
	}
	return o.Payer.EmailAddress
}

// FirstCapture returns the first capture of the first purchase unit, if any
func (o *Order) FirstCapture() *Capture {
	for _, unit := range o.PurchaseUnits {
		if len(unit.Payments.Captures) > 0 {
			return &unit.Payments.Captures[0]
		}
	}
	return nil
}

// FormatAmount renders an amount in cents with exactly two decimals
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
