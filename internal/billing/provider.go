// Package billing maps the payment provider's subscription state onto local
// users and decides who may use subscription-gated features.
package billing

import (
	"context"
	"time"
)

// Checkout modes accepted by the provider.
const (
	ModeSubscription = "subscription"
	ModePayment      = "payment"
)

// Provider event types the gate reacts to.
const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventInvoicePaid          = "invoice.paid"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaymentFailed = "invoice.payment_failed"
)

// Subscription is the live provider view of one subscription.
type Subscription struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	PeriodEnd         *time.Time `json:"period_end,omitempty"`
	PlanName          string     `json:"plan_name"`
	UnitAmount        int64      `json:"unit_amount"`
	Currency          string     `json:"currency"`
}

// CheckoutRequest describes a hosted checkout page to open.
type CheckoutRequest struct {
	CustomerID string
	Mode       string
	PriceID    string
	SuccessURL string
	CancelURL  string
	TrialDays  int
}

// Event is a verified webhook notification reduced to the fields the gate
// needs. ObjectID is the id of the event's data object.
type Event struct {
	ID                string
	Type              string
	CustomerID        string
	ObjectID          string
	SubscriptionID    string
	Mode              string
	Status            string
	CancelAtPeriodEnd bool
}

// Provider is the payment provider as seen by the gate. Implementations make
// one synchronous call per method and never retry.
type Provider interface {
	CreateCustomer(ctx context.Context, email string) (string, error)
	HasSubscriptions(ctx context.Context, customerID string) (bool, error)
	CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error
	CancelNow(ctx context.Context, subscriptionID string) error
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	ParseEvent(payload []byte, signature string) (Event, error)
}
