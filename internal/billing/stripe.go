package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeProvider talks to Stripe through the official client.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	return &StripeProvider{api: client.New(secretKey, nil), webhookSecret: webhookSecret}
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerParams{}
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.Context = ctx
	c, err := p.api.Customers.New(params)
	if err != nil {
		return "", stripeErr("create customer", err)
	}
	return c.ID, nil
}

// HasSubscriptions reports whether the customer ever had a subscription in
// any state.
func (p *StripeProvider) HasSubscriptions(ctx context.Context, customerID string) (bool, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Limit = stripe.Int64(1)
	params.Context = ctx
	iter := p.api.Subscriptions.List(params)
	found := iter.Next()
	if err := iter.Err(); err != nil {
		return false, stripeErr("list subscriptions", err)
	}
	return found, nil
}

func (p *StripeProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(req.CustomerID),
		Mode:     stripe.String(req.Mode),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(req.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.Mode == ModeSubscription && req.TrialDays > 0 {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(int64(req.TrialDays)),
		}
	}
	params.Context = ctx
	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return "", stripeErr("create checkout session", err)
	}
	return s.URL, nil
}

func (p *StripeProvider) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx
	if _, err := p.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return stripeErr("cancel at period end", err)
	}
	return nil
}

func (p *StripeProvider) CancelNow(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := p.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return stripeErr("cancel subscription", err)
	}
	return nil
}

func (p *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.AddExpand("items.data.price.product")
	params.Context = ctx
	s, err := p.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, stripeErr("get subscription", err)
	}

	out := &Subscription{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	end := s.CurrentPeriodEnd
	if end == 0 {
		end = s.TrialEnd
	}
	if end > 0 {
		t := time.Unix(end, 0).UTC()
		out.PeriodEnd = &t
	}
	if s.Items != nil && len(s.Items.Data) > 0 && s.Items.Data[0].Price != nil {
		price := s.Items.Data[0].Price
		out.UnitAmount = price.UnitAmount
		out.Currency = string(price.Currency)
		if price.Product != nil {
			out.PlanName = price.Product.Name
		}
	}
	return out, nil
}

// ParseEvent verifies the Stripe-Signature header and decodes the event.
func (p *StripeProvider) ParseEvent(payload []byte, signature string) (Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Event{}, fmt.Errorf("verify webhook: %w", err)
	}
	var obj map[string]interface{}
	if ev.Data != nil {
		obj = ev.Data.Object
	}
	return eventFromObject(ev.ID, string(ev.Type), obj), nil
}

func eventFromObject(id, typ string, obj map[string]interface{}) Event {
	ev := Event{
		ID:             id,
		Type:           typ,
		CustomerID:     refID(obj["customer"]),
		ObjectID:       refID(obj["id"]),
		SubscriptionID: refID(obj["subscription"]),
	}
	ev.Mode, _ = obj["mode"].(string)
	ev.Status, _ = obj["status"].(string)
	ev.CancelAtPeriodEnd, _ = obj["cancel_at_period_end"].(bool)
	return ev
}

// refID reads an object reference that Stripe sends either as an id string
// or as an expanded object.
func refID(v interface{}) string {
	switch ref := v.(type) {
	case string:
		return ref
	case map[string]interface{}:
		id, _ := ref["id"].(string)
		return id
	default:
		return ""
	}
}

func stripeErr(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		return fmt.Errorf("stripe %s: %s (type=%s code=%s): %w", op, se.Msg, se.Type, se.Code, err)
	}
	return fmt.Errorf("stripe %s: %w", op, err)
}
