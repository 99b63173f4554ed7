package billing

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
	"dailyplan/internal/repository"
)

// Lifetime plan as shown to users who paid once.
const (
	LifetimePlanName = "Lifetime Access"
	LifetimePrice    = 29.99
	LifetimeCurrency = "USD"
)

// periodEndLayout formats renewal dates for display.
const periodEndLayout = "Jan 02, 2006"

// StatusGrantsAccess reports whether a provider status on its own unlocks
// gated features.
func StatusGrantsAccess(status model.SubscriptionStatus) bool {
	switch status {
	case model.StatusActive, model.StatusTrialing, model.StatusLifetime:
		return true
	default:
		return false
	}
}

// HasAccess reports whether user may use gated features. A canceled user
// still holding a subscription id is inside the paid period: the id is only
// cleared once the provider ends the subscription.
func HasAccess(user *model.User) bool {
	if user == nil {
		return false
	}
	if StatusGrantsAccess(user.SubscriptionStatus) {
		return true
	}
	return user.SubscriptionStatus == model.StatusCanceled &&
		user.StripeSubscriptionID != nil && *user.StripeSubscriptionID != ""
}

// StatusView is the display projection of a user's subscription.
type StatusView struct {
	IsSubscribed      bool     `json:"is_subscribed"`
	Status            string   `json:"status"`
	PeriodEndDate     *string  `json:"period_end_date"`
	CancelAtPeriodEnd *bool    `json:"cancel_at_period_end"`
	PlanName          *string  `json:"plan_name"`
	PriceAmount       *float64 `json:"price_amount"`
	PriceCurrency     *string  `json:"price_currency"`
}

// CheckoutInput is a user's request to open a checkout page.
type CheckoutInput struct {
	Mode       string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// Options tune a Gate. Zero values fall back to defaults.
type Options struct {
	TrialDays int
	Timeout   time.Duration
	Cache     *StatusCache
	Deduper   *EventDeduper
}

// Gate owns every write of billing state on users and answers access
// questions for the HTTP layer.
type Gate struct {
	users     *repository.UserRepository
	provider  Provider
	logger    *log.Logger
	trialDays int
	timeout   time.Duration
	cache     *StatusCache
	deduper   *EventDeduper
}

func NewGate(users *repository.UserRepository, provider Provider, logger *log.Logger, opts Options) *Gate {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Gate{
		users:     users,
		provider:  provider,
		logger:    logger,
		trialDays: opts.TrialDays,
		timeout:   opts.Timeout,
		cache:     opts.Cache,
		deduper:   opts.Deduper,
	}
}

// Access reports whether user may use gated features.
func (g *Gate) Access(user *model.User) bool {
	return HasAccess(user)
}

// Status projects the user's plan for display, consulting the provider for
// live subscription details.
func (g *Gate) Status(ctx context.Context, user *model.User) (StatusView, error) {
	if user.StripeSubscriptionID == nil || *user.StripeSubscriptionID == "" {
		if user.SubscriptionStatus == model.StatusLifetime {
			name, price, currency := LifetimePlanName, LifetimePrice, LifetimeCurrency
			return StatusView{
				IsSubscribed:  true,
				Status:        string(model.StatusLifetime),
				PlanName:      &name,
				PriceAmount:   &price,
				PriceCurrency: &currency,
			}, nil
		}
		return StatusView{Status: string(model.StatusNone)}, nil
	}

	subID := *user.StripeSubscriptionID
	sub, ok := g.cache.Load(ctx, subID)
	if !ok {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		var err error
		sub, err = g.provider.GetSubscription(callCtx, subID)
		if err != nil {
			return StatusView{}, g.upstream("get subscription", user, err)
		}
		g.cache.Store(ctx, sub)
	}

	cancelAtEnd := sub.CancelAtPeriodEnd
	view := StatusView{
		IsSubscribed:      StatusGrantsAccess(model.SubscriptionStatus(sub.Status)),
		Status:            sub.Status,
		CancelAtPeriodEnd: &cancelAtEnd,
	}
	if sub.PeriodEnd != nil {
		end := sub.PeriodEnd.Format(periodEndLayout)
		view.PeriodEndDate = &end
	}
	if sub.PlanName != "" {
		name := sub.PlanName
		view.PlanName = &name
	}
	if sub.Currency != "" {
		amount := math.Round(float64(sub.UnitAmount)) / 100
		currency := strings.ToUpper(sub.Currency)
		view.PriceAmount = &amount
		view.PriceCurrency = &currency
	}
	return view, nil
}

// Checkout opens a provider checkout page and returns its URL. The provider
// customer is created on first use; trial days apply only to a customer's
// first subscription.
func (g *Gate) Checkout(ctx context.Context, user *model.User, in CheckoutInput) (string, error) {
	if in.Mode != ModeSubscription && in.Mode != ModePayment {
		return "", fmt.Errorf("%w: mode must be %q or %q", apperr.ErrValidation, ModeSubscription, ModePayment)
	}
	if in.PriceID == "" || in.SuccessURL == "" || in.CancelURL == "" {
		return "", fmt.Errorf("%w: price_id, success_url and cancel_url are required", apperr.ErrValidation)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		email := ""
		if user.Email != nil {
			email = *user.Email
		}
		customerID, err := g.provider.CreateCustomer(callCtx, email)
		if err != nil {
			return "", g.upstream("create customer", user, err)
		}
		if err := g.users.UpdateBilling(ctx, user, map[string]interface{}{"stripe_customer_id": customerID}); err != nil {
			return "", err
		}
		user.StripeCustomerID = &customerID
	}

	hadSubscription, err := g.provider.HasSubscriptions(callCtx, *user.StripeCustomerID)
	if err != nil {
		return "", g.upstream("list subscriptions", user, err)
	}
	req := CheckoutRequest{
		CustomerID: *user.StripeCustomerID,
		Mode:       in.Mode,
		PriceID:    in.PriceID,
		SuccessURL: in.SuccessURL,
		CancelURL:  in.CancelURL,
	}
	if in.Mode == ModeSubscription && !hadSubscription {
		req.TrialDays = g.trialDays
	}
	url, err := g.provider.CreateCheckout(callCtx, req)
	if err != nil {
		return "", g.upstream("create checkout session", user, err)
	}
	return url, nil
}

// Cancel asks the provider to end the subscription at the close of the
// current period and marks the user canceled right away. The subscription id
// is kept, so access lasts until the provider deletes the subscription.
func (g *Gate) Cancel(ctx context.Context, user *model.User) error {
	if user.StripeSubscriptionID == nil || *user.StripeSubscriptionID == "" {
		return fmt.Errorf("%w: No active subscription to cancel", apperr.ErrValidation)
	}
	subID := *user.StripeSubscriptionID

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := g.provider.CancelAtPeriodEnd(callCtx, subID); err != nil {
		return g.upstream("cancel subscription", user, err)
	}
	if err := g.users.UpdateBilling(ctx, user, map[string]interface{}{"subscription_status": model.StatusCanceled}); err != nil {
		return err
	}
	user.SubscriptionStatus = model.StatusCanceled
	g.cache.Evict(ctx, subID)
	return nil
}

// HandleWebhook verifies a raw webhook delivery and applies it once.
func (g *Gate) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := g.provider.ParseEvent(payload, signature)
	if err != nil {
		g.logger.WithError(err).Warn("billing webhook rejected")
		return fmt.Errorf("%w: Invalid signature", apperr.ErrValidation)
	}
	entry := g.logger.WithFields(log.Fields{"event_id": ev.ID, "event_type": ev.Type})

	if g.deduper != nil && ev.ID != "" {
		added, err := g.deduper.Add(ctx, ev.ID)
		switch {
		case err != nil:
			entry.WithError(err).Warn("event dedupe unavailable")
		case !added:
			entry.Info("duplicate billing event skipped")
			return nil
		}
	}

	if err := g.Apply(ctx, ev); err != nil {
		if g.deduper != nil && ev.ID != "" {
			if rerr := g.deduper.Remove(ctx, ev.ID); rerr != nil {
				entry.WithError(rerr).Warn("release event id")
			}
		}
		return err
	}
	return nil
}

// Apply moves the customer's user through the subscription state machine.
// Events for unknown customers are logged and dropped.
func (g *Gate) Apply(ctx context.Context, ev Event) error {
	entry := g.logger.WithFields(log.Fields{
		"event_id":    ev.ID,
		"event_type":  ev.Type,
		"customer_id": ev.CustomerID,
	})
	if ev.CustomerID == "" {
		entry.Warn("billing event without customer ignored")
		return nil
	}
	user, err := g.users.FindByCustomerID(ctx, ev.CustomerID)
	if err != nil {
		return err
	}
	if user == nil {
		entry.Warn("customer not linked to any user")
		return nil
	}
	entry = entry.WithField("user_id", user.ID)

	previous := ""
	if user.StripeSubscriptionID != nil {
		previous = *user.StripeSubscriptionID
	}

	var fields map[string]interface{}
	switch ev.Type {
	case EventCheckoutCompleted:
		switch {
		case ev.Mode == ModeSubscription && ev.SubscriptionID != "":
			if previous != "" && previous != ev.SubscriptionID {
				g.cancelReplaced(ctx, entry, previous)
			}
			fields = map[string]interface{}{
				"stripe_subscription_id": ev.SubscriptionID,
				"subscription_status":    model.StatusActive,
			}
		case ev.Mode == ModePayment:
			if previous != "" {
				g.cancelReplaced(ctx, entry, previous)
			}
			fields = map[string]interface{}{
				"stripe_subscription_id": nil,
				"subscription_status":    model.StatusLifetime,
				"plan_name":              LifetimePlanName,
			}
		}
	case EventInvoicePaid:
		fields = map[string]interface{}{"subscription_status": model.StatusActive}
	case EventSubscriptionUpdated:
		fields = map[string]interface{}{
			"stripe_subscription_id": ev.ObjectID,
			"subscription_status":    model.SubscriptionStatus(ev.Status),
		}
	case EventSubscriptionDeleted:
		if previous == "" || previous != ev.ObjectID {
			entry.Info("deleted subscription is not the current one")
			return nil
		}
		if ev.CancelAtPeriodEnd {
			fields = map[string]interface{}{"subscription_status": model.StatusCanceled}
		} else {
			fields = map[string]interface{}{
				"subscription_status":    model.StatusDeleted,
				"stripe_subscription_id": nil,
			}
		}
	case EventInvoicePaymentFailed:
		fields = map[string]interface{}{"subscription_status": model.StatusPastDue}
	default:
		entry.Debug("billing event ignored")
		return nil
	}
	if len(fields) == 0 {
		return nil
	}

	if err := g.users.UpdateBilling(ctx, user, fields); err != nil {
		return err
	}
	g.cache.Evict(ctx, previous)
	entry.WithField("status", fields["subscription_status"]).Info("billing state updated")
	return nil
}

// cancelReplaced ends a subscription superseded by a new purchase. Failures
// are logged; the new purchase still applies.
func (g *Gate) cancelReplaced(ctx context.Context, entry *log.Entry, subscriptionID string) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := g.provider.CancelNow(callCtx, subscriptionID); err != nil {
		entry.WithError(err).WithField("subscription_id", subscriptionID).Warn("failed to cancel replaced subscription")
	}
}

func (g *Gate) upstream(op string, user *model.User, err error) error {
	g.logger.WithError(err).WithFields(log.Fields{"op": op, "user_id": user.ID}).Error("billing provider call failed")
	return fmt.Errorf("%w: billing provider request failed", apperr.ErrUpstream)
}
