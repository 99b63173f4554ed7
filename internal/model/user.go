package model

import "time"

// SubscriptionStatus mirrors the billing provider's view of a user's plan.
type SubscriptionStatus string

const (
	StatusNone     SubscriptionStatus = "none"
	StatusTrialing SubscriptionStatus = "trialing"
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
	StatusDeleted  SubscriptionStatus = "deleted"
	StatusLifetime SubscriptionStatus = "lifetime"
)

// User stores identity and billing metadata. ExternalID is the identity
// provider's stable id; Telegram users get "telegram:<id>".
type User struct {
	ID                   uint    `gorm:"primaryKey"`
	ExternalID           string  `gorm:"uniqueIndex"`
	Name                 string
	Email                *string `gorm:"uniqueIndex"`
	TelegramChatID       *int64  `gorm:"index"`
	StripeCustomerID     *string `gorm:"uniqueIndex"`
	StripeSubscriptionID *string
	SubscriptionStatus   SubscriptionStatus `gorm:"default:none"`
	PlanName             string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
