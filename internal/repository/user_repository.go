package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"dailyplan/internal/model"
)

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertIdentity finds a user by external id, falling back to email, and
// creates one on first sight. Name and email are refreshed on every call.
func (r *UserRepository) UpsertIdentity(ctx context.Context, externalID, name, email string) (*model.User, error) {
	var user model.User
	db := r.db.WithContext(ctx)
	err := db.Where("external_id = ?", externalID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) && email != "" {
		err = db.Where("email = ?", email).First(&user).Error
	}
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"external_id": externalID,
			"name":        name,
		}
		if email != "" {
			updates["email"] = email
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		user.ExternalID = externalID
		user.Name = name
		if email != "" {
			user.Email = &email
		}
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = model.User{
			ExternalID:         externalID,
			Name:               name,
			SubscriptionStatus: model.StatusNone,
		}
		if email != "" {
			user.Email = &email
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return &user, nil
	default:
		return nil, fmt.Errorf("find user: %w", err)
	}
}

// TelegramExternalID is the external id used for users who only talk to the bot.
func TelegramExternalID(telegramID int64) string {
	return "telegram:" + strconv.FormatInt(telegramID, 10)
}

// UpsertFromTelegram finds or creates a user for a Telegram account and
// remembers the chat used for reports.
func (r *UserRepository) UpsertFromTelegram(ctx context.Context, telegramID, chatID int64, name string) (*model.User, error) {
	user, err := r.UpsertIdentity(ctx, TelegramExternalID(telegramID), name, "")
	if err != nil {
		return nil, err
	}
	if user.TelegramChatID == nil || *user.TelegramChatID != chatID {
		if err := r.db.WithContext(ctx).Model(user).Update("telegram_chat_id", chatID).Error; err != nil {
			return nil, fmt.Errorf("update user chat: %w", err)
		}
		user.TelegramChatID = &chatID
	}
	return user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

// FindByCustomerID returns the user linked to a billing customer, or nil.
func (r *UserRepository) FindByCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID).First(&user).Error
	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find user by customer: %w", err)
	}
}

// UpdateBilling writes billing columns. Nil values clear the column.
func (r *UserRepository) UpdateBilling(ctx context.Context, user *model.User, fields map[string]interface{}) error {
	if err := r.db.WithContext(ctx).Model(user).Updates(fields).Error; err != nil {
		return fmt.Errorf("update billing: %w", err)
	}
	return nil
}

// ListWithTelegram returns users reachable through the bot.
func (r *UserRepository) ListWithTelegram(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("telegram_chat_id IS NOT NULL").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Delete removes a user together with every task, note and journal they own.
func (r *UserRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, owned := range []interface{}{&model.Task{}, &model.Note{}, &model.Journal{}} {
			if err := tx.Where("user_id = ?", id).Delete(owned).Error; err != nil {
				return fmt.Errorf("delete owned rows: %w", err)
			}
		}
		res := tx.Delete(&model.User{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return notFound(gorm.ErrRecordNotFound, "user")
		}
		return nil
	})
}
