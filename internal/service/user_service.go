package service

import (
	"context"
	"fmt"
	"strings"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
	"dailyplan/internal/repository"
)

// UserService maps external identities onto local users.
type UserService struct {
	repo *repository.UserRepository
}

func NewUserService(repo *repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Resolve returns the local user for a verified identity, creating it on
// first sight.
func (s *UserService) Resolve(ctx context.Context, externalID, name, email string) (*model.User, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, fmt.Errorf("%w: identity has no subject", apperr.ErrUnauthorized)
	}
	return s.repo.UpsertIdentity(ctx, externalID, name, strings.ToLower(strings.TrimSpace(email)))
}

// ResolveTelegram returns the user behind a Telegram account.
func (s *UserService) ResolveTelegram(ctx context.Context, telegramID, chatID int64, name string) (*model.User, error) {
	return s.repo.UpsertFromTelegram(ctx, telegramID, chatID, name)
}

func (s *UserService) Get(ctx context.Context, userID uint) (*model.User, error) {
	return s.repo.FindByID(ctx, userID)
}

// Delete removes the user and everything they own.
func (s *UserService) Delete(ctx context.Context, userID uint) error {
	return s.repo.Delete(ctx, userID)
}

// TelegramUsers lists users who receive bot reports.
func (s *UserService) TelegramUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.ListWithTelegram(ctx)
}
