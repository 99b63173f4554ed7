package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"dailyplan/internal/model"
)

// JournalRepository handles storage for journal entries.
type JournalRepository struct {
	db *gorm.DB
}

func NewJournalRepository(db *gorm.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// FindByDate returns the user's journal for day, or nil when none exists.
func (r *JournalRepository) FindByDate(ctx context.Context, userID uint, day time.Time) (*model.Journal, error) {
	var journal model.Journal
	err := r.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, model.Day(day)).First(&journal).Error
	switch {
	case err == nil:
		return &journal, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find journal: %w", err)
	}
}

func (r *JournalRepository) FindByID(ctx context.Context, userID, journalID uint) (*model.Journal, error) {
	var journal model.Journal
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, journalID).First(&journal).Error; err != nil {
		return nil, notFound(err, "journal")
	}
	return &journal, nil
}

func (r *JournalRepository) Create(ctx context.Context, journal *model.Journal) error {
	if err := r.db.WithContext(ctx).Create(journal).Error; err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	return nil
}

func (r *JournalRepository) Save(ctx context.Context, journal *model.Journal) error {
	if err := r.db.WithContext(ctx).Save(journal).Error; err != nil {
		return fmt.Errorf("save journal: %w", err)
	}
	return nil
}

// DeleteEmpty removes every journal whose subject and entry are both blank
// and returns how many were removed.
func (r *JournalRepository) DeleteEmpty(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("subject = ? AND entry = ?", "", "").Delete(&model.Journal{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete empty journals: %w", res.Error)
	}
	return res.RowsAffected, nil
}
