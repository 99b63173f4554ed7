package service

import (
	"context"
	"fmt"
	"time"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
	"dailyplan/internal/repository"
)

// JournalInput carries the fields of a new journal entry.
type JournalInput struct {
	Date    time.Time
	Subject string
	Entry   string
}

// JournalPatch is a partial journal update. Nil fields are left unchanged.
type JournalPatch struct {
	Date    *time.Time
	Subject *string
	Entry   *string
}

// JournalService manages the one-entry-per-day diary.
type JournalService struct {
	journalRepo *repository.JournalRepository
}

func NewJournalService(journalRepo *repository.JournalRepository) *JournalService {
	return &JournalService{journalRepo: journalRepo}
}

// GetOrCreate returns the journal for day, creating an empty one if needed.
func (s *JournalService) GetOrCreate(ctx context.Context, userID uint, day time.Time) (*model.Journal, error) {
	if day.IsZero() {
		return nil, fmt.Errorf("%w: date is required", apperr.ErrValidation)
	}
	journal, err := s.journalRepo.FindByDate(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	if journal != nil {
		return journal, nil
	}
	journal = &model.Journal{UserID: userID, Date: model.Day(day)}
	if err := s.journalRepo.Create(ctx, journal); err != nil {
		return nil, err
	}
	return journal, nil
}

func (s *JournalService) Create(ctx context.Context, userID uint, in JournalInput) (*model.Journal, error) {
	if in.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", apperr.ErrValidation)
	}
	existing, err := s.journalRepo.FindByDate(ctx, userID, in.Date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: Journal already exists for this date", apperr.ErrConflict)
	}
	journal := &model.Journal{UserID: userID, Date: model.Day(in.Date), Subject: in.Subject, Entry: in.Entry}
	if err := s.journalRepo.Create(ctx, journal); err != nil {
		return nil, err
	}
	return journal, nil
}

func (s *JournalService) Update(ctx context.Context, userID, journalID uint, patch JournalPatch) (*model.Journal, error) {
	journal, err := s.journalRepo.FindByID(ctx, userID, journalID)
	if err != nil {
		return nil, err
	}
	if patch.Date != nil && !model.Day(*patch.Date).Equal(model.Day(journal.Date)) {
		other, err := s.journalRepo.FindByDate(ctx, userID, *patch.Date)
		if err != nil {
			return nil, err
		}
		if other != nil {
			return nil, fmt.Errorf("%w: Journal already exists for this date", apperr.ErrConflict)
		}
		journal.Date = model.Day(*patch.Date)
	}
	if patch.Subject != nil {
		journal.Subject = *patch.Subject
	}
	if patch.Entry != nil {
		journal.Entry = *patch.Entry
	}
	if err := s.journalRepo.Save(ctx, journal); err != nil {
		return nil, err
	}
	return journal, nil
}

// Clear blanks subject and entry. The nightly cleanup removes such entries.
func (s *JournalService) Clear(ctx context.Context, userID, journalID uint) (*model.Journal, error) {
	journal, err := s.journalRepo.FindByID(ctx, userID, journalID)
	if err != nil {
		return nil, err
	}
	journal.Subject = ""
	journal.Entry = ""
	if err := s.journalRepo.Save(ctx, journal); err != nil {
		return nil, err
	}
	return journal, nil
}

// CleanupEmpty deletes every journal with blank subject and entry.
func (s *JournalService) CleanupEmpty(ctx context.Context) (int64, error) {
	return s.journalRepo.DeleteEmpty(ctx)
}
