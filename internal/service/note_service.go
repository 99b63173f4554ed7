package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
	"dailyplan/internal/ordering"
	"dailyplan/internal/repository"
)

// DefaultNoteDetail is used when a note is created without text.
const DefaultNoteDetail = "New note"

// NoteService keeps each user's backlog as one flat list. New notes go to the
// tail, unlike tasks which are inserted at the head of their day.
type NoteService struct {
	noteRepo *repository.NoteRepository
	loc      *time.Location
	now      func() time.Time
}

func NewNoteService(noteRepo *repository.NoteRepository, loc *time.Location) *NoteService {
	if loc == nil {
		loc = time.UTC
	}
	return &NoteService{noteRepo: noteRepo, loc: loc, now: time.Now}
}

func (s *NoteService) today() time.Time {
	return model.Day(s.now().In(s.loc))
}

func (s *NoteService) List(ctx context.Context, userID uint) ([]model.Note, error) {
	return s.noteRepo.ListByUser(ctx, userID)
}

func (s *NoteService) Create(ctx context.Context, userID uint, detail string) (note *model.Note, err error) {
	ctx, span := startSpan(ctx, "note.create")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(detail) == "" {
		detail = DefaultNoteDetail
	}
	err = s.noteRepo.Transaction(ctx, userID, func(tx *repository.NoteRepository) error {
		notes, err := tx.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		note = &model.Note{
			UserID: userID,
			Date:   s.today(),
			Detail: detail,
			Order:  ordering.Tail(noteSlots(notes)),
		}
		if err := tx.Create(ctx, note); err != nil {
			return err
		}
		return verifyNotes(ctx, tx, userID)
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (s *NoteService) Update(ctx context.Context, userID, noteID uint, upd NoteUpdate) (note *model.Note, err error) {
	ctx, span := startSpan(ctx, "note.update", attribute.Int64("note.id", int64(noteID)))
	defer func() { endSpan(span, err) }()

	err = s.noteRepo.Transaction(ctx, userID, func(tx *repository.NoteRepository) error {
		current, err := tx.FindByID(ctx, userID, noteID)
		if err != nil {
			return err
		}
		switch u := upd.(type) {
		case NoteOrderChange:
			notes, err := tx.ListByUser(ctx, userID)
			if err != nil {
				return err
			}
			_, changes, err := ordering.Move(noteSlots(notes), current.ID, u.Order)
			if err != nil {
				return err
			}
			if err := tx.SetOrders(ctx, userID, changes); err != nil {
				return err
			}
			if err := verifyNotes(ctx, tx, userID); err != nil {
				return err
			}
		case NoteDetailChange:
			current.Detail = u.Detail
			current.Date = s.today()
			if err := tx.Save(ctx, current); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unsupported update", apperr.ErrValidation)
		}
		note, err = tx.FindByID(ctx, userID, noteID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

// Delete removes a note and closes the gap it leaves.
func (s *NoteService) Delete(ctx context.Context, userID, noteID uint) (err error) {
	ctx, span := startSpan(ctx, "note.delete", attribute.Int64("note.id", int64(noteID)))
	defer func() { endSpan(span, err) }()

	return s.noteRepo.Transaction(ctx, userID, func(tx *repository.NoteRepository) error {
		if _, err := tx.FindByID(ctx, userID, noteID); err != nil {
			return err
		}
		if err := tx.Delete(ctx, userID, noteID); err != nil {
			return err
		}
		notes, err := tx.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := tx.SetOrders(ctx, userID, ordering.Compact(noteSlots(notes))); err != nil {
			return err
		}
		return verifyNotes(ctx, tx, userID)
	})
}

func verifyNotes(ctx context.Context, tx *repository.NoteRepository, userID uint) error {
	notes, err := tx.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := ordering.Verify(noteSlots(notes)); err != nil {
		return fmt.Errorf("notes of user %d: %w", userID, err)
	}
	return nil
}

func noteSlots(notes []model.Note) []ordering.Slot {
	slots := make([]ordering.Slot, len(notes))
	for i, n := range notes {
		slots[i] = ordering.Slot{ID: n.ID, Order: n.Order}
	}
	return slots
}
