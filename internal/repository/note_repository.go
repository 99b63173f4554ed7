package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"dailyplan/internal/model"
	"dailyplan/internal/ordering"
)

// NoteRepository handles storage for backlog notes.
type NoteRepository struct {
	db *gorm.DB
}

func NewNoteRepository(db *gorm.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// Transaction runs fn against a repository bound to one database transaction
// holding the write lock on userID's notes.
func (r *NoteRepository) Transaction(ctx context.Context, userID uint, fn func(tx *NoteRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, lockNotes, userID); err != nil {
			return err
		}
		return fn(&NoteRepository{db: tx})
	})
}

func (r *NoteRepository) Create(ctx context.Context, note *model.Note) error {
	if err := r.db.WithContext(ctx).Create(note).Error; err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

func (r *NoteRepository) FindByID(ctx context.Context, userID, noteID uint) (*model.Note, error) {
	var note model.Note
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, noteID).First(&note).Error; err != nil {
		return nil, notFound(err, "note")
	}
	return &note, nil
}

// ListByUser returns the user's whole note list ordered by rank.
func (r *NoteRepository) ListByUser(ctx context.Context, userID uint) ([]model.Note, error) {
	var notes []model.Note
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("position ASC, id ASC").Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

func (r *NoteRepository) SetOrders(ctx context.Context, userID uint, changes []ordering.Change) error {
	db := r.db.WithContext(ctx)
	for _, c := range changes {
		if err := db.Model(&model.Note{}).Where("user_id = ? AND id = ?", userID, c.ID).
			Update("position", c.Order).Error; err != nil {
			return fmt.Errorf("reorder note %d: %w", c.ID, err)
		}
	}
	return nil
}

func (r *NoteRepository) Save(ctx context.Context, note *model.Note) error {
	if err := r.db.WithContext(ctx).Save(note).Error; err != nil {
		return fmt.Errorf("save note: %w", err)
	}
	return nil
}

func (r *NoteRepository) Delete(ctx context.Context, userID, noteID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, noteID).
		Delete(&model.Note{}).Error; err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}
