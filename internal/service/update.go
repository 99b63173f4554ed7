package service

import (
	"fmt"
	"time"

	"dailyplan/internal/apperr"
)

// TaskUpdate is one kind of change to a task. Exactly one kind is applied
// per request because each kind has its own side effects on ordering and
// chains.
type TaskUpdate interface {
	taskUpdate()
}

// OrderChange moves the task to a new rank within its day.
type OrderChange struct {
	Order int
}

// ContentChange edits title and/or note. On a chain member it splits the
// chain at the task's date.
type ContentChange struct {
	Title *string
	Note  *string
}

// CompletionChange toggles completion. Completing moves the task to the end
// of its day, reopening moves it to the front.
type CompletionChange struct {
	Completed bool
}

// DateChange moves a plain task to the front of another day.
type DateChange struct {
	Date time.Time
}

func (OrderChange) taskUpdate()      {}
func (ContentChange) taskUpdate()    {}
func (CompletionChange) taskUpdate() {}
func (DateChange) taskUpdate()       {}

// TaskPatch is the loosely-typed set of fields a client may send. Nil means
// the field was not supplied.
type TaskPatch struct {
	Order       *int
	Title       *string
	Note        *string
	IsCompleted *bool
	Date        *time.Time
}

// errMixedUpdate is returned when a patch touches more than one update kind.
var errMixedUpdate = fmt.Errorf("%w: Only one type of update is allowed per request (order, content, completion or date)", apperr.ErrConflict)

// Resolve turns a patch into a single TaskUpdate.
func (p TaskPatch) Resolve() (TaskUpdate, error) {
	var kinds []TaskUpdate
	if p.Order != nil {
		kinds = append(kinds, OrderChange{Order: *p.Order})
	}
	if p.Title != nil || p.Note != nil {
		kinds = append(kinds, ContentChange{Title: p.Title, Note: p.Note})
	}
	if p.IsCompleted != nil {
		kinds = append(kinds, CompletionChange{Completed: *p.IsCompleted})
	}
	if p.Date != nil {
		kinds = append(kinds, DateChange{Date: *p.Date})
	}
	switch len(kinds) {
	case 0:
		return nil, fmt.Errorf("%w: no fields to update", apperr.ErrValidation)
	case 1:
		return kinds[0], nil
	default:
		return nil, errMixedUpdate
	}
}

// NoteUpdate is one kind of change to a note.
type NoteUpdate interface {
	noteUpdate()
}

// NoteOrderChange moves the note to a new rank in the user's list.
type NoteOrderChange struct {
	Order int
}

// NoteDetailChange replaces the note text and stamps it with today's date.
type NoteDetailChange struct {
	Detail string
}

func (NoteOrderChange) noteUpdate()  {}
func (NoteDetailChange) noteUpdate() {}

// NotePatch is the client-supplied subset of note fields.
type NotePatch struct {
	Order  *int
	Detail *string
}

// Resolve turns a patch into a single NoteUpdate.
func (p NotePatch) Resolve() (NoteUpdate, error) {
	switch {
	case p.Order != nil && p.Detail != nil:
		return nil, fmt.Errorf("%w: Only one type of update is allowed per request (order or detail)", apperr.ErrConflict)
	case p.Order != nil:
		return NoteOrderChange{Order: *p.Order}, nil
	case p.Detail != nil:
		return NoteDetailChange{Detail: *p.Detail}, nil
	default:
		return nil, fmt.Errorf("%w: no fields to update", apperr.ErrValidation)
	}
}
