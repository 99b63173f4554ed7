package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
	"dailyplan/internal/ordering"
	"dailyplan/internal/repository"
)

// MaxRepeatDays bounds how many rows one repeating task may materialize.
const MaxRepeatDays = 366

// TaskInput represents data required to create a task.
type TaskInput struct {
	Date       time.Time
	Title      string
	Note       string
	Completed  bool
	RepeatDays int
}

// DaySummary counts the tasks of one day and how many of them are done.
type DaySummary struct {
	Date      time.Time
	Total     int
	Completed int
}

// TaskService wraps task-related business logic: day ordering and repeat
// chains. Every mutation runs in one transaction and re-checks the ranks of
// each day it touched before committing.
type TaskService struct {
	taskRepo *repository.TaskRepository
	newToken func() string
}

func NewTaskService(taskRepo *repository.TaskRepository) *TaskService {
	return &TaskService{taskRepo: taskRepo, newToken: uuid.NewString}
}

// List returns the user's tasks, optionally bounded by date.
func (s *TaskService) List(ctx context.Context, userID uint, start, end *time.Time) ([]model.Task, error) {
	if start != nil && end != nil && model.Day(*end).Before(model.Day(*start)) {
		return nil, fmt.Errorf("%w: end date is before start date", apperr.ErrValidation)
	}
	return s.taskRepo.List(ctx, userID, start, end)
}

// ListDay returns one day's tasks in rank order.
func (s *TaskService) ListDay(ctx context.Context, userID uint, day time.Time) ([]model.Task, error) {
	return s.taskRepo.ListDay(ctx, userID, day)
}

func (s *TaskService) Get(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, userID, taskID)
}

// Create inserts a task at the head of its day. With RepeatDays above one it
// materializes a chain of that many consecutive days sharing a fresh token
// and returns the first member.
func (s *TaskService) Create(ctx context.Context, userID uint, in TaskInput) (first *model.Task, err error) {
	ctx, span := startSpan(ctx, "task.create", attribute.Int("task.repeat_days", in.RepeatDays))
	defer func() { endSpan(span, err) }()

	if in.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", apperr.ErrValidation)
	}
	if in.RepeatDays > MaxRepeatDays {
		return nil, fmt.Errorf("%w: repeatable_days must be at most %d", apperr.ErrValidation, MaxRepeatDays)
	}

	days := 1
	var token *string
	if in.RepeatDays > 1 {
		days = in.RepeatDays
		t := s.newToken()
		token = &t
	}
	start := model.Day(in.Date)

	err = s.taskRepo.Transaction(ctx, userID, func(tx *repository.TaskRepository) error {
		for i := 0; i < days; i++ {
			date := start.AddDate(0, 0, i)
			group, err := tx.ListDay(ctx, userID, date)
			if err != nil {
				return err
			}
			if err := tx.SetOrders(ctx, userID, ordering.InsertHead(taskSlots(group))); err != nil {
				return err
			}
			task := &model.Task{
				UserID:       userID,
				Date:         date,
				Title:        in.Title,
				Note:         in.Note,
				IsCompleted:  in.Completed,
				Order:        1,
				RepeatableID: token,
			}
			if token != nil {
				remaining := days - i
				task.RepeatableDays = &remaining
			}
			if err := tx.Create(ctx, task); err != nil {
				return err
			}
			if err := verifyDay(ctx, tx, userID, date); err != nil {
				return err
			}
			if i == 0 {
				first = task
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return first, nil
}

// Update applies exactly one kind of change to a task and returns it as
// stored afterwards.
func (s *TaskService) Update(ctx context.Context, userID, taskID uint, upd TaskUpdate) (task *model.Task, err error) {
	ctx, span := startSpan(ctx, "task.update",
		attribute.Int64("task.id", int64(taskID)),
		attribute.String("task.update_kind", updateKind(upd)),
	)
	defer func() { endSpan(span, err) }()

	err = s.taskRepo.Transaction(ctx, userID, func(tx *repository.TaskRepository) error {
		current, err := tx.FindByID(ctx, userID, taskID)
		if err != nil {
			return err
		}
		switch u := upd.(type) {
		case OrderChange:
			err = reorderTask(ctx, tx, current, u.Order)
		case ContentChange:
			err = s.editContent(ctx, tx, current, u)
		case CompletionChange:
			err = setCompletion(ctx, tx, current, u.Completed)
		case DateChange:
			err = moveToDate(ctx, tx, current, u.Date)
		default:
			err = fmt.Errorf("%w: unsupported update", apperr.ErrValidation)
		}
		if err != nil {
			return err
		}
		if err := tx.Reload(ctx, current); err != nil {
			return err
		}
		task = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Delete removes a task. Deleting a chain member also removes every later
// member of its chain; a chain left with a single member becomes a plain
// task. Each affected day is compacted once.
func (s *TaskService) Delete(ctx context.Context, userID, taskID uint) (err error) {
	ctx, span := startSpan(ctx, "task.delete", attribute.Int64("task.id", int64(taskID)))
	defer func() { endSpan(span, err) }()

	return s.taskRepo.Transaction(ctx, userID, func(tx *repository.TaskRepository) error {
		task, err := tx.FindByID(ctx, userID, taskID)
		if err != nil {
			return err
		}
		doomed := []model.Task{*task}
		if task.IsRepeating() {
			doomed, err = tx.ListChainFrom(ctx, userID, *task.RepeatableID, task.Date, true)
			if err != nil {
				return err
			}
		}
		span.SetAttributes(attribute.Int("task.deleted", len(doomed)))

		ids := make([]uint, 0, len(doomed))
		days := make(map[string]time.Time)
		for _, t := range doomed {
			ids = append(ids, t.ID)
			d := model.Day(t.Date)
			days[d.Format(model.DateLayout)] = d
		}
		if err := tx.Delete(ctx, userID, ids); err != nil {
			return err
		}

		if task.IsRepeating() {
			rest, err := tx.ListChain(ctx, userID, *task.RepeatableID)
			if err != nil {
				return err
			}
			if len(rest) == 1 {
				if err := tx.UpdateFields(ctx, userID, []uint{rest[0].ID}, map[string]interface{}{
					"repeatable_id":   nil,
					"repeatable_days": nil,
				}); err != nil {
					return err
				}
			}
		}

		keys := make([]string, 0, len(days))
		for k := range days {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := compactDay(ctx, tx, userID, days[k]); err != nil {
				return err
			}
		}
		return nil
	})
}

// CompletionSummary counts total and completed tasks per day in the range.
// Days without tasks are omitted.
func (s *TaskService) CompletionSummary(ctx context.Context, userID uint, start, end *time.Time) ([]DaySummary, error) {
	tasks, err := s.List(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	summaries := make([]DaySummary, 0)
	for _, t := range tasks {
		d := model.Day(t.Date)
		if n := len(summaries); n == 0 || !summaries[n-1].Date.Equal(d) {
			summaries = append(summaries, DaySummary{Date: d})
		}
		last := &summaries[len(summaries)-1]
		last.Total++
		if t.IsCompleted {
			last.Completed++
		}
	}
	return summaries, nil
}

func reorderTask(ctx context.Context, tx *repository.TaskRepository, task *model.Task, requested int) error {
	group, err := tx.ListDay(ctx, task.UserID, task.Date)
	if err != nil {
		return err
	}
	_, changes, err := ordering.Move(taskSlots(group), task.ID, requested)
	if err != nil {
		return err
	}
	if err := tx.SetOrders(ctx, task.UserID, changes); err != nil {
		return err
	}
	return verifyDay(ctx, tx, task.UserID, task.Date)
}

// editContent writes title and note. On a chain member the member and all
// later members move to a new token, detaching them from earlier days.
func (s *TaskService) editContent(ctx context.Context, tx *repository.TaskRepository, task *model.Task, c ContentChange) error {
	fields := make(map[string]interface{})
	if c.Title != nil {
		fields["title"] = *c.Title
	}
	if c.Note != nil {
		fields["note"] = *c.Note
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: no content to update", apperr.ErrValidation)
	}

	ids := []uint{task.ID}
	if task.IsRepeating() {
		future, err := tx.ListChainFrom(ctx, task.UserID, *task.RepeatableID, task.Date, false)
		if err != nil {
			return err
		}
		for _, f := range future {
			ids = append(ids, f.ID)
		}
		fields["repeatable_id"] = s.newToken()
		fields["repeatable_days"] = len(ids)
	}
	return tx.UpdateFields(ctx, task.UserID, ids, fields)
}

func setCompletion(ctx context.Context, tx *repository.TaskRepository, task *model.Task, completed bool) error {
	if task.IsCompleted == completed {
		return nil
	}
	if err := tx.UpdateFields(ctx, task.UserID, []uint{task.ID}, map[string]interface{}{"is_completed": completed}); err != nil {
		return err
	}
	group, err := tx.ListDay(ctx, task.UserID, task.Date)
	if err != nil {
		return err
	}
	var changes []ordering.Change
	if completed {
		_, changes, err = ordering.MoveLast(taskSlots(group), task.ID)
	} else {
		_, changes, err = ordering.MoveFirst(taskSlots(group), task.ID)
	}
	if err != nil {
		return err
	}
	if err := tx.SetOrders(ctx, task.UserID, changes); err != nil {
		return err
	}
	return verifyDay(ctx, tx, task.UserID, task.Date)
}

// moveToDate puts a plain task at the head of another day and closes the gap
// it leaves behind.
func moveToDate(ctx context.Context, tx *repository.TaskRepository, task *model.Task, target time.Time) error {
	if target.IsZero() {
		return fmt.Errorf("%w: date is required", apperr.ErrValidation)
	}
	source := model.Day(task.Date)
	target = model.Day(target)
	if source.Equal(target) {
		return nil
	}
	if task.IsRepeating() {
		return fmt.Errorf("%w: a repeating task cannot change its date", apperr.ErrValidation)
	}

	from, err := tx.ListDay(ctx, task.UserID, source)
	if err != nil {
		return err
	}
	survivors := make([]ordering.Slot, 0, len(from))
	for _, t := range from {
		if t.ID != task.ID {
			survivors = append(survivors, ordering.Slot{ID: t.ID, Order: t.Order})
		}
	}
	if err := tx.SetOrders(ctx, task.UserID, ordering.Compact(survivors)); err != nil {
		return err
	}

	to, err := tx.ListDay(ctx, task.UserID, target)
	if err != nil {
		return err
	}
	if err := tx.SetOrders(ctx, task.UserID, ordering.InsertHead(taskSlots(to))); err != nil {
		return err
	}
	if err := tx.UpdateFields(ctx, task.UserID, []uint{task.ID}, map[string]interface{}{
		"date":     target,
		"position": 1,
	}); err != nil {
		return err
	}

	if err := verifyDay(ctx, tx, task.UserID, source); err != nil {
		return err
	}
	return verifyDay(ctx, tx, task.UserID, target)
}

func compactDay(ctx context.Context, tx *repository.TaskRepository, userID uint, day time.Time) error {
	group, err := tx.ListDay(ctx, userID, day)
	if err != nil {
		return err
	}
	if err := tx.SetOrders(ctx, userID, ordering.Compact(taskSlots(group))); err != nil {
		return err
	}
	return verifyDay(ctx, tx, userID, day)
}

func verifyDay(ctx context.Context, tx *repository.TaskRepository, userID uint, day time.Time) error {
	group, err := tx.ListDay(ctx, userID, day)
	if err != nil {
		return err
	}
	if err := ordering.Verify(taskSlots(group)); err != nil {
		return fmt.Errorf("day %s: %w", model.Day(day).Format(model.DateLayout), err)
	}
	return nil
}

func taskSlots(tasks []model.Task) []ordering.Slot {
	slots := make([]ordering.Slot, len(tasks))
	for i, t := range tasks {
		slots[i] = ordering.Slot{ID: t.ID, Order: t.Order}
	}
	return slots
}

func updateKind(upd TaskUpdate) string {
	switch upd.(type) {
	case OrderChange:
		return "order"
	case ContentChange:
		return "content"
	case CompletionChange:
		return "completion"
	case DateChange:
		return "date"
	default:
		return "unknown"
	}
}
