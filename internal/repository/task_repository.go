package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"dailyplan/internal/model"
	"dailyplan/internal/ordering"
)

// TaskRepository handles storage for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Transaction runs fn against a repository bound to a single database
// transaction holding the write lock on userID's tasks. Concurrent
// transactions for the same user run one after another. Any error returned
// by fn rolls every write back.
func (r *TaskRepository) Transaction(ctx context.Context, userID uint, fn func(tx *TaskRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, lockTasks, userID); err != nil {
			return err
		}
		return fn(&TaskRepository{db: tx})
	})
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		return nil, notFound(err, "task")
	}
	return &task, nil
}

// List returns the user's tasks ordered by day and rank. A nil bound leaves
// that side of the range open.
func (r *TaskRepository) List(ctx context.Context, userID uint, start, end *time.Time) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if start != nil {
		q = q.Where("date >= ?", model.Day(*start))
	}
	if end != nil {
		q = q.Where("date <= ?", model.Day(*end))
	}
	var tasks []model.Task
	if err := q.Order("date ASC, position ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ListDay returns one day-group ordered by rank.
func (r *TaskRepository) ListDay(ctx context.Context, userID uint, day time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, model.Day(day)).
		Order("position ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list day: %w", err)
	}
	return tasks, nil
}

// ListChainFrom returns the members of chain token dated after day, or on
// and after day when inclusive is set, ordered by date.
func (r *TaskRepository) ListChainFrom(ctx context.Context, userID uint, token string, day time.Time, inclusive bool) ([]model.Task, error) {
	cmp := "date > ?"
	if inclusive {
		cmp = "date >= ?"
	}
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND repeatable_id = ?", userID, token).
		Where(cmp, model.Day(day)).
		Order("date ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list chain: %w", err)
	}
	return tasks, nil
}

// ListChain returns every member of chain token ordered by date.
func (r *TaskRepository) ListChain(ctx context.Context, userID uint, token string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND repeatable_id = ?", userID, token).
		Order("date ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list chain: %w", err)
	}
	return tasks, nil
}

// SetOrders writes new ranks for the given tasks of one user.
func (r *TaskRepository) SetOrders(ctx context.Context, userID uint, changes []ordering.Change) error {
	db := r.db.WithContext(ctx)
	for _, c := range changes {
		if err := db.Model(&model.Task{}).Where("user_id = ? AND id = ?", userID, c.ID).
			Update("position", c.Order).Error; err != nil {
			return fmt.Errorf("reorder task %d: %w", c.ID, err)
		}
	}
	return nil
}

// UpdateFields applies the same column values to every listed task.
func (r *TaskRepository) UpdateFields(ctx context.Context, userID uint, ids []uint, fields map[string]interface{}) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&model.Task{}).Where("user_id = ? AND id IN ?", userID, ids).
		Updates(fields).Error; err != nil {
		return fmt.Errorf("update tasks: %w", err)
	}
	return nil
}

// Delete removes the listed tasks of one user.
func (r *TaskRepository) Delete(ctx context.Context, userID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).
		Delete(&model.Task{}).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// Reload refreshes task from storage.
func (r *TaskRepository) Reload(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).First(task, task.ID).Error; err != nil {
		return notFound(err, "task")
	}
	return nil
}
