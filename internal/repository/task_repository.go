package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"echo-planner/internal/model"
)

// TaskPatch carries the optional fields of a partial update. Nil means
// "leave as is".
type TaskPatch struct {
	Status   *string
	Title    *string
	Deadline *time.Time
}

// IsEmpty reports whether the patch carries no fields at all.
func (p TaskPatch) IsEmpty() bool {
	return p.Status == nil && p.Title == nil && p.Deadline == nil
}

// Counts aggregates a user's tasks for the stats endpoints.
type Counts struct {
	Total     int64
	Completed int64
}

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// List returns a user's tasks, optionally filtered to one status
// (empty string means all). The compound order decides what the bot
// shows as the top task: most urgent first, then nearest deadline with
// undated tasks last, then newest.
func (r *TaskRepository) List(ctx context.Context, userID int64, status string) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var tasks []model.Task
	if err := q.Order("priority DESC, deadline ASC NULLS LAST, created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateFields applies only the fields present in the patch. An empty
// patch is a no-op that still reports success. A missing row is not an
// error, just a false result.
func (r *TaskRepository) UpdateFields(ctx context.Context, taskID uint, patch TaskPatch) (bool, error) {
	if patch.IsEmpty() {
		return true, nil
	}

	updates := map[string]interface{}{}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Deadline != nil {
		updates["deadline"] = *patch.Deadline
	}

	res := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", taskID).Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("update task: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Complete is shorthand for a status-only patch.
func (r *TaskRepository) Complete(ctx context.Context, taskID uint) (bool, error) {
	status := model.StatusCompleted
	return r.UpdateFields(ctx, taskID, TaskPatch{Status: &status})
}

// Delete removes a task permanently. No tombstone is kept.
func (r *TaskRepository) Delete(ctx context.Context, taskID uint) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&model.Task{}, "id = ?", taskID)
	if res.Error != nil {
		return false, fmt.Errorf("delete task: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CountsForUser returns total/completed counts, optionally scoped to
// tasks created on the given calendar day. Day bounds are computed here
// instead of DATE(...) so the query works on both backends.
func (r *TaskRepository) CountsForUser(ctx context.Context, userID int64, onDate *time.Time) (Counts, error) {
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.Task{}).Where("user_id = ?", userID)
		if onDate != nil {
			dayStart := time.Date(onDate.Year(), onDate.Month(), onDate.Day(), 0, 0, 0, 0, onDate.Location())
			q = q.Where("created_at >= ? AND created_at < ?", dayStart, dayStart.Add(24*time.Hour))
		}
		return q
	}

	var counts Counts
	if err := scoped().Count(&counts.Total).Error; err != nil {
		return Counts{}, fmt.Errorf("count tasks: %w", err)
	}
	if err := scoped().Where("status = ?", model.StatusCompleted).Count(&counts.Completed).Error; err != nil {
		return Counts{}, fmt.Errorf("count completed tasks: %w", err)
	}
	return counts, nil
}
