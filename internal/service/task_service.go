package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"echo-planner/internal/model"
	"echo-planner/internal/repository"
)

// ErrEmptyTitle is returned when a task is created without a title. The
// store itself does not validate, so the check lives here at the
// service boundary.
var ErrEmptyTitle = errors.New("title is required")

// TaskInput represents data required to create a task. Zero values fall
// back to the defaults (priority 5, category "general").
type TaskInput struct {
	Title       string
	Description string
	Priority    int
	Deadline    *time.Time
	Category    string
	AIAnalyzed  bool
}

// StatusGroups partitions a user's tasks for presentation.
type StatusGroups struct {
	Active    []model.Task
	Completed []model.Task
}

// DailyStats summarizes one calendar day of a user's tasks.
type DailyStats struct {
	Date       string `json:"date"`
	Total      int64  `json:"total"`
	Completed  int64  `json:"completed"`
	Efficiency int    `json:"efficiency"`
}

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo *repository.TaskRepository
}

func NewTaskService(taskRepo *repository.TaskRepository) *TaskService {
	return &TaskService{taskRepo: taskRepo}
}

// CreateTask fills defaults, delegates to the store and returns the
// materialized task. Priority is accepted as given: values outside 1–10
// are the caller's business.
func (s *TaskService) CreateTask(ctx context.Context, userID int64, input TaskInput) (*model.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, ErrEmptyTitle
	}

	if input.Priority == 0 {
		input.Priority = model.DefaultPriority
	}
	if input.Category == "" {
		input.Category = model.DefaultCategory
	}

	task := model.Task{
		UserID:      userID,
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
		Status:      model.StatusActive,
		Deadline:    input.Deadline,
		Category:    input.Category,
		AIAnalyzed:  input.AIAnalyzed,
	}

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}

	return &task, nil
}

// ListTasks returns the user's tasks in storage order, optionally
// filtered to one status.
func (s *TaskService) ListTasks(ctx context.Context, userID int64, status string) ([]model.Task, error) {
	return s.taskRepo.List(ctx, userID, status)
}

// ListByStatusGroup partitions one listing client-side; it does not
// re-query per group.
func (s *TaskService) ListByStatusGroup(ctx context.Context, userID int64) (StatusGroups, error) {
	tasks, err := s.taskRepo.List(ctx, userID, "")
	if err != nil {
		return StatusGroups{}, err
	}

	var groups StatusGroups
	for _, task := range tasks {
		if task.Status == model.StatusCompleted {
			groups.Completed = append(groups.Completed, task)
		} else {
			groups.Active = append(groups.Active, task)
		}
	}
	return groups, nil
}

func (s *TaskService) GetTask(ctx context.Context, taskID uint) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, taskID)
}

// UpdateTask applies a partial update. A false result means the task
// does not exist.
func (s *TaskService) UpdateTask(ctx context.Context, taskID uint, patch repository.TaskPatch) (bool, error) {
	return s.taskRepo.UpdateFields(ctx, taskID, patch)
}

// CompleteTask marks a task as done. Completing a missing task is not an
// error, only a false result.
func (s *TaskService) CompleteTask(ctx context.Context, taskID uint) (bool, error) {
	return s.taskRepo.Complete(ctx, taskID)
}

// DeleteTask removes a task completely.
func (s *TaskService) DeleteTask(ctx context.Context, taskID uint) (bool, error) {
	return s.taskRepo.Delete(ctx, taskID)
}

// Stats returns all-time counts for a user.
func (s *TaskService) Stats(ctx context.Context, userID int64) (repository.Counts, error) {
	return s.taskRepo.CountsForUser(ctx, userID, nil)
}

// DailyStats computes today's efficiency. A day with no tasks is 0%,
// not a division error.
func (s *TaskService) DailyStats(ctx context.Context, userID int64, now time.Time) (DailyStats, error) {
	counts, err := s.taskRepo.CountsForUser(ctx, userID, &now)
	if err != nil {
		return DailyStats{}, err
	}

	stats := DailyStats{
		Date:      now.Format("2006-01-02"),
		Total:     counts.Total,
		Completed: counts.Completed,
	}
	if counts.Total > 0 {
		stats.Efficiency = int(math.Round(float64(counts.Completed) / float64(counts.Total) * 100))
	}
	return stats, nil
}
