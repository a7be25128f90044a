package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"echo-planner/internal/model"
	"echo-planner/internal/repository"
)

func setupTaskService(t *testing.T) *TaskService {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Task{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewTaskService(repository.NewTaskRepository(db))
}

func TestCreateTaskDefaults(t *testing.T) {
	svc := setupTaskService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, 1, TaskInput{Title: "купить хлеб"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if task.ID == 0 {
		t.Error("expected an assigned identifier")
	}
	if task.Priority != 5 {
		t.Errorf("default priority: expected 5, got %d", task.Priority)
	}
	if task.Category != "general" {
		t.Errorf("default category: expected general, got %q", task.Category)
	}
	if task.Status != model.StatusActive {
		t.Errorf("default status: expected active, got %q", task.Status)
	}

	tasks, err := svc.ListTasks(ctx, 1, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "купить хлеб" {
		t.Errorf("expected exactly the created task, got %+v", tasks)
	}
}

func TestCreateTaskRejectsEmptyTitle(t *testing.T) {
	svc := setupTaskService(t)

	for _, title := range []string{"", "   "} {
		if _, err := svc.CreateTask(context.Background(), 1, TaskInput{Title: title}); !errors.Is(err, ErrEmptyTitle) {
			t.Errorf("title %q: expected ErrEmptyTitle, got %v", title, err)
		}
	}
}

func TestCreateTaskKeepsCallerPriority(t *testing.T) {
	svc := setupTaskService(t)

	// Out-of-range values pass through unvalidated.
	task, err := svc.CreateTask(context.Background(), 1, TaskInput{Title: "x", Priority: 42})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Priority != 42 {
		t.Errorf("priority clamped: got %d", task.Priority)
	}
}

func TestListByStatusGroup(t *testing.T) {
	svc := setupTaskService(t)
	ctx := context.Background()

	open, err := svc.CreateTask(ctx, 1, TaskInput{Title: "open"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	done, err := svc.CreateTask(ctx, 1, TaskInput{Title: "done"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ok, err := svc.CompleteTask(ctx, done.ID); err != nil || !ok {
		t.Fatalf("complete: ok=%v err=%v", ok, err)
	}

	groups, err := svc.ListByStatusGroup(ctx, 1)
	if err != nil {
		t.Fatalf("groups: %v", err)
	}
	if len(groups.Active) != 1 || groups.Active[0].ID != open.ID {
		t.Errorf("active group wrong: %+v", groups.Active)
	}
	if len(groups.Completed) != 1 || groups.Completed[0].ID != done.ID {
		t.Errorf("completed group wrong: %+v", groups.Completed)
	}
}

func TestDailyStatsZeroTasks(t *testing.T) {
	svc := setupTaskService(t)

	stats, err := svc.DailyStats(context.Background(), 999, time.Now())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 0 || stats.Completed != 0 || stats.Efficiency != 0 {
		t.Errorf("empty day must be all zeros, got %+v", stats)
	}
}

func TestDailyStatsEfficiency(t *testing.T) {
	svc := setupTaskService(t)
	ctx := context.Background()

	var completed *model.Task
	for i := 0; i < 3; i++ {
		task, err := svc.CreateTask(ctx, 1, TaskInput{Title: fmt.Sprintf("task %d", i)})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if i == 0 {
			completed = task
		}
	}
	if ok, err := svc.CompleteTask(ctx, completed.ID); err != nil || !ok {
		t.Fatalf("complete: ok=%v err=%v", ok, err)
	}

	stats, err := svc.DailyStats(ctx, 1, time.Now())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Completed != 1 {
		t.Fatalf("counts wrong: %+v", stats)
	}
	if stats.Efficiency != 33 {
		t.Errorf("expected efficiency 33, got %d", stats.Efficiency)
	}
}

func TestCompleteThenDeleteMissing(t *testing.T) {
	svc := setupTaskService(t)
	ctx := context.Background()

	if ok, err := svc.CompleteTask(ctx, 4242); err != nil || ok {
		t.Errorf("complete missing: expected false, got ok=%v err=%v", ok, err)
	}
	if ok, err := svc.DeleteTask(ctx, 4242); err != nil || ok {
		t.Errorf("delete missing: expected false, got ok=%v err=%v", ok, err)
	}
}
