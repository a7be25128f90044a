package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"echo-planner/internal/model"
)

// ReportService builds human-readable summaries for periodic reports.
type ReportService struct {
	taskSvc *TaskService
}

func NewReportService(taskSvc *TaskService) *ReportService {
	return &ReportService{taskSvc: taskSvc}
}

// DailySummary renders today's stats and the open tasks for one user.
func (s *ReportService) DailySummary(ctx context.Context, userID int64, now time.Time) (string, error) {
	stats, err := s.taskSvc.DailyStats(ctx, userID, now)
	if err != nil {
		return "", err
	}

	active, err := s.taskSvc.ListTasks(ctx, userID, model.StatusActive)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString("📊 <b>Ежедневный отчёт</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("02.01.2006")))
	builder.WriteString(fmt.Sprintf("Сегодня создано: %d, выполнено: %d (эффективность %d%%)\n\n", stats.Total, stats.Completed, stats.Efficiency))

	builder.WriteString("🔥 <b>Открытые задачи</b>\n")
	if len(active) == 0 {
		builder.WriteString("— нет открытых задач\n")
	} else {
		for _, task := range active {
			builder.WriteString(formatReportLine(task, now))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

func formatReportLine(task model.Task, now time.Time) string {
	icon := PriorityIcon(task.Priority)
	line := fmt.Sprintf("%s #%d %s", icon, task.ID, html.EscapeString(task.Title))
	if task.Deadline != nil {
		d := task.Deadline.In(now.Location())
		if now.After(d) {
			line += fmt.Sprintf(" · ⏰ %s — <b>просрочено</b>", d.Format("2006-01-02 15:04"))
		} else {
			line += fmt.Sprintf(" · ⏰ %s", d.Format("2006-01-02 15:04"))
		}
	}
	return line + "\n"
}

// PriorityIcon maps urgency to a traffic-light marker. Higher numbers
// are more urgent.
func PriorityIcon(priority int) string {
	switch {
	case priority >= 7:
		return "🔴"
	case priority >= 5:
		return "🟡"
	default:
		return "🟢"
	}
}
