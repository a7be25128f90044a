package ai

import (
	"context"
	"fmt"
	"strings"

	"echo-planner/internal/model"
)

const suggestSystemPrompt = "Ты - AI коуч по продуктивности."

// Suggest builds up to five short productivity tips from the user's
// active tasks. Without a configured enricher, or when the model fails,
// it falls back to static advice so the user always gets a reply.
func (e *Enricher) Suggest(ctx context.Context, active []model.Task) []string {
	if len(active) == 0 {
		return []string{
			"📝 Создай первую задачу",
			"🎯 Начни с простых целей",
			"📅 Установи дедлайн",
		}
	}

	if e == nil {
		return []string{"Анализ отключен", "Добавь OPENAI_API_KEY", "Чтобы получить рекомендации"}
	}

	priorities := make([]string, 0, len(active))
	deadlines := make([]string, 0, len(active))
	for _, task := range active {
		priorities = append(priorities, fmt.Sprintf("%d", task.Priority))
		if task.Deadline != nil {
			deadlines = append(deadlines, task.Deadline.Format("2006-01-02"))
		}
	}

	prompt := fmt.Sprintf(`Дай 3 коротких совета для продуктивности:
- У пользователя %d активных задач
- Приоритеты задач: [%s]
- Сроки: [%s]

Советы:
1. Совет 1
2. Совет 2
3. Совет 3`, len(active), strings.Join(priorities, ", "), strings.Join(deadlines, ", "))

	raw, err := e.client.ChatCompletion(ctx, suggestSystemPrompt, prompt, 0.7, 300)
	if err != nil {
		e.logger.Warnw("suggestions failed", "error", err)
		return []string{"AI недоступен", "Попробуй позже"}
	}

	var tips []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			tips = append(tips, line)
		}
	}
	if len(tips) > 5 {
		tips = tips[:5]
	}
	return tips
}
