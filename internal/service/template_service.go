package service

import (
	"fmt"
	"time"

	"echo-planner/internal/model"
)

// Template is a preset for one-tap task creation.
type Template struct {
	Title         string
	Priority      int
	DeadlineHours int
}

// quickTemplates maps the short labels shown in the mini-app to their
// presets. Lookup is case-sensitive exact match.
var quickTemplates = map[string]Template{
	"Код-ревью":  {Title: "Код-ревью", Priority: 7, DeadlineHours: 1},
	"Митинг":     {Title: "Митинг с командой", Priority: 5, DeadlineHours: 2},
	"Обед":       {Title: "Обед", Priority: 3, DeadlineHours: 1},
	"Спорт":      {Title: "Спорт", Priority: 4, DeadlineHours: 1},
	"Спринт":     {Title: "Спринт-планирование", Priority: 8, DeadlineHours: 4},
	"Доклад":     {Title: "Отправить доклад", Priority: 6, DeadlineHours: 2},
	"Упражнение": {Title: "Упражнение", Priority: 4, DeadlineHours: 1},
}

// ResolveTemplate turns a label into a ready TaskInput. Unknown labels
// degrade to a plain task titled with the label itself, one hour out.
// The deadline is anchored at now, not cached.
func ResolveTemplate(label string, now time.Time) TaskInput {
	tpl, ok := quickTemplates[label]
	if !ok {
		tpl = Template{Title: label, Priority: model.DefaultPriority, DeadlineHours: 1}
	}

	deadline := now.Add(time.Duration(tpl.DeadlineHours) * time.Hour)
	return TaskInput{
		Title:       tpl.Title,
		Description: fmt.Sprintf("Шаблон: %s", label),
		Priority:    tpl.Priority,
		Deadline:    &deadline,
	}
}
