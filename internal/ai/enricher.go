package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"echo-planner/internal/model"
)

const analyzeSystemPrompt = "Ты - AI ассистент для анализа задач. Отвечай только в формате JSON."

const analyzePromptTemplate = `Анализируй задачу и верни JSON:
{
    "title": "упрощенный заголовок",
    "priority": число от 1 до 10 (где 10 - самый срочный),
    "deadline": "срок в ISO формате или null",
    "category": "категория (работа, личное, здоровье, обучение, другое)"
}

Задача: %s

Верни ТОЛЬКО JSON без дополнительного текста.`

const cacheSize = 256

// Analysis is the structured result of enriching raw task text.
type Analysis struct {
	Title    string
	Priority int
	Deadline *time.Time
	Category string
}

// DefaultAnalysis is the degraded result used whenever enrichment is
// disabled or failing: the raw text becomes the title as is.
func DefaultAnalysis(text string) Analysis {
	return Analysis{
		Title:    text,
		Priority: model.DefaultPriority,
		Category: model.DefaultCategory,
	}
}

// Enricher refines raw task text into structured fields via the language
// model. Identical texts within one process hit the memo cache instead
// of the API.
type Enricher struct {
	client *Client
	cache  *lru.Cache[string, Analysis]
	logger *zap.SugaredLogger
}

func NewEnricher(client *Client, logger *zap.SugaredLogger) (*Enricher, error) {
	cache, err := lru.New[string, Analysis](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create analysis cache: %w", err)
	}
	return &Enricher{client: client, cache: cache, logger: logger}, nil
}

// Analyze asks the model for title, priority, deadline and category.
func (e *Enricher) Analyze(ctx context.Context, text string) (Analysis, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	raw, err := e.client.ChatCompletion(ctx, analyzeSystemPrompt, fmt.Sprintf(analyzePromptTemplate, text), 0.3, 200)
	if err != nil {
		return Analysis{}, err
	}

	analysis, err := parseAnalysis(raw, text)
	if err != nil {
		return Analysis{}, err
	}

	e.cache.Add(text, analysis)
	return analysis, nil
}

// AnalyzeOrDefault degrades to DefaultAnalysis on any failure or when
// the enricher is not configured. Enrichment errors never reach the
// user.
func (e *Enricher) AnalyzeOrDefault(ctx context.Context, text string) Analysis {
	if e == nil {
		return DefaultAnalysis(text)
	}
	analysis, err := e.Analyze(ctx, text)
	if err != nil {
		e.logger.Warnw("task analysis failed, using defaults", "error", err)
		return DefaultAnalysis(text)
	}
	return analysis
}

func parseAnalysis(raw, text string) (Analysis, error) {
	var parsed struct {
		Title    string `json:"title"`
		Priority int    `json:"priority"`
		Deadline string `json:"deadline"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return Analysis{}, fmt.Errorf("parse analysis %q: %w", raw, err)
	}

	analysis := Analysis{
		Title:    parsed.Title,
		Priority: parsed.Priority,
		Category: parsed.Category,
	}
	if analysis.Title == "" {
		analysis.Title = text
	}
	if analysis.Priority == 0 {
		analysis.Priority = model.DefaultPriority
	}
	if analysis.Category == "" {
		analysis.Category = model.DefaultCategory
	}
	if parsed.Deadline != "" && parsed.Deadline != "null" {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if deadline, err := time.Parse(layout, parsed.Deadline); err == nil {
				analysis.Deadline = &deadline
				break
			}
		}
	}
	return analysis, nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models add
// despite the prompt.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
