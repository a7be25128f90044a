package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"echo-planner/internal/config"
)

func fakeOpenAI(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{
					{"message": map[string]any{"content": content}},
				},
			})
		}
	}))
}

func newTestEnricher(t *testing.T, baseURL string) *Enricher {
	t.Helper()
	client := NewClient(config.OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "gpt-3.5-turbo",
	})
	enricher, err := NewEnricher(client, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("new enricher: %v", err)
	}
	return enricher
}

func TestAnalyzeParsesModelOutput(t *testing.T) {
	srv := fakeOpenAI(t, `{"title":"Позвонить врачу","priority":8,"deadline":"2025-03-02T10:00:00Z","category":"здоровье"}`, http.StatusOK)
	defer srv.Close()

	enricher := newTestEnricher(t, srv.URL)

	analysis, err := enricher.Analyze(context.Background(), "надо срочно позвонить врачу завтра утром")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis.Title != "Позвонить врачу" {
		t.Errorf("title: %q", analysis.Title)
	}
	if analysis.Priority != 8 {
		t.Errorf("priority: %d", analysis.Priority)
	}
	if analysis.Deadline == nil {
		t.Error("expected a deadline")
	}
	if analysis.Category != "здоровье" {
		t.Errorf("category: %q", analysis.Category)
	}
}

func TestAnalyzeStripsCodeFence(t *testing.T) {
	srv := fakeOpenAI(t, "```json\n{\"title\":\"Отчёт\",\"priority\":6,\"deadline\":null,\"category\":\"работа\"}\n```", http.StatusOK)
	defer srv.Close()

	enricher := newTestEnricher(t, srv.URL)

	analysis, err := enricher.Analyze(context.Background(), "написать отчёт")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis.Title != "Отчёт" || analysis.Priority != 6 {
		t.Errorf("fenced JSON not parsed: %+v", analysis)
	}
	if analysis.Deadline != nil {
		t.Errorf("null deadline parsed as %v", analysis.Deadline)
	}
}

func TestAnalyzeOrDefaultOnServerError(t *testing.T) {
	srv := fakeOpenAI(t, "", http.StatusInternalServerError)
	defer srv.Close()

	enricher := newTestEnricher(t, srv.URL)

	analysis := enricher.AnalyzeOrDefault(context.Background(), "сделать зарядку")
	if analysis.Title != "сделать зарядку" {
		t.Errorf("fallback title: %q", analysis.Title)
	}
	if analysis.Priority != 5 || analysis.Category != "general" || analysis.Deadline != nil {
		t.Errorf("fallback must be the documented default, got %+v", analysis)
	}
}

func TestAnalyzeOrDefaultNilEnricher(t *testing.T) {
	var enricher *Enricher

	analysis := enricher.AnalyzeOrDefault(context.Background(), "текст задачи")
	if analysis.Title != "текст задачи" || analysis.Priority != 5 || analysis.Category != "general" {
		t.Errorf("disabled enricher must return defaults, got %+v", analysis)
	}
}

func TestAnalyzeUsesCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"title":"Кэш","priority":5,"deadline":null,"category":"другое"}`}},
			},
		})
	}))
	defer srv.Close()

	enricher := newTestEnricher(t, srv.URL)
	ctx := context.Background()

	if _, err := enricher.Analyze(ctx, "одинаковый текст"); err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	if _, err := enricher.Analyze(ctx, "одинаковый текст"); err != nil {
		t.Fatalf("second analyze: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected one API call for identical text, got %d", calls)
	}
}

func TestSuggestWithoutTasks(t *testing.T) {
	var enricher *Enricher
	tips := enricher.Suggest(context.Background(), nil)
	if len(tips) == 0 {
		t.Error("empty task list must still produce tips")
	}
}
