package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"echo-planner/internal/model"
	"echo-planner/internal/repository"
	"echo-planner/internal/service"
)

func setupServer(t *testing.T) *HTTPServer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Task{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	srv, err := New(Config{
		Logger:   zap.NewNop().Sugar(),
		Addr:     ":0",
		TaskSvc:  service.NewTaskService(repository.NewTaskRepository(db)),
		UserRepo: repository.NewUserRepository(db),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func doJSON(t *testing.T, srv *HTTPServer, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	var parsed map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("unmarshal %s %s response %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w, parsed
}

func TestHealth(t *testing.T) {
	srv := setupServer(t)

	w, resp := doJSON(t, srv, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field: %v", resp["status"])
	}
	if resp["timestamp"] == nil {
		t.Error("missing timestamp")
	}
}

func TestCreateAndListTasks(t *testing.T) {
	srv := setupServer(t)

	w, created := doJSON(t, srv, http.MethodPost, "/tasks/100", `{"title":"Сделать демо","priority":7}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status %d: %s", w.Code, w.Body.String())
	}
	if created["title"] != "Сделать демо" {
		t.Errorf("title: %v", created["title"])
	}
	if created["status"] != "active" {
		t.Errorf("status: %v", created["status"])
	}
	if created["category"] != "general" {
		t.Errorf("category: %v", created["category"])
	}

	w, listed := doJSON(t, srv, http.MethodGet, "/tasks/100", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status %d", w.Code)
	}
	if listed["count"].(float64) != 1 {
		t.Errorf("count: %v", listed["count"])
	}

	// Same contract through the query-parameter form.
	w, listed = doJSON(t, srv, http.MethodGet, "/tasks?user_id=100", "")
	if w.Code != http.StatusOK || listed["count"].(float64) != 1 {
		t.Errorf("query list: status %d count %v", w.Code, listed["count"])
	}
}

func TestCreateTaskEmptyTitle(t *testing.T) {
	srv := setupServer(t)

	w, _ := doJSON(t, srv, http.MethodPost, "/tasks/100", `{"title":""}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty title must be rejected with 400, got %d", w.Code)
	}
}

func TestUpdateCompleteDeleteLifecycle(t *testing.T) {
	srv := setupServer(t)

	_, created := doJSON(t, srv, http.MethodPost, "/tasks/7", `{"title":"жизненный цикл"}`)
	id := int(created["id"].(float64))

	w, resp := doJSON(t, srv, http.MethodPut, fmt.Sprintf("/tasks/%d", id), `{"title":"переименовано"}`)
	if w.Code != http.StatusOK || resp["status"] != "updated" {
		t.Fatalf("update: status %d resp %v", w.Code, resp)
	}

	_, listed := doJSON(t, srv, http.MethodGet, "/tasks/7", "")
	tasks := listed["tasks"].([]any)
	if got := tasks[0].(map[string]any)["title"]; got != "переименовано" {
		t.Errorf("renamed title not visible: %v", got)
	}

	w, resp = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/tasks/%d/complete", id), "")
	if w.Code != http.StatusOK || resp["status"] != "completed" {
		t.Fatalf("complete: status %d resp %v", w.Code, resp)
	}

	// Completed tasks leave the active listing.
	_, listed = doJSON(t, srv, http.MethodGet, "/tasks/7", "")
	if listed["count"].(float64) != 0 {
		t.Errorf("completed task still active: %v", listed)
	}

	w, resp = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/tasks/%d", id), "")
	if resp["status"] != "deleted" {
		t.Fatalf("delete: %v", resp)
	}

	_, resp = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/tasks/%d", id), "")
	if resp["status"] != "not_found" {
		t.Errorf("second delete must be not_found, got %v", resp)
	}
}

func TestCompleteMissingTask(t *testing.T) {
	srv := setupServer(t)

	w, resp := doJSON(t, srv, http.MethodPost, "/tasks/99999/complete", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if resp["status"] != "not_found" {
		t.Errorf("expected not_found, got %v", resp["status"])
	}
}

func TestQuickTaskKnownTemplate(t *testing.T) {
	srv := setupServer(t)

	w, resp := doJSON(t, srv, http.MethodPost, "/tasks/5/quick", `{"template":"Код-ревью"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	task := resp["task"].(map[string]any)
	if task["title"] != "Код-ревью" {
		t.Errorf("title: %v", task["title"])
	}
	if task["priority"].(float64) != 7 {
		t.Errorf("priority: %v", task["priority"])
	}
	if task["deadline"] == nil {
		t.Error("template task must carry a deadline")
	}
}

func TestQuickTaskUnknownTemplate(t *testing.T) {
	srv := setupServer(t)

	w, resp := doJSON(t, srv, http.MethodPost, "/tasks/5/quick", `{"template":"Yoga"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	task := resp["task"].(map[string]any)
	if task["title"] != "Yoga" {
		t.Errorf("unknown template must keep the label as title, got %v", task["title"])
	}
	if task["priority"].(float64) != 5 {
		t.Errorf("priority: %v", task["priority"])
	}
}

func TestStatsEmptyUser(t *testing.T) {
	srv := setupServer(t)

	w, resp := doJSON(t, srv, http.MethodGet, "/stats/321", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if resp["total"].(float64) != 0 || resp["completed"].(float64) != 0 || resp["efficiency"].(float64) != 0 {
		t.Errorf("empty user stats must be zeros, got %v", resp)
	}
}

func TestStatsEfficiency(t *testing.T) {
	srv := setupServer(t)

	_, created := doJSON(t, srv, http.MethodPost, "/tasks/8", `{"title":"один"}`)
	doJSON(t, srv, http.MethodPost, "/tasks/8", `{"title":"два"}`)
	id := int(created["id"].(float64))
	doJSON(t, srv, http.MethodPost, fmt.Sprintf("/tasks/%d/complete", id), "")

	_, resp := doJSON(t, srv, http.MethodGet, "/stats/8", "")
	if resp["total"].(float64) != 2 || resp["completed"].(float64) != 1 {
		t.Fatalf("counts: %v", resp)
	}
	if resp["efficiency"].(float64) != 50 {
		t.Errorf("efficiency: %v", resp["efficiency"])
	}
}

func TestGetUserNotFound(t *testing.T) {
	srv := setupServer(t)

	w, _ := doJSON(t, srv, http.MethodGet, "/users/404404", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status %d", w.Code)
	}
}
