package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"echo-planner/internal/model"
	"echo-planner/internal/repository"
	"echo-planner/internal/service"
)

type taskResponse struct {
	ID          uint       `json:"id"`
	UserID      int64      `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    int        `json:"priority"`
	Status      string     `json:"status"`
	Deadline    *time.Time `json:"deadline"`
	Category    string     `json:"category"`
	AIAnalyzed  bool       `json:"ai_analyzed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toTaskResponse(task model.Task) taskResponse {
	return taskResponse{
		ID:          task.ID,
		UserID:      task.UserID,
		Title:       task.Title,
		Description: task.Description,
		Priority:    task.Priority,
		Status:      task.Status,
		Deadline:    task.Deadline,
		Category:    task.Category,
		AIAnalyzed:  task.AIAnalyzed,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

type createTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"`
	Deadline    *time.Time `json:"deadline"`
	Category    string     `json:"category"`
}

type updateTaskRequest struct {
	Status   *string    `json:"status"`
	Title    *string    `json:"title"`
	Deadline *time.Time `json:"deadline"`
}

type quickTaskRequest struct {
	Template string `json:"template"`
}

func (srv *HTTPServer) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "running", "service": "Echo API", "version": "1.0.0"})
}

func (srv *HTTPServer) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().Format(time.RFC3339)})
}

// listTasksQuery serves GET /tasks?user_id= for mini-app clients that
// cannot use path parameters.
func (srv *HTTPServer) listTasksQuery(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id query parameter is required"})
		return
	}
	srv.renderActiveTasks(c, userID)
}

func (srv *HTTPServer) listTasks(c *gin.Context) {
	userID, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	srv.renderActiveTasks(c, userID)
}

func (srv *HTTPServer) renderActiveTasks(c *gin.Context, userID int64) {
	tasks, err := srv.taskSvc.ListTasks(c.Request.Context(), userID, model.StatusActive)
	if err != nil {
		srv.storeError(c, err)
		return
	}

	out := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, toTaskResponse(task))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out, "count": len(out)})
}

func (srv *HTTPServer) createTask(c *gin.Context) {
	userID, ok := paramInt64(c, "id")
	if !ok {
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	input := service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Deadline:    req.Deadline,
		Category:    req.Category,
	}

	// With enrichment configured the raw title goes through the model
	// first, same as the bot path.
	if srv.enricher != nil && req.Title != "" {
		analysis := srv.enricher.AnalyzeOrDefault(c.Request.Context(), req.Title)
		input.Title = analysis.Title
		input.Priority = analysis.Priority
		input.Category = analysis.Category
		if input.Deadline == nil {
			input.Deadline = analysis.Deadline
		}
		input.AIAnalyzed = true
	}

	task, err := srv.taskSvc.CreateTask(c.Request.Context(), userID, input)
	if err != nil {
		if errors.Is(err, service.ErrEmptyTitle) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
			return
		}
		srv.storeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toTaskResponse(*task))
}

func (srv *HTTPServer) quickTask(c *gin.Context) {
	userID, ok := paramInt64(c, "id")
	if !ok {
		return
	}

	var req quickTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Template == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "template is required"})
		return
	}

	input := service.ResolveTemplate(req.Template, time.Now())
	task, err := srv.taskSvc.CreateTask(c.Request.Context(), userID, input)
	if err != nil {
		srv.storeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": task.ID, "template": req.Template, "task": toTaskResponse(*task)})
}

func (srv *HTTPServer) updateTask(c *gin.Context) {
	taskID, ok := paramUint(c, "id")
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	updated, err := srv.taskSvc.UpdateTask(c.Request.Context(), taskID, repository.TaskPatch{
		Status:   req.Status,
		Title:    req.Title,
		Deadline: req.Deadline,
	})
	if err != nil {
		srv.storeError(c, err)
		return
	}
	if !updated {
		c.JSON(http.StatusOK, gin.H{"status": "not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (srv *HTTPServer) completeTask(c *gin.Context) {
	taskID, ok := paramUint(c, "id")
	if !ok {
		return
	}

	completed, err := srv.taskSvc.CompleteTask(c.Request.Context(), taskID)
	if err != nil {
		srv.storeError(c, err)
		return
	}
	if !completed {
		c.JSON(http.StatusOK, gin.H{"status": "not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

func (srv *HTTPServer) deleteTask(c *gin.Context) {
	taskID, ok := paramUint(c, "id")
	if !ok {
		return
	}

	deleted, err := srv.taskSvc.DeleteTask(c.Request.Context(), taskID)
	if err != nil {
		srv.storeError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusOK, gin.H{"status": "not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (srv *HTTPServer) getUser(c *gin.Context) {
	userID, ok := paramInt64(c, "id")
	if !ok {
		return
	}

	user, err := srv.userRepo.FindByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":    user.ID,
		"username":   user.Username,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
	})
}

func (srv *HTTPServer) stats(c *gin.Context) {
	userID, ok := paramInt64(c, "id")
	if !ok {
		return
	}

	stats, err := srv.taskSvc.DailyStats(c.Request.Context(), userID, time.Now())
	if err != nil {
		srv.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":    userID,
		"date":       stats.Date,
		"total":      stats.Total,
		"completed":  stats.Completed,
		"efficiency": stats.Efficiency,
	})
}

func (srv *HTTPServer) suggestions(c *gin.Context) {
	userID, ok := paramInt64(c, "id")
	if !ok {
		return
	}

	active, err := srv.taskSvc.ListTasks(c.Request.Context(), userID, model.StatusActive)
	if err != nil {
		srv.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": srv.enricher.Suggest(c.Request.Context(), active)})
}

func (srv *HTTPServer) storeError(c *gin.Context, err error) {
	srv.logger.Errorw("store failure", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func paramInt64(c *gin.Context, name string) (int64, bool) {
	value, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return value, true
}

func paramUint(c *gin.Context, name string) (uint, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(value), true
}
