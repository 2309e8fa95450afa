package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/caesarsage/mini-pm/internal/auth"
	"github.com/caesarsage/mini-pm/internal/logger"
	"github.com/caesarsage/mini-pm/internal/project"
	"github.com/caesarsage/mini-pm/internal/schedule"
	"github.com/caesarsage/mini-pm/internal/storage"
	"github.com/caesarsage/mini-pm/internal/task"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type createProjectRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type createTaskRequest struct {
	Title   string     `json:"title" validate:"required,min=3,max=100"`
	DueDate *time.Time `json:"dueDate"`
}

type updateTaskRequest struct {
	IsCompleted *bool `json:"isCompleted" validate:"required"`
}

// taskResponse is a stored task plus fields derived at response time.
type taskResponse struct {
	*task.Item
	Overdue bool `json:"overdue"`
}

type projectResponse struct {
	*project.Project
	Tasks          []taskResponse `json:"tasks"`
	CompletedTasks int            `json:"completedTasks"`
	TotalTasks     int            `json:"totalTasks"`
}

func newTaskResponses(items []*task.Item, now time.Time) []taskResponse {
	out := make([]taskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, taskResponse{Item: t, Overdue: t.Overdue(now)})
	}
	return out
}

func newProjectResponse(p *project.Project, now time.Time) projectResponse {
	done, total := p.Progress()
	return projectResponse{
		Project:        p,
		Tasks:          newTaskResponses(p.Tasks, now),
		CompletedTasks: done,
		TotalTasks:     total,
	}
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}

	user, err := auth.NewUser(req.Username, req.Password)
	if err != nil {
		storeError(c, err, "")
		return
	}
	if err := s.store.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			abortError(c, http.StatusConflict, "Username already exists")
			return
		}
		storeError(c, err, "")
		return
	}

	s.issueToken(c, http.StatusCreated, user)
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}

	user, err := s.store.LoadUserByName(c.Request.Context(), req.Username)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		storeError(c, err, "")
		return
	}
	if user == nil || user.CheckPassword(req.Password) != nil {
		abortError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	s.issueToken(c, http.StatusOK, user)
}

func (s *Server) issueToken(c *gin.Context, status int, user *auth.User) {
	sess, err := s.sessions.Create(user)
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("create session", "error", err)
		abortError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	c.JSON(status, tokenResponse{Token: sess.Token, Username: user.Username})
}

func (s *Server) logout(c *gin.Context) {
	s.sessions.Revoke(currentSession(c).Token)
	c.Status(http.StatusNoContent)
}

func (s *Server) listProjects(c *gin.Context) {
	sess := currentSession(c)
	projects, err := s.store.ListProjects(c.Request.Context(), sess.UserID)
	if err != nil {
		storeError(c, err, "")
		return
	}

	now := s.now()
	resp := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, newProjectResponse(p, now))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) createProject(c *gin.Context) {
	var req createProjectRequest
	if !bind(c, &req) {
		return
	}

	p := project.New(currentSession(c).UserID, req.Title, req.Description)
	if err := s.store.CreateProject(c.Request.Context(), p); err != nil {
		storeError(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, newProjectResponse(p, s.now()))
}

// ownedProject loads the :id project and checks the caller owns it. It
// writes the error response itself and returns nil on failure.
func (s *Server) ownedProject(c *gin.Context) *project.Project {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortError(c, http.StatusBadRequest, "Invalid project id")
		return nil
	}

	p, err := s.store.LoadProject(c.Request.Context(), id)
	if err != nil {
		storeError(c, err, "Project not found")
		return nil
	}
	if !p.OwnedBy(currentSession(c).UserID) {
		abortError(c, http.StatusNotFound, "Project not found")
		return nil
	}
	return p
}

func (s *Server) getProject(c *gin.Context) {
	if p := s.ownedProject(c); p != nil {
		c.JSON(http.StatusOK, newProjectResponse(p, s.now()))
	}
}

func (s *Server) deleteProject(c *gin.Context) {
	p := s.ownedProject(c)
	if p == nil {
		return
	}
	if err := s.store.DeleteProject(c.Request.Context(), p.ID); err != nil {
		storeError(c, err, "Project not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listTasks(c *gin.Context) {
	p := s.ownedProject(c)
	if p == nil {
		return
	}

	tasks, err := s.store.LoadProjectTasks(c.Request.Context(), p.ID)
	if err != nil {
		storeError(c, err, "Project not found")
		return
	}
	c.JSON(http.StatusOK, newTaskResponses(tasks, s.now()))
}

func (s *Server) createTask(c *gin.Context) {
	p := s.ownedProject(c)
	if p == nil {
		return
	}

	var req createTaskRequest
	if !bind(c, &req) {
		return
	}

	t := task.New(p.ID, req.Title, req.DueDate)
	if err := s.store.CreateTask(c.Request.Context(), t); err != nil {
		storeError(c, err, "Project not found")
		return
	}
	c.JSON(http.StatusCreated, taskResponse{Item: t, Overdue: t.Overdue(s.now())})
}

// ownedTask loads the :taskId task and checks the caller owns its project.
func (s *Server) ownedTask(c *gin.Context) *task.Item {
	id, err := strconv.ParseInt(c.Param("taskId"), 10, 64)
	if err != nil {
		abortError(c, http.StatusBadRequest, "Invalid task id")
		return nil
	}

	ctx := c.Request.Context()
	t, err := s.store.LoadTask(ctx, id)
	if err != nil {
		storeError(c, err, "Task not found")
		return nil
	}
	p, err := s.store.LoadProject(ctx, t.ProjectID)
	if err != nil || !p.OwnedBy(currentSession(c).UserID) {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			storeError(c, err, "")
			return nil
		}
		abortError(c, http.StatusNotFound, "Task not found")
		return nil
	}
	return t
}

func (s *Server) updateTask(c *gin.Context) {
	t := s.ownedTask(c)
	if t == nil {
		return
	}

	var req updateTaskRequest
	if !bind(c, &req) {
		return
	}

	now := s.now()
	t.SetCompleted(*req.IsCompleted, now)
	if err := s.store.SaveTask(c.Request.Context(), t); err != nil {
		storeError(c, err, "Task not found")
		return
	}
	c.JSON(http.StatusOK, taskResponse{Item: t, Overdue: t.Overdue(now)})
}

func (s *Server) deleteTask(c *gin.Context) {
	t := s.ownedTask(c)
	if t == nil {
		return
	}
	if err := s.store.DeleteTask(c.Request.Context(), t.ID); err != nil {
		storeError(c, err, "Task not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// scheduleProject computes a recommended order for the posted tasks. The
// project id only scopes the route; posted tasks are not matched against
// the stored ones.
func (s *Server) scheduleProject(c *gin.Context) {
	if s.ownedProject(c) == nil {
		return
	}

	var req schedule.Request
	// An empty body is treated like an empty task list.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Tasks) > 0 {
		if err := validate.Struct(req); err != nil {
			abortError(c, http.StatusBadRequest, validationMessage(err))
			return
		}
	}

	out := s.scheduler.Schedule(c.Request.Context(), req.Tasks)
	if !out.OK() {
		abortError(c, scheduleStatus(out.Kind), out.Message)
		return
	}
	c.JSON(http.StatusOK, schedule.Response{RecommendedOrder: out.Order})
}
