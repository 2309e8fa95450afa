package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/caesarsage/mini-pm/internal/auth"
	"github.com/caesarsage/mini-pm/internal/schedule"
	"github.com/caesarsage/mini-pm/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Store == nil {
		opts.Store = storage.NewMemoryStore()
	}
	if opts.Sessions == nil {
		opts.Sessions = auth.NewSessionManager(time.Hour, quiet)
	}
	if opts.Logger == nil {
		opts.Logger = quiet
	}
	return &testServer{t: t, router: NewServer(opts).Router()}
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(ts.t, err)
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) register(username string) string {
	ts.t.Helper()
	w := ts.do(http.MethodPost, "/api/auth/register", "", gin.H{"username": username, "password": "secret1"})
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())

	var resp tokenResponse
	require.NoError(ts.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(ts.t, resp.Token)
	return resp.Token
}

func (ts *testServer) createProject(token, title string) int64 {
	ts.t.Helper()
	w := ts.do(http.MethodPost, "/api/projects", token, gin.H{"title": title})
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())

	var p struct {
		ID int64 `json:"id"`
	}
	require.NoError(ts.t, json.Unmarshal(w.Body.Bytes(), &p))
	return p.ID
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error
}

func TestRootAndHealth(t *testing.T) {
	ts := newTestServer(t, Options{})

	w := ts.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Mini Project Manager API is running", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRequestIDIsPropagated(t *testing.T) {
	ts := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, Options{})

	w := ts.do(http.MethodOptions, "/api/projects", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.register("alice")

	w := ts.do(http.MethodPost, "/api/auth/register", "", gin.H{"username": "alice", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "alice", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice", resp.Username)

	w = ts.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "alice", "password": "wrong12"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", decodeError(t, w))

	w = ts.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "nobody", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t, Options{})

	tests := []struct {
		name string
		body any
	}{
		{"short username", gin.H{"username": "al", "password": "secret1"}},
		{"short password", gin.H{"username": "alice", "password": "123"}},
		{"missing fields", gin.H{}},
		{"malformed json", `{"username":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/api/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, decodeError(t, w))
		})
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, Options{})

	w := ts.do(http.MethodGet, "/api/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodGet, "/api/projects", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProjectLifecycle(t *testing.T) {
	ts := newTestServer(t, Options{})
	alice := ts.register("alice")
	bob := ts.register("bob")

	id := ts.createProject(alice, "Website")
	path := "/api/projects/" + itoa(id)

	w := ts.do(http.MethodGet, "/api/projects", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = ts.do(http.MethodGet, "/api/projects", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = ts.do(http.MethodGet, path, bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Project not found", decodeError(t, w))

	w = ts.do(http.MethodPost, "/api/projects", alice, gin.H{"title": "ab"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodGet, "/api/projects/abc", alice, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodDelete, path, alice, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(http.MethodGet, path, alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskLifecycle(t *testing.T) {
	ts := newTestServer(t, Options{})
	alice := ts.register("alice")
	bob := ts.register("bob")
	pid := ts.createProject(alice, "Website")

	w := ts.do(http.MethodPost, "/api/projects/"+itoa(pid)+"/tasks", alice,
		gin.H{"title": "Design", "dueDate": "2026-11-01T00:00:00Z"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "pending", created.Status)
	taskPath := "/api/tasks/" + itoa(created.ID)

	w = ts.do(http.MethodPost, "/api/projects/"+itoa(pid)+"/tasks", bob, gin.H{"title": "Sneaky"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodPut, taskPath, bob, gin.H{"isCompleted": true})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodPut, taskPath, alice, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPut, taskPath, alice, gin.H{"isCompleted": true})
	require.Equal(t, http.StatusOK, w.Code)
	var updated struct {
		Status      string  `json:"status"`
		CompletedAt *string `json:"completedAt"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "completed", updated.Status)
	assert.NotNil(t, updated.CompletedAt)

	w = ts.do(http.MethodGet, "/api/projects/"+itoa(pid), alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Design"`)

	w = ts.do(http.MethodDelete, taskPath, alice, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(http.MethodDelete, taskPath, alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScheduleEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})
	token := ts.register("alice")
	path := "/api/projects/" + itoa(ts.createProject(token, "Website")) + "/schedule"

	tests := []struct {
		name      string
		body      any
		wantCode  int
		wantOrder []string
		wantError string
	}{
		{
			name: "linear chain",
			body: `{"tasks":[{"title":"A"},{"title":"B","dependencies":["A"]},{"title":"C","dependencies":["A","B"]}]}`,
			wantCode:  http.StatusOK,
			wantOrder: []string{"A", "B", "C"},
		},
		{
			name:      "no tasks",
			body:      `{"tasks":[]}`,
			wantCode:  http.StatusBadRequest,
			wantError: "No tasks provided",
		},
		{
			name:      "missing tasks field",
			body:      `{}`,
			wantCode:  http.StatusBadRequest,
			wantError: "No tasks provided",
		},
		{
			name:      "empty body",
			body:      "",
			wantCode:  http.StatusBadRequest,
			wantError: "No tasks provided",
		},
		{
			name:      "direct cycle",
			body:      `{"tasks":[{"title":"A","dependencies":["B"]},{"title":"B","dependencies":["A"]}]}`,
			wantCode:  http.StatusInternalServerError,
			wantError: "Circular dependency detected: A -> B -> A",
		},
		{
			name:      "ghost dependency under task_count",
			body:      `{"tasks":[{"title":"X","dependencies":["Y"]}]}`,
			wantCode:  http.StatusInternalServerError,
			wantError: "Circular dependency detected",
		},
		{
			name:     "duplicate title",
			body:     `{"tasks":[{"title":"A"},{"title":"A"}]}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "negative hours",
			body:     `{"tasks":[{"title":"A","estimatedHours":-1}]}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed json",
			body:     `{"tasks":`,
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, path, token, tt.body)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())

			if tt.wantOrder != nil {
				var resp schedule.Response
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantOrder, resp.RecommendedOrder)
			}
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeError(t, w))
			}
		})
	}
}

func TestScheduleGhostPolicies(t *testing.T) {
	body := `{"tasks":[{"title":"X","dependencies":["Y"]}]}`

	ts := newTestServer(t, Options{GhostPolicy: schedule.GhostNodeCount})
	token := ts.register("alice")
	w := ts.do(http.MethodPost, "/api/projects/"+itoa(ts.createProject(token, "Website"))+"/schedule", token, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"recommendedOrder":["Y","X"]}`, w.Body.String())

	ts = newTestServer(t, Options{GhostPolicy: schedule.GhostReject})
	token = ts.register("alice")
	w = ts.do(http.MethodPost, "/api/projects/"+itoa(ts.createProject(token, "Website"))+"/schedule", token, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Unknown dependency: Y", decodeError(t, w))
}

func TestScheduleRequiresOwnedProject(t *testing.T) {
	ts := newTestServer(t, Options{})
	alice := ts.register("alice")
	bob := ts.register("bob")
	pid := ts.createProject(alice, "Website")

	w := ts.do(http.MethodPost, "/api/projects/"+itoa(pid)+"/schedule", bob, `{"tasks":[{"title":"A"}]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScheduleRateLimit(t *testing.T) {
	ts := newTestServer(t, Options{Limiter: rate.NewLimiter(rate.Every(time.Hour), 1)})
	token := ts.register("alice")
	path := "/api/projects/" + itoa(ts.createProject(token, "Website")) + "/schedule"
	body := `{"tasks":[{"title":"A"}]}`

	w := ts.do(http.MethodPost, path, token, body)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPost, path, token, body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Rate limit exceeded", decodeError(t, w))
}

func TestMetricsExposed(t *testing.T) {
	reg := prometheus.NewRegistry()
	ts := newTestServer(t, Options{Registry: reg})
	token := ts.register("alice")
	path := "/api/projects/" + itoa(ts.createProject(token, "Website")) + "/schedule"

	ts.do(http.MethodPost, path, token, `{"tasks":[{"title":"A"}]}`)
	ts.do(http.MethodPost, path, token, `{"tasks":[{"title":"A","dependencies":["A"]}]}`)

	w := ts.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `minipm_schedule_outcomes_total{kind="success"} 1`)
	assert.Contains(t, body, `minipm_schedule_outcomes_total{kind="cycle_detected"} 1`)
	assert.Contains(t, body, `minipm_http_requests_total{method="POST",route="/api/projects/:id/schedule",status="200"} 1`)
	assert.Contains(t, body, "minipm_schedule_graph_nodes_count 2")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestLogoutRevokesToken(t *testing.T) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := auth.NewSessionManager(time.Hour, quiet)
	ts := newTestServer(t, Options{Sessions: sessions})
	token := ts.register("alice")
	require.Equal(t, 1, sessions.Len())

	w := ts.do(http.MethodGet, "/api/projects", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, sessions.Len())

	w = ts.do(http.MethodGet, "/api/projects", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListTasksWithProgressAndOverdue(t *testing.T) {
	ts := newTestServer(t, Options{})
	alice := ts.register("alice")
	bob := ts.register("bob")
	pid := ts.createProject(alice, "Website")
	tasksPath := "/api/projects/" + itoa(pid) + "/tasks"

	w := ts.do(http.MethodGet, tasksPath, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = ts.do(http.MethodPost, tasksPath, alice, gin.H{"title": "Late one", "dueDate": "2020-01-01T00:00:00Z"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var late struct {
		ID      int64 `json:"id"`
		Overdue bool  `json:"overdue"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &late))
	assert.True(t, late.Overdue)

	w = ts.do(http.MethodPost, tasksPath, alice, gin.H{"title": "Undated"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(http.MethodPut, "/api/tasks/"+itoa(late.ID), alice, gin.H{"isCompleted": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"overdue":false`)

	w = ts.do(http.MethodGet, tasksPath, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tasks []struct {
		Title   string `json:"title"`
		Overdue bool   `json:"overdue"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tasks))
	require.Len(t, tasks, 2)
	assert.Equal(t, "Late one", tasks[0].Title)
	assert.Equal(t, "Undated", tasks[1].Title)

	w = ts.do(http.MethodGet, "/api/projects/"+itoa(pid), alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var p struct {
		CompletedTasks int               `json:"completedTasks"`
		TotalTasks     int               `json:"totalTasks"`
		Tasks          []json.RawMessage `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, 1, p.CompletedTasks)
	assert.Equal(t, 2, p.TotalTasks)
	assert.Len(t, p.Tasks, 2)

	w = ts.do(http.MethodGet, tasksPath, bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActiveSessionsGauge(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.register("alice")
	ts.register("bob")

	w := ts.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "minipm_active_sessions 2")
}
