package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/arnavshah/workforce-api/internal/logger"
	"github.com/arnavshah/workforce-api/internal/testdb"
	"github.com/arnavshah/workforce-api/internal/timeouts"
	"github.com/arnavshah/workforce-api/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testOptions = Options{
	JWTSecret:      "test-secret",
	TokenTTL:       time.Hour,
	BcryptCost:     4,
	Workflow:       timeouts.Policy{Timeout: 5 * time.Second, Backoff: time.Millisecond},
	ShiftCacheTTL:  time.Minute,
	APIPrefix:      "/api",
	MetricsEnabled: true,
}

type server struct {
	t      *testing.T
	router *gin.Engine
	fx     *testdb.Fixture
	db     *gorm.DB
}

func newServer(t *testing.T, opts Options) *server {
	t.Helper()
	db := testdb.Open(t)
	fx := testdb.Seed(t, db)
	h, err := New(fx.Store, opts, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(h.Close)
	r, err := h.Router()
	require.NoError(t, err)
	return &server{t: t, router: r, fx: fx, db: db}
}

func (s *server) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) login(username string) string {
	s.t.Helper()
	form := url.Values{"username": {username}, "password": {"password123"}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken
}

type errorBody struct {
	Error     string   `json:"error"`
	Kind      string   `json:"kind"`
	IDs       []string `json:"ids"`
	Retryable bool     `json:"retryable"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestLogin(t *testing.T) {
	s := newServer(t, testOptions)

	form := url.Values{"username": {"alice"}, "password": {"password123"}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[struct {
		AccessToken string           `json:"access_token"`
		TokenType   string           `json:"token_type"`
		User        models.Principal `json:"user"`
	}](t, w)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, testdb.IncomingAlice, resp.User.EmployeeID)
	assert.Equal(t, "qc_incoming", resp.User.DepartmentID)
	assert.Equal(t, models.RoleEmployee, resp.User.Role)

	w = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "alice", "password": "password123"})
	assert.Equal(t, http.StatusOK, w.Code, "JSON body is accepted too")

	w = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "InvalidCredentials", decode[errorBody](t, w).Kind)

	w = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMe(t *testing.T) {
	s := newServer(t, testOptions)
	w := s.do(http.MethodGet, "/api/auth/me", s.login("incoming.lead"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	me := decode[userResponse](t, w)
	assert.Equal(t, testdb.IncomingLead, me.EmployeeID)
	assert.Equal(t, models.RoleDepartmentManager, me.Role)
	assert.True(t, me.IsActive)
}

func TestAuthMiddleware_RejectsMissingAndInvalidTokens(t *testing.T) {
	s := newServer(t, testOptions)

	for _, token := range []string{"", "garbage"} {
		w := s.do(http.MethodGet, "/api/auth/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "SessionExpired", decode[errorBody](t, w).Kind)
		assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
	}
}

func TestAuthMiddleware_DeactivatedEmployeeLosesSession(t *testing.T) {
	s := newServer(t, testOptions)
	bob := s.login("bob")
	lead := s.login("incoming.lead")

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/auth/me", bob, nil).Code)
	w := s.do(http.MethodDelete, "/api/employees/"+testdb.IncomingBob, lead, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decode[models.Employee](t, w).IsActive)

	w = s.do(http.MethodGet, "/api/auth/me", bob, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequests_StatusMapping(t *testing.T) {
	s := newServer(t, testOptions)
	alice := s.login("alice")
	lead := s.login("incoming.lead")

	w := s.do(http.MethodPost, "/api/requests", alice, gin.H{
		"type": "leave", "start_date": "2024-03-04", "end_date": "2024-03-05", "reason": "family",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	req := decode[models.Request](t, w)
	assert.Equal(t, models.RequestPending, req.Status)

	w = s.do(http.MethodPut, "/api/requests/"+req.ID+"/approve", alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "AccessDenied", decode[errorBody](t, w).Kind)

	w = s.do(http.MethodGet, "/api/requests/"+req.ID, s.login("carol"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPut, "/api/requests/"+req.ID+"/approve", lead, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.RequestApproved, decode[models.Request](t, w).Status)

	w = s.do(http.MethodPut, "/api/requests/"+req.ID+"/reject", lead, gin.H{"notes": "too late"})
	assert.Equal(t, http.StatusConflict, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, "InvalidTransition", body.Kind)
	assert.Contains(t, body.IDs, req.ID)

	w = s.do(http.MethodGet, "/api/notifications?unread_only=true", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	notes := decode[struct {
		Notifications []models.Notification `json:"notifications"`
	}](t, w)
	require.Len(t, notes.Notifications, 1)
	assert.Equal(t, models.NotificationSuccess, notes.Notifications[0].Type)

	w = s.do(http.MethodPut, "/api/notifications/read-all", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["updated"])
}

func TestReject_WithoutBody(t *testing.T) {
	s := newServer(t, testOptions)
	alice := s.login("alice")

	w := s.do(http.MethodPost, "/api/requests", alice, gin.H{"type": "overtime", "start_date": "2024-03-04", "hours": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[models.Request](t, w).ID

	w = s.do(http.MethodPut, "/api/requests/"+id+"/reject", s.login("incoming.lead"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	r := decode[models.Request](t, w)
	assert.Equal(t, models.RequestRejected, r.Status)
	assert.False(t, r.NotesProvided)
}

func TestBinding_BadInputIs400(t *testing.T) {
	s := newServer(t, testOptions)
	alice := s.login("alice")
	admin := s.login("admin")

	cases := []struct {
		name, method, path, token string
		body                      any
	}{
		{"date format", http.MethodPost, "/api/requests", alice, gin.H{"type": "leave", "start_date": "03/04/2024"}},
		{"request type", http.MethodPost, "/api/requests", alice, gin.H{"type": "holiday", "start_date": "2024-03-04"}},
		{"clock format", http.MethodPost, "/api/shifts", admin, gin.H{"id": "early", "name": "Early", "type": "morning", "start_time": "6am", "end_time": "14:00"}},
		{"page limit", http.MethodGet, "/api/employees?limit=500", admin, nil},
		{"force flag", http.MethodDelete, "/api/divisions/quality?force=maybe", admin, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, "BadRequest", decode[errorBody](t, w).Kind)
		})
	}
}

func TestDomainValidationIs422(t *testing.T) {
	s := newServer(t, testOptions)
	w := s.do(http.MethodPost, "/api/requests", s.login("alice"), gin.H{
		"type": "overtime", "start_date": "2024-03-04", "hours": 20,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "InvariantViolation", decode[errorBody](t, w).Kind)
}

func TestSchedules_GenerateApproveExport(t *testing.T) {
	s := newServer(t, testOptions)
	lead := s.login("incoming.lead")

	w := s.do(http.MethodPost, "/api/schedules/generate", lead, gin.H{"start_date": "2024-03-04", "end_date": "2024-03-06"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[struct {
		Schedule    models.Schedule     `json:"schedule"`
		Assignments []models.Assignment `json:"assignments"`
	}](t, w)
	assert.Len(t, res.Assignments, 9)
	assert.Equal(t, models.ScheduleDraft, res.Schedule.Status)

	w = s.do(http.MethodPut, "/api/schedules/"+res.Schedule.ID+"/approve", s.login("alice"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPut, "/api/schedules/"+res.Schedule.ID+"/approve", lead, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodPut, "/api/schedules/"+res.Schedule.ID+"/approve", lead, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/api/schedules/assignments?start_date=2024-03-04&end_date=2024-03-04", s.login("alice"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	own := decode[struct {
		Assignments []models.Assignment `json:"assignments"`
	}](t, w)
	require.Len(t, own.Assignments, 1)
	assert.Equal(t, "morning", own.Assignments[0].ShiftID)

	w = s.do(http.MethodGet, "/api/schedules/export?start_date=2024-03-04&end_date=2024-03-06", lead, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "schedule_2024-03-04_2024-03-06.xlsx")
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	rows, err := f.GetRows("Schedule")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestSchedules_IncompleteCarriesPartialResult(t *testing.T) {
	s := newServer(t, testOptions)
	require.NoError(t, s.db.Model(&models.Employee{}).Where("id = ?", testdb.IncomingBob).
		Update("shift_type", nil).Error)

	w := s.do(http.MethodPost, "/api/schedules/generate", s.login("incoming.lead"), gin.H{"start_date": "2024-03-04", "end_date": "2024-03-06"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	body := decode[struct {
		Kind   string   `json:"kind"`
		IDs    []string `json:"ids"`
		Result struct {
			Assignments []models.Assignment `json:"assignments"`
		} `json:"result"`
	}](t, w)
	assert.Equal(t, "IncompleteSchedule", body.Kind)
	assert.Equal(t, []string{testdb.IncomingBob}, body.IDs)
	assert.Len(t, body.Result.Assignments, 6)
}

func TestDepartments_ListForDivisionManager(t *testing.T) {
	s := newServer(t, testOptions)
	w := s.do(http.MethodGet, "/api/departments", s.login("quality.head"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[struct {
		Departments []struct {
			ID         string `json:"id"`
			DivisionID string `json:"division_id"`
		} `json:"departments"`
	}](t, w)
	assert.Len(t, body.Departments, 4)
	for _, d := range body.Departments {
		assert.Equal(t, "quality", d.DivisionID)
	}
}

func TestAttendanceAndDashboard(t *testing.T) {
	s := newServer(t, testOptions)
	alice := s.login("alice")

	w := s.do(http.MethodPost, "/api/attendance/check-in", alice, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/api/attendance/check-in", alice, gin.H{"notes": "again"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodGet, "/api/dashboard/stats", s.login("incoming.lead"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := decode[map[string]any](t, w)
	assert.EqualValues(t, 3, stats["total_employees"])
}

func TestServiceRoutes(t *testing.T) {
	s := newServer(t, testOptions)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil).Code)

	w := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "workforce_http_requests_total")
}

func TestLoginRateLimit(t *testing.T) {
	opts := testOptions
	opts.LoginRateLimit = "2-M"
	s := newServer(t, opts)

	for i := 0; i < 2; i++ {
		w := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "alice", "password": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "alice", "password": "password123"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
