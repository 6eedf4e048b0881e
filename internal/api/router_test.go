package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/florentd35/teachly/internal/app"
	iauth "github.com/florentd35/teachly/internal/auth"
	"github.com/florentd35/teachly/internal/realtime"
	"github.com/florentd35/teachly/internal/services"
	"github.com/florentd35/teachly/internal/database/testutil"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-test-secret", Issuer: "test", AccessTokenTTL: 15 * time.Minute})
	require.NoError(t, err)

	hub := realtime.NewHub(realtime.NewMemoryRegistry())
	notifier := services.NewNotifier(db, hub)

	users, err := services.NewUserService(db, nil)
	require.NoError(t, err)
	contacts, err := services.NewContactService(db, notifier)
	require.NoError(t, err)
	demands, err := services.NewDemandService(db, notifier)
	require.NoError(t, err)
	messages, err := services.NewMessageService(db, notifier)
	require.NoError(t, err)
	events, err := services.NewEventService(db, notifier)
	require.NoError(t, err)
	tasks, err := services.NewTaskService(db, notifier)
	require.NoError(t, err)
	notifications, err := services.NewNotificationService(db)
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"

	router, err := NewRouter(Dependencies{
		Config:        cfg,
		DB:            db,
		JWT:           jwtSvc,
		Hub:           hub,
		Users:         users,
		Contacts:      contacts,
		Demands:       demands,
		Messages:      messages,
		Events:        events,
		Tasks:         tasks,
		Notifications: notifications,
	})
	require.NoError(t, err)
	return router
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	for _, path := range []string{"/api/v1/users/me", "/api/v1/contacts", "/api/v1/notifications"} {
		w = httptest.NewRecorder()
		req, _ = http.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
		require.Equalf(t, http.StatusUnauthorized, w.Code, "expected 401 for %s without token", path)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/does-not-exist", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterSignupAndAuthenticatedFlow(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	body := `{"username":"ada","email":"ada@example.com","password":"correct-horse","role":"student"}`
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	// Unconfirmed accounts cannot log in yet.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"login":"ada","password":"correct-horse"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	metricsRec := httptest.NewRecorder()
	metricsReq, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(metricsRec, metricsReq)
	require.Equal(t, http.StatusOK, metricsRec.Code)
	require.Contains(t, metricsRec.Body.String(), "teachly_http_requests_total")
}