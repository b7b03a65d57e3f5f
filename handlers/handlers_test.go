package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visittrack/api/models"
	"visittrack/api/notify"
	"visittrack/api/store"
	"visittrack/api/tracker"
	"visittrack/api/utils"
)

const testAPIKey = "page-key"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeSalespeople struct {
	mu     sync.Mutex
	byMail map[string]*models.Salesperson
}

func (f *fakeSalespeople) CreateSalesperson(_ context.Context, email, name string, hashed []byte) (*models.Salesperson, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byMail[email]; ok {
		return nil, fmt.Errorf("%w: %s", store.ErrSalespersonExists, email)
	}
	sp := &models.Salesperson{ID: len(f.byMail) + 1, Email: email, Name: name, HashedPassword: hashed}
	f.byMail[email] = sp
	return sp, nil
}

func (f *fakeSalespeople) GetSalespersonByEmail(_ context.Context, email string) (*models.Salesperson, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sp, ok := f.byMail[email]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrSalespersonNotFound, email)
	}
	return sp, nil
}

type testServer struct {
	router    *gin.Engine
	manager   *tracker.Manager
	tokens    *utils.TokenIssuer
	delivered chan models.Notification
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	retention, err := store.NewRetentionStore(context.Background(), store.NewMemoryBackend(), store.RetentionOptions{})
	require.NoError(t, err)

	tokens, err := utils.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	delivered := make(chan models.Notification, 16)
	manager := tracker.NewManager(tracker.Options{
		Retention: retention,
		Sink: notify.FuncSink(func(_ context.Context, n models.Notification) error {
			delivered <- n
			return nil
		}),
	})

	router := NewRouter(RouterConfig{
		Auth:     NewAuthHandlers(&fakeSalespeople{byMail: map[string]*models.Salesperson{}}, tokens),
		Visits:   NewVisitHandlers(manager, notify.NewHub("")),
		Tokens:   tokens,
		APIKey:   testAPIKey,
		FEOrigin: "http://localhost:3000",
	})
	return &testServer{router: router, manager: manager, tokens: tokens, delivered: delivered}
}

func (s *testServer) do(method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func apiKey() http.Header {
	return http.Header{"X-Api-Key": []string{testAPIKey}}
}

func TestVisitEndpointsRequireAuth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/visits/current", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVisitFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/visits/report", nil, apiKey())
	require.Equal(t, http.StatusOK, rec.Code)
	var empty models.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	assert.True(t, empty.Empty)

	rec = s.do(http.MethodPost, "/api/visits/start", map[string]string{
		"listingId":   "emp1",
		"listingName": "Residencial Aurora",
	}, apiKey())
	require.Equal(t, http.StatusCreated, rec.Code)
	var started models.VisitSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Equal(t, "emp1", started.ListingID)
	assert.Equal(t, models.DefaultOriginTag, started.ViewerInfo.OriginTag)
	assert.NotEqual(t, models.UnknownFingerprint, started.ViewerInfo.ClientFingerprint)
	assert.Nil(t, started.DurationSeconds)

	rec = s.do(http.MethodPost, "/api/visits/actions", map[string]any{
		"kind":    "click_gallery",
		"details": map[string]any{"photo": 2},
	}, apiKey())
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodPost, "/api/visits/actions", map[string]any{"kind": "dance"}, apiKey())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/visits/lifecycle", map[string]any{"event": "suspend"}, apiKey())
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/visits/current", nil, apiKey())
	require.Equal(t, http.StatusOK, rec.Code)
	var current struct {
		Active   bool            `json:"active"`
		Snapshot models.Snapshot `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &current))
	assert.True(t, current.Active)
	assert.Equal(t, []models.ActionKind{models.ActionView, models.ActionClickGallery, models.ActionPause}, current.Snapshot.ActionKinds)

	rec = s.do(http.MethodPost, "/api/visits/finalize", nil, apiKey())
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/visits/history?limit=5", nil, apiKey())
	require.Equal(t, http.StatusOK, rec.Code)
	var history []models.VisitSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	require.NotNil(t, history[0].DurationSeconds)
	assert.Len(t, history[0].Actions, 3)

	rec = s.do(http.MethodGet, "/api/visits/history?limit=abc", nil, apiKey())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/visits/current", nil, apiKey())
	assert.JSONEq(t, `{"active":false}`, rec.Body.String())
}

func TestStartVisitUsesRefererAsOrigin(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/visits/start", map[string]string{
		"listingId":   "emp1",
		"listingName": "Residencial Aurora",
	}, http.Header{"X-Api-Key": []string{testAPIKey}, "Referer": []string{"https://www.google.com/search?q=apto"}})
	require.Equal(t, http.StatusCreated, rec.Code)

	var started models.VisitSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))

	active, ok := s.manager.Active()
	require.True(t, ok)
	assert.Equal(t, active.ID, started.ID)
	assert.Equal(t, "www.google.com", active.ViewerInfo.OriginTag)
	assert.Equal(t, "www.google.com", started.ViewerInfo.OriginTag)
}

func TestStartVisitValidatesBody(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/visits/start", map[string]string{"listingId": "emp1"}, apiKey())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLifecycleRejectsUnknownEvent(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/visits/lifecycle", map[string]string{"event": "reload"}, apiKey())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignupLoginAndBind(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/signup", map[string]string{
		"email": "ana@example.com", "name": "Ana", "password": "correct-horse",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, "/api/signup", map[string]string{
		"email": "ana@example.com", "name": "Ana", "password": "correct-horse",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/login", map[string]string{
		"email": "ana@example.com", "password": "wrong-password",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/login", map[string]string{
		"email": "ana@example.com", "password": "correct-horse",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	bearer := http.Header{"Authorization": []string{"Bearer " + login.Token}}
	rec = s.do(http.MethodPost, "/api/salesperson/bind", map[string]string{"viewerId": "lead-9"}, bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	binding, ok := s.manager.Binding()
	require.True(t, ok)
	assert.Equal(t, "1", binding.SalespersonID)
	assert.Equal(t, "lead-9", binding.ViewerID)

	s.do(http.MethodPost, "/api/visits/start", map[string]string{
		"listingId": "emp1", "listingName": "Residencial Aurora",
	}, apiKey())
	s.do(http.MethodPost, "/api/visits/actions", map[string]string{"kind": "click_contact"}, apiKey())

	var kinds []models.NotificationKind
	for len(kinds) < 2 {
		select {
		case n := <-s.delivered:
			assert.Equal(t, "1", n.SalespersonID)
			kinds = append(kinds, n.Kind)
		case <-time.After(2 * time.Second):
			t.Fatalf("expected 2 notifications, got %v", kinds)
		}
	}
	assert.Equal(t, []models.NotificationKind{models.NotifySessionStart, models.NotifyInterest}, kinds)

	rec = s.do(http.MethodDelete, "/api/salesperson/bind", nil, bearer)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok = s.manager.Binding()
	assert.False(t, ok)
}

func TestBindWithAPIKeyNeedsSalespersonID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/salesperson/bind", map[string]string{}, apiKey())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/salesperson/bind", map[string]string{"salespersonId": "77"}, apiKey())
	require.Equal(t, http.StatusOK, rec.Code)
	binding, ok := s.manager.Binding()
	require.True(t, ok)
	assert.Equal(t, "77", binding.SalespersonID)
}

func TestNotificationsRequireSalespersonLogin(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/notifications/ws", nil, apiKey())
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStatsRoutesAbsentWithoutClickHouse(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/stats/top-listings", nil, apiKey())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
