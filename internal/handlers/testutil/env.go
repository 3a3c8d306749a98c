package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/partyfinder/internal/api"
	"github.com/charlesng35/partyfinder/internal/app"
	iauth "github.com/charlesng35/partyfinder/internal/auth"
	"github.com/charlesng35/partyfinder/internal/cache"
	sharedtestutil "github.com/charlesng35/partyfinder/internal/database/testutil"
	"github.com/charlesng35/partyfinder/internal/events"
	"github.com/charlesng35/partyfinder/internal/monitoring"
	"github.com/charlesng35/partyfinder/internal/monitoring/checks"
	"github.com/charlesng35/partyfinder/internal/services"
	"github.com/charlesng35/partyfinder/internal/storage"
	"github.com/charlesng35/partyfinder/pkg/response"
)

// Env is a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T             *testing.T
	DB            *gorm.DB
	Router        *gin.Engine
	JWT           *iauth.JWTService
	Config        *app.Config
	Cache         *cache.MemoryStore
	Parties       *services.PartyService
	Notifications *services.NotificationService
	Relay         *events.Relay
}

// Option adjusts the configuration used by NewEnv.
type Option func(*app.Config)

// WithSubmitRateLimit limits submissions per user per minute.
func WithSubmitRateLimit(limit int) Option {
	return func(cfg *app.Config) {
		cfg.Party.SubmitRateLimit = limit
		cfg.Party.SubmitRateWindow = time.Minute
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &app.Config{
		Auth: app.AuthConfig{JWT: app.JWTSettings{
			Secret: "test-suite-super-secret-key-32-bytes!!",
			Issuer: "test-suite",
			TTL:    time.Hour,
		}},
		Party: app.PartyConfig{
			MaxSlots:           8,
			ImmediateTTL:       3 * time.Hour,
			ProjectionCacheTTL: time.Minute,
			SubmitRateLimit:    1000,
			SubmitRateWindow:   time.Minute,
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())
	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	partyStore, err := storage.NewPartyStore(db)
	require.NoError(t, err)
	outbox, err := storage.NewOutboxStore(db)
	require.NoError(t, err)
	audit, err := services.NewAuditService(db)
	require.NoError(t, err)
	notifications, err := services.NewNotificationService(db, nil)
	require.NoError(t, err)
	notifier, err := services.NewPartyNotifier(notifications)
	require.NoError(t, err)

	memory := cache.NewMemoryStore()
	parties, err := services.NewPartyService(partyStore, memory, audit, cfg.Party.PartyServiceConfig())
	require.NoError(t, err)

	relay, err := events.NewRelay(outbox, events.Fanout{
		notifier,
		events.PublisherFunc(parties.InvalidateEvents),
	})
	require.NoError(t, err)

	health := monitoring.NewHealthManager(time.Second)
	health.RegisterReadiness(checks.Database(db))
	health.RegisterReadiness(checks.Outbox(outbox, 1000))

	router, err := api.NewRouter(api.Dependencies{
		Config:        cfg,
		Tokens:        jwtSvc,
		Parties:       parties,
		Notifications: notifications,
		Health:        health,
		RateStore:     memory,
	})
	require.NoError(t, err)

	return &Env{
		T:             t,
		DB:            db,
		Router:        router,
		JWT:           jwtSvc,
		Config:        cfg,
		Cache:         memory,
		Parties:       parties,
		Notifications: notifications,
		Relay:         relay,
	}
}

// User is a test identity with a bearer token.
type User struct {
	ID    string
	Name  string
	Token string
}

// NewUser mints a token for a fresh user id.
func (e *Env) NewUser(name string) User {
	e.T.Helper()
	return e.UserWithID(uuid.NewString(), name)
}

// UserWithID mints a token for a caller-chosen user id.
func (e *Env) UserWithID(id, name string) User {
	e.T.Helper()
	token, err := e.JWT.IssueToken(iauth.Identity{UserID: id, DisplayName: name})
	require.NoError(e.T, err)
	return User{ID: id, Name: name, Token: token}
}

// FlushOutbox relays every pending event once.
func (e *Env) FlushOutbox() events.RelayStats {
	e.T.Helper()
	stats, err := e.Relay.RunOnce(e.T.Context())
	require.NoError(e.T, err)
	return stats
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	require.NotNil(t, dest)
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	buf := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// MustSucceed asserts the expected status and decodes the data payload into dest.
func MustSucceed[T any](e *Env, w *httptest.ResponseRecorder, status int, dest *T) {
	e.T.Helper()
	require.Equal(e.T, status, w.Code, w.Body.String())
	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())
	if dest != nil {
		DecodeInto(e.T, resp.Data, dest)
	}
}

// MustFail asserts the expected status and error code.
func MustFail(e *Env, w *httptest.ResponseRecorder, status int, code string) {
	e.T.Helper()
	require.Equal(e.T, status, w.Code, w.Body.String())
	resp := DecodeResponse(e.T, w)
	require.False(e.T, resp.Success)
	require.NotNil(e.T, resp.Error)
	require.Equal(e.T, code, resp.Error.Code)
}
