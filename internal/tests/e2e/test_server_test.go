package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/app"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/config"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/infrastructure/cache"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/mocks"
)

// TestServer is the full application behind an httptest server, backed by
// in-memory SQLite and miniredis
type TestServer struct {
	Server    *httptest.Server
	Client    *http.Client
	Container *app.Container
	Notifier  *mocks.MockOTPNotifier
	Redis     *miniredis.Miniredis
}

// NewTestServer starts a server; everything is torn down with the test
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	file := config.Defaults()
	file.JWT.Secret = "e2e-secret-at-least-16-bytes"
	file.RateLimit.RequestsPerSecond = 1000
	file.RateLimit.Burst = 1000
	cfg, err := config.Build(file)
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	c := cache.NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))

	notifier := mocks.NewMockOTPNotifier()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	container, err := app.Assemble(cfg, log, db, c, notifier)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	t.Cleanup(func() { container.Close() })

	router, _, err := container.Router()
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, _ := cookiejar.New(nil)
	return &TestServer{
		Server:    server,
		Client:    &http.Client{Jar: jar},
		Container: container,
		Notifier:  notifier,
		Redis:     mr,
	}
}

// Response is a decoded JSON envelope
type Response struct {
	Status int
	Data   map[string]any
	Error  string
	Header http.Header
}

// Do sends a JSON request, with an optional bearer token
func (s *TestServer) Do(t *testing.T, method, path string, body any, bearer string) Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.Server.URL+path, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Data  map[string]any `json:"data"`
		Error string         `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil && err != io.EOF {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return Response{Status: resp.StatusCode, Data: envelope.Data, Error: envelope.Error, Header: resp.Header}
}

// ClearCookies forgets every cookie the server has set
func (s *TestServer) ClearCookies() {
	jar, _ := cookiejar.New(nil)
	s.Client.Jar = jar
}
