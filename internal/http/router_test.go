package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/velora-ai/chat-backend/internal/auth"
	"github.com/velora-ai/chat-backend/internal/config"
	"github.com/velora-ai/chat-backend/internal/domain"
	"github.com/velora-ai/chat-backend/internal/llm"
)

// --- canned generation client ---

type fakeClient struct {
	err error
}

func (f fakeClient) Generate(ctx context.Context, kind, prompt string) (*llm.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	res := &llm.Result{Text: "echo: " + prompt, ModelName: "fake-model"}
	if kind == domain.KindImageDescription {
		url := "https://image.pollinations.ai/prompt/x?seed=1"
		res.ImageURL = &url
	}
	return res, nil
}

// --- test DB helper (pure-Go sqlite, no CGO) ---

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:routerdb_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.ChatRecord{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		Env:         "test",
		RateRPS:     1000,
		RateBurst:   100,
		CORS:        config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:    config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestRouter(t *testing.T, client llm.Client) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	tokens := auth.NewManager("0123456789abcdef0123456789abcdef", time.Hour)
	RegisterRoutes(r, newTestDB(t), client, tokens, testConfig())
	return r
}

// registerUser creates an account through the public API and returns a
// usable bearer token.
func registerUser(t *testing.T, r *gin.Engine, username, email string) string {
	t.Helper()
	w := httptest.NewRecorder()
	body := fmt.Sprintf(`{"username":%q,"email":%q,"password":"longenough"}`, username, email)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("register = %d body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil || out.Token == "" {
		t.Fatalf("register token: err=%v body=%s", err, w.Body.String())
	}
	return out.Token
}

func registerAndLogin(t *testing.T, r *gin.Engine) string {
	t.Helper()
	return registerUser(t, r, "ada", "ada@example.com")
}

func TestRegisterRoutes_Health_Metrics_Fallbacks(t *testing.T) {
	r := newTestRouter(t, fakeClient{})

	// /health works
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404 naming the method and path
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "GET") || !strings.Contains(w.Body.String(), "/nope") {
		t.Fatalf("404 body should name method and path: %s", w.Body.String())
	}

	// NoMethod → 405 (DELETE /health)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_AuthGate(t *testing.T) {
	r := newTestRouter(t, fakeClient{})

	// No token → 401 before any work happens.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/text", bytes.NewBufferString(`{"prompt":"hi"}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token = %d", w.Code)
	}

	// Garbage token → 401.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/chat/text", bytes.NewBufferString(`{"prompt":"hi"}`))
	req.Header.Set("Authorization", "Bearer not-a-token")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token = %d", w.Code)
	}

	// Public endpoints stay reachable without a token.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(`{"email":"x@y.dev","password":"nope1234"}`))
	r.ServeHTTP(w, req)
	if w.Code == http.StatusNotFound {
		t.Fatalf("login route missing: %d", w.Code)
	}
}

func TestRegisterRoutes_EndToEndChatFlow(t *testing.T) {
	r := newTestRouter(t, fakeClient{})
	token := registerAndLogin(t, r)

	authed := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		var req *http.Request
		if body != "" {
			req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		} else {
			req = httptest.NewRequest(method, path, nil)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		return w
	}

	// Generate a text answer.
	w := authed(http.MethodPost, "/api/v1/chat/text", `{"prompt":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("chat/text = %d body=%s", w.Code, w.Body.String())
	}
	var rec domain.ChatRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("json: %v", err)
	}
	if rec.Response != "echo: hello" || rec.Kind != domain.KindText {
		t.Fatalf("record = %#v", rec)
	}

	// Generate an image description.
	w = authed(http.MethodPost, "/api/v1/chat/image", `{"prompt":"a fox"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("chat/image = %d body=%s", w.Code, w.Body.String())
	}

	// Both show up in history, newest first.
	w = authed(http.MethodGet, "/api/v1/chat/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("history = %d body=%s", w.Code, w.Body.String())
	}
	var hist struct {
		Chats      []domain.ChatRecord `json:"chats"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &hist); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(hist.Chats) != 2 || hist.Pagination.Total != 2 {
		t.Fatalf("history = %#v", hist)
	}

	// Delete one, then the same delete is a 404.
	id := hist.Chats[0].ID
	w = authed(http.MethodDelete, "/api/v1/chat/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d body=%s", w.Code, w.Body.String())
	}
	w = authed(http.MethodDelete, "/api/v1/chat/"+id, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("replayed delete = %d", w.Code)
	}
}

func TestRegisterRoutes_UpstreamFailureDoesNotPersist(t *testing.T) {
	r := newTestRouter(t, fakeClient{err: &llm.UpstreamError{Status: http.StatusTooManyRequests, Message: "quota exceeded"}})
	token := registerAndLogin(t, r)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/text", bytes.NewBufferString(`{"prompt":"hi"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("upstream 429 = %d body=%s", w.Code, w.Body.String())
	}

	// The failed exchange must not appear in history.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/chat/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("history = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"total":0`) {
		t.Fatalf("failed generation persisted: %s", w.Body.String())
	}
}

func TestRegisterRoutes_RateLimitKeysByUserOnAuthedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	cfg.RateRPS = 0 // no refill: each bucket admits exactly RateBurst requests
	cfg.RateBurst = 2
	tokens := auth.NewManager("0123456789abcdef0123456789abcdef", time.Hour)
	RegisterRoutes(r, newTestDB(t), fakeClient{}, tokens, cfg)

	// Both registrations share the client-IP bucket (burst 2).
	tokenA := registerUser(t, r, "ada", "ada@example.com")
	tokenB := registerUser(t, r, "bob", "bob@example.com")

	history := func(token string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/history", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		return w.Code
	}

	// Ada gets her own bucket: two requests pass, the third is limited.
	if got := history(tokenA); got != http.StatusOK {
		t.Fatalf("ada #1 = %d; want 200", got)
	}
	if got := history(tokenA); got != http.StatusOK {
		t.Fatalf("ada #2 = %d; want 200", got)
	}
	if got := history(tokenA); got != http.StatusTooManyRequests {
		t.Fatalf("ada #3 = %d; want 429", got)
	}

	// Bob shares Ada's IP but not her bucket.
	if got := history(tokenB); got != http.StatusOK {
		t.Fatalf("bob #1 = %d; want 200", got)
	}

	// The exhausted IP bucket still limits the public endpoints.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(`{"email":"ada@example.com","password":"longenough"}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("public request after ip bucket drained = %d; want 429", w.Code)
	}
}

func TestRegisterRoutes_CORSAllowlistBranch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"https://app.example.com"}
	tokens := auth.NewManager("0123456789abcdef0123456789abcdef", time.Hour)
	RegisterRoutes(r, newTestDB(t), fakeClient{}, tokens, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allowlisted origin not echoed, got %q", got)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got == "https://evil.example.com" {
		t.Fatalf("foreign origin echoed: %q", got)
	}
}

func Test_limitBody_and_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Oversized body errors on read.
	r := gin.New()
	r.Use(limitBody(8))
	r.POST("/x", func(c *gin.Context) {
		var v map[string]any
		if err := c.ShouldBindJSON(&v); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", bytes.NewBufferString(`{"k":"`+strings.Repeat("a", 64)+`"}`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("oversized body = %d", w.Code)
	}

	// Prefix handling.
	if g := groupWithPrefix(gin.New(), ""); g.BasePath() != "/" {
		t.Fatalf("empty prefix = %q", g.BasePath())
	}
	if g := groupWithPrefix(gin.New(), "/api/v1"); g.BasePath() != "/api/v1" {
		t.Fatalf("prefix = %q", g.BasePath())
	}
}
