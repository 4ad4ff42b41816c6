package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockverse/internal/auth"
	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/schematic"
	"github.com/annel0/blockverse/internal/service"
	"github.com/annel0/blockverse/internal/storage"
	"github.com/annel0/blockverse/internal/vec"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "blockverse-api-logs")
	if err == nil {
		logging.LogDir = dir
	}
	code := m.Run()
	_ = logging.GetLoggerManager().CloseAll()
	os.RemoveAll(dir)
	os.Exit(code)
}

type testServer struct {
	rs       *RestServer
	handler  http.Handler
	bus      eventbus.EventBus
	webhooks *OutboundWebhookManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	users := auth.NewMemoryUserRepo()
	require.NoError(t, auth.EnsureAdmin(users, "admin", "adminpass"))
	hash, err := auth.HashPassword("userpass")
	require.NoError(t, err)
	_, err = users.CreateUser("user", hash, false)
	require.NoError(t, err)

	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)

	bus := eventbus.NewMemoryBus(64)
	svc, err := service.New(service.Options{
		Store:   storage.NewMemoryStore(),
		Catalog: storage.NewMemoryCatalog(),
		Bus:     bus,
		MaxDim:  32,
	})
	require.NoError(t, err)

	webhooks := NewOutboundWebhookManager("test", "test")
	rs, err := NewRestServer(Config{
		Authenticator: auth.NewAuthenticator(users, tokens),
		Schematics:    svc,
		Webhooks:      webhooks,
		Registry:      prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		webhooks.Close()
		_ = bus.Close()
	})
	return &testServer{rs: rs, handler: rs.Handler(), bus: bus, webhooks: webhooks}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		r = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

// decodeData разбирает GenericResponse и возвращает поле data
func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	require.True(t, resp.Success, w.Body.String())
	return resp.Data
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "blockverse_http_request_duration_seconds")
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "admin", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.NotEmpty(t, ts.login(t, "admin", "adminpass"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/schematics", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/schematics", "garbage", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := ts.login(t, "user", "userpass")
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/stats", token, nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/server", token, nil).Code)
}

func TestAdminRegister(t *testing.T) {
	ts := newTestServer(t)
	user := ts.login(t, "user", "userpass")
	admin := ts.login(t, "admin", "adminpass")

	req := RegisterRequest{Username: "builder", Password: "builderpass"}
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, "/api/admin/register", user, req).Code)
	assert.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/admin/register", admin, req).Code)
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, "/api/admin/register", admin, req).Code)

	weak := RegisterRequest{Username: "weakling", Password: "123"}
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/admin/register", admin, weak).Code)

	assert.NotEmpty(t, ts.login(t, "builder", "builderpass"))
}

func TestSchematicLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "user", "userpass")

	w := ts.do(t, http.MethodPost, "/api/schematics", token, CreateRequest{Name: "house", Size: vec.Vec3{X: 4, Y: 4, Z: 4}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sum := decodeData[schematic.Summary](t, w)
	assert.Equal(t, "user", sum.Author)
	base := "/api/schematics/" + sum.ID.String()
	cell := base + "/cells/1/1/1"

	w = ts.do(t, http.MethodPost, cell+"/block", token, BlockRequest{State: "chest[facing=north]"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, cell+"/offer", token, OfferRequest{Key: "blockverse:facing", Value: "east"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeData[ResultView](t, w)
	assert.Equal(t, "SUCCESS", res.Type)
	assert.Equal(t, "north", res.Replaced["blockverse:facing"])

	w = ts.do(t, http.MethodGet, cell, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decodeData[service.CellView](t, w)
	assert.Equal(t, "blockverse:chest[facing=east]", view.Block)
	assert.Equal(t, "blockverse:chest", view.Item["ItemType"])

	w = ts.do(t, http.MethodPost, cell+"/undo", token, UndoRequest{Replaced: res.Replaced})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SUCCESS", decodeData[ResultView](t, w).Type)

	w = ts.do(t, http.MethodPost, cell+"/block-entity", token, map[string]any{"Id": "blockverse:chest", "blockverse:custom_name": "Loot"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = ts.do(t, http.MethodPost, cell+"/remove", token, RemoveRequest{Key: "blockverse:custom_name"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SUCCESS", decodeData[ResultView](t, w).Type)

	w = ts.do(t, http.MethodPost, base+"/cells/2/1/1/copy", token, CopyRequest{From: vec.Vec3{X: 1, Y: 1, Z: 1}})
	require.Equal(t, http.StatusOK, w.Code)

	// Ошибки ввода
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, cell+"/offer", token, OfferRequest{Key: "blockverse:nope", Value: 1}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, cell+"/block", token, BlockRequest{State: "unobtainium"}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, base+"/cells/9/9/9", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, base+"/cells/a/1/1", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/schematics/not-a-uuid", token, nil).Code)

	// Неуспешная транзакция — не ошибка HTTP
	w = ts.do(t, http.MethodPost, base+"/cells/9/9/9/offer", token, OfferRequest{Key: "blockverse:facing", Value: "east"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "FAILURE", decodeData[ResultView](t, w).Type)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/save", token, nil).Code)

	w = ts.do(t, http.MethodGet, "/api/schematics?author=user", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeData[struct {
		Total int `json:"total"`
	}](t, w)
	assert.Equal(t, 1, list.Total)

	w = ts.do(t, http.MethodGet, base+"/export", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	exported := w.Body.Bytes()

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, base, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, base, token, nil).Code)

	w = ts.do(t, http.MethodPost, "/api/schematics/import", token, exported)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, sum.ID, decodeData[schematic.Summary](t, w).ID)

	w = ts.do(t, http.MethodGet, cell, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "blockverse:chest[facing=north]", decodeData[service.CellView](t, w).Block)

	w = ts.do(t, http.MethodGet, base+"/kit", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	kit := decodeData[service.Kit](t, w)
	require.NotEmpty(t, kit.Slots)
	assert.Equal(t, "hotbar", kit.Slots[0].Kind)
	assert.Equal(t, "blockverse:chest", kit.Slots[0].Item["ItemType"])

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/schematics/import", token, []byte("junk")).Code)
}

func TestGenerateEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "user", "userpass")

	noChest := false
	w := ts.do(t, http.MethodPost, "/api/schematics/generate", token, GenerateRequest{
		Name:  "hills",
		Seed:  7,
		Size:  vec.Vec3{X: 16, Y: 16, Z: 16},
		Chest: &noChest,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sum := decodeData[schematic.Summary](t, w)
	assert.Equal(t, "hills", sum.Name)
	assert.Zero(t, sum.BlockEntities)

	w = ts.do(t, http.MethodPost, "/api/schematics/generate", token, GenerateRequest{Size: vec.Vec3{X: 64, Y: 16, Z: 16}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOutboundWebhooksForwardBusEvents(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login(t, "admin", "adminpass")

	var mu sync.Mutex
	var received []OutboundWebhookEvent
	var signatures []string
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev OutboundWebhookEvent
		_ = json.NewDecoder(r.Body).Decode(&ev)
		mu.Lock()
		received = append(received, ev)
		signatures = append(signatures, r.Header.Get("X-Webhook-Signature"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	w := ts.do(t, http.MethodPost, "/api/admin/webhooks", admin, map[string]any{
		"name":   "ci",
		"url":    hook.URL,
		"secret": "s3cret",
		"events": []string{"schematic.saved"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/admin/webhooks/events", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, err := ts.webhooks.Forward(context.Background(), ts.bus)
	require.NoError(t, err)

	w = ts.do(t, http.MethodPost, "/api/schematics", admin, CreateRequest{Name: "hooked", Size: vec.Vec3{X: 2, Y: 2, Z: 2}})
	require.Equal(t, http.StatusCreated, w.Code)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "schematic.saved", received[0].EventType)
	assert.Equal(t, "hooked", received[0].Data["name"])
	assert.True(t, strings.HasPrefix(signatures[0], "sha256="))
	assert.NotEmpty(t, received[0].Schematic)
	mu.Unlock()

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/admin/webhooks/99", admin, nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/api/admin/webhooks/1", admin, nil).Code)
}

func TestWebhookSignature(t *testing.T) {
	body := []byte(`{"id":"1"}`)
	sig := Sign(body, "k")
	assert.True(t, strings.HasPrefix(sig, "sha256="))
	assert.True(t, VerifySignature(body, "k", sig))
	assert.False(t, VerifySignature(body, "other", sig))
	assert.False(t, VerifySignature([]byte(`{"id":"2"}`), "k", sig))
}

func TestWebhookRetriesAndFailureCount(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer hook.Close()

	m := NewOutboundWebhookManager("node", "test")
	m.backoff = time.Millisecond
	defer m.Close()

	w := m.AddWebhook(OutboundWebhook{Name: "flaky", URL: hook.URL, Events: []string{AnyEvent}, RetryCount: 2})
	m.dispatch(OutboundWebhookEvent{ID: "e1", EventType: "schematic.deleted", Data: map[string]interface{}{}})

	require.Eventually(t, func() bool {
		got := m.GetWebhook(w.ID)
		return got.FailureCount == 1 && got.LastUsed != nil
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 3, calls)
	mu.Unlock()

	// неактивный webhook не получает событий
	m.UpdateWebhook(w.ID, OutboundWebhook{RetryCount: -1, Active: false})
	m.dispatch(OutboundWebhookEvent{ID: "e2", EventType: "schematic.deleted"})
	assert.Empty(t, m.queue)
}
