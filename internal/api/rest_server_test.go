package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/eldara-server/internal/auth"
	"github.com/annel0/eldara-server/internal/eventbus"
	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/protocol"
	"github.com/annel0/eldara-server/internal/session"
	"github.com/annel0/eldara-server/internal/world/zone"
)

type fakeConn struct {
	id   uint64
	mu   sync.Mutex
	sent []protocol.Packet
}

func (c *fakeConn) ID() uint64         { return c.id }
func (c *fakeConn) RemoteAddr() string { return "test" }
func (c *fakeConn) Send(p protocol.Packet) bool {
	c.mu.Lock()
	c.sent = append(c.sent, p)
	c.mu.Unlock()
	return true
}

func (c *fakeConn) packets() []protocol.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Packet(nil), c.sent...)
}

type fixture struct {
	rs     *RestServer
	repo   *auth.MemoryUserRepo
	router *session.Router
	bus    eventbus.EventBus
}

func newFixture(t *testing.T, webhooks WebhookConfig) *fixture {
	t.Helper()
	repo := auth.NewMemoryUserRepo()
	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	router := session.NewRouter()
	bus := eventbus.NewMemoryBus(64)
	t.Cleanup(func() { bus.Close() })

	rs := NewRestServer(Config{
		ServerName: "eldara-test",
		MaxPlayers: 10,
		Auth:       auth.NewAuthenticator(repo, tokens, true),
		World: WorldSource{
			Router: router,
			Zones:  zone.NewDirectory(),
			Bus:    bus,
		},
		Webhooks: webhooks,
	})
	return &fixture{rs: rs, repo: repo, router: router, bus: bus}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, GenericResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.rs.Handler().ServeHTTP(w, req)

	var resp GenericResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func (f *fixture) login(t *testing.T, username, password string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(LoginRequest{Username: username, Password: password}))
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.rs.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (f *fixture) adminToken(t *testing.T) string {
	t.Helper()
	hash, err := auth.HashPassword("root-pass")
	require.NoError(t, err)
	_, err = f.repo.CreateUser(context.Background(), "warden", hash, true)
	require.NoError(t, err)
	return f.login(t, "warden", "root-pass")
}

func TestHealth(t *testing.T) {
	f := newFixture(t, WebhookConfig{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	f.rs.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
}

func TestLogin(t *testing.T) {
	f := newFixture(t, WebhookConfig{})

	token := f.login(t, "sylwen", "moonlight")
	assert.Equal(t, 1, f.repo.Count(), "первый вход регистрирует учётную запись")

	claims, err := f.rs.cfg.Auth.Tokens().Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "sylwen", claims.Username)

	w, _ := f.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "sylwen", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "x!", Password: "whatever"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "only"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorldEndpointsRequireToken(t *testing.T) {
	f := newFixture(t, WebhookConfig{})

	for _, path := range []string{"/api/world/status", "/api/world/zones", "/api/world/players"} {
		w, _ := f.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)

		w, _ = f.do(t, http.MethodGet, path, "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestWorldStatusAndZones(t *testing.T) {
	f := newFixture(t, WebhookConfig{})
	token := f.login(t, "thalor", "ironforge")

	conn := &fakeConn{id: 1}
	f.router.Register(conn)
	require.NoError(t, f.router.Authenticate(1, 1, "thalor"))
	require.True(t, f.router.Attach(1, 500, 9, gamedata.ZoneThornveilEnclave))

	w, resp := f.do(t, http.MethodGet, "/api/world/status", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "eldara-test", data["server"])
	assert.EqualValues(t, 1, data["players_online"])
	assert.Contains(t, data, "process")
	assert.Contains(t, data, "event_bus")

	w, _ = f.do(t, http.MethodGet, "/api/world/zones", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var zones struct {
		Data []ZoneInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &zones))
	assert.Len(t, zones.Data, zone.NewDirectory().Count())
	for _, z := range zones.Data {
		if z.ID == gamedata.ZoneThornveilEnclave {
			assert.Equal(t, 1, z.Players)
		}
	}

	w, resp = f.do(t, http.MethodGet, "/api/world/players", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp.Data, "без менеджера сущностей список пуст")
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t, WebhookConfig{})
	conn := &fakeConn{id: 7}
	f.router.Register(conn)
	f.router.Attach(7, 70, 1, gamedata.ZoneThornveilEnclave)

	player := f.login(t, "kaelen", "starlight")
	w, _ := f.do(t, http.MethodPost, "/api/admin/announce", player, announceRequest{Message: "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := f.adminToken(t)
	w, resp := f.do(t, http.MethodPost, "/api/admin/announce", admin, announceRequest{Message: "Рассвет над Элдарой"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, resp.Success)

	sent := conn.packets()
	require.Len(t, sent, 1)
	msg, ok := sent[0].(*protocol.ChatMessage)
	require.True(t, ok)
	assert.Equal(t, protocol.ChatSystem, msg.Channel)
	assert.Equal(t, "Рассвет над Элдарой", msg.Message)

	w, _ = f.do(t, http.MethodPost, "/api/admin/announce", admin, announceRequest{Message: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = f.do(t, http.MethodPost, "/api/admin/webhooks", admin, createWebhookRequest{
		Name: "discord", URL: "https://example.invalid/hook", Secret: "s", Events: []string{"*"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = f.do(t, http.MethodPost, "/api/admin/webhooks", admin, createWebhookRequest{
		Name: "bad", URL: "ftp://nope", Events: []string{"*"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/admin/webhooks", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"secret":"***"`)

	w, _ = f.do(t, http.MethodDelete, "/api/admin/webhooks/1", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = f.do(t, http.MethodDelete, "/api/admin/webhooks/1", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInboundWebhookSignature(t *testing.T) {
	f := newFixture(t, WebhookConfig{SecretKey: "hook-secret", RequireSignature: true})
	conn := &fakeConn{id: 3}
	f.router.Register(conn)
	f.router.Attach(3, 30, 1, gamedata.ZoneBorderkeep)

	body, err := json.Marshal(WebhookEvent{EventType: WebhookAnnounce, Data: map[string]interface{}{"message": "Техработы через 5 минут"}})
	require.NoError(t, err)

	send := func(signature string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/webhook", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if signature != "" {
			req.Header.Set("X-Webhook-Signature", signature)
		}
		w := httptest.NewRecorder()
		f.rs.Handler().ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, send(""))
	assert.Equal(t, http.StatusUnauthorized, send(Sign(body, "wrong")))
	assert.Empty(t, conn.packets())

	assert.Equal(t, http.StatusOK, send(Sign(body, "hook-secret")))
	require.Len(t, conn.packets(), 1)
}

func TestOutboundWebhookForwardsBusEvents(t *testing.T) {
	received := make(chan OutboundWebhookEvent, 4)
	var signature string
	var sigMu sync.Mutex
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev OutboundWebhookEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err == nil {
			sigMu.Lock()
			signature = r.Header.Get("X-Webhook-Signature")
			sigMu.Unlock()
			received <- ev
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer target.Close()

	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()

	owm := NewOutboundWebhookManager("eldara-test", bus)
	require.NoError(t, owm.Start())
	defer owm.Stop()

	_, err := owm.AddWebhook(OutboundWebhook{
		Name:   "quests",
		URL:    target.URL,
		Secret: "s3",
		Events: []string{eventbus.EventQuestCompleted},
	})
	require.NoError(t, err)

	require.NoError(t, eventbus.Emit(bus, "test", eventbus.EventChatMessage, 1, map[string]string{"m": "ignored"}))
	require.NoError(t, eventbus.Emit(bus, "test", eventbus.EventQuestCompleted, 3,
		eventbus.QuestEvent{CharacterID: 4, QuestID: 1, Title: "Whispers in the Grove"}))

	select {
	case ev := <-received:
		assert.Equal(t, eventbus.EventQuestCompleted, ev.EventType)
		assert.Equal(t, "eldara-test", ev.ServerID)
		var q eventbus.QuestEvent
		require.NoError(t, json.Unmarshal(ev.Data, &q))
		assert.Equal(t, 1, q.QuestID)
	case <-time.After(3 * time.Second):
		t.Fatal("webhook не получил событие")
	}

	sigMu.Lock()
	assert.Contains(t, signature, "sha256=")
	sigMu.Unlock()

	select {
	case ev := <-received:
		t.Fatalf("лишнее событие %s", ev.EventType)
	case <-time.After(100 * time.Millisecond):
	}
}
