package gateway

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"slate/internal/core/domain"
	"slate/internal/core/services"
	"slate/internal/infrastructure/middleware"
	"slate/internal/infrastructure/monitoring"
	"slate/internal/infrastructure/repositories/memory"
	"slate/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// One collector per test binary; the prometheus default registry rejects
// duplicate registration.
var testCollector = monitoring.NewPrometheusCollector()

func newTestGateway(t *testing.T) (string, services.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop().Sugar()
	cfg := config.DefaultConfig()
	cfg.Gateway.PingInterval = time.Minute
	cfg.Gateway.PongTimeout = 2 * time.Minute

	hub := NewHub(log)
	userRepo := memory.NewMemoryUserRepository()
	roomRepo := memory.NewMemoryRoomRepository()
	docRepo := memory.NewMemoryDocumentRepository()
	chatRepo := memory.NewMemoryChatRepository()
	presence := memory.NewMemoryPresenceStore(time.Minute)

	authService := services.NewAuthService("test-secret", time.Hour, true, userRepo, nil, log)
	planService := services.NewPlanService(userRepo)
	roomService := services.NewRoomService(roomRepo, userRepo, docRepo, presence, hub, planService, log)
	whiteboardService := services.NewWhiteboardService(docRepo, roomRepo, hub, services.WhiteboardConfig{}, log)
	chatService := services.NewChatService(chatRepo, hub, log)
	signalingService := services.NewSignalingService(hub, presence, planService, log)

	limiter := middleware.NewEventLimiter(cfg.RateLimiting.Events, nil, log)
	connLimiter := middleware.NewConnectionLimiter(memory.NewMemoryCounterStore(), 100, time.Minute, log)

	srv := NewServer(cfg, authService, roomService, whiteboardService, chatService, signalingService,
		hub, limiter, connLimiter, testCollector, log)

	router := gin.New()
	router.GET("/ws", srv.HandleWebSocket)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws", authService
}

func mintToken(t *testing.T, auth services.AuthService, id string) string {
	t.Helper()
	token, err := auth.GenerateToken(&domain.User{
		ID:          domain.IdentityID(id),
		DisplayName: id,
		Plan:        domain.PlanFree,
	}, "session-1")
	require.NoError(t, err)
	return token
}

// A client carrying its token in the query string must get the connected ack
// without sending a single frame first.
func TestConnect_QueryTokenNeedsNoFirstFrame(t *testing.T) {
	url, auth := newTestGateway(t)
	token := mintToken(t, auth, "user-1")

	client, _, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env OutboundEnvelope
	require.NoError(t, client.ReadJSON(&env))
	assert.Equal(t, EventConnected, env.Event)
}

func TestConnect_AuthenticateFrameCarriesToken(t *testing.T) {
	url, auth := newTestGateway(t)
	token := mintToken(t, auth, "user-2")

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.WriteJSON(map[string]any{
		"event":   EventAuthenticate,
		"payload": map[string]string{"token": token},
	}))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env OutboundEnvelope
	require.NoError(t, client.ReadJSON(&env))
	assert.Equal(t, EventConnected, env.Event)
}

func TestConnect_BadTokenRejected(t *testing.T) {
	url, _ := newTestGateway(t)

	client, _, err := websocket.DefaultDialer.Dial(url+"?token=garbage", nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env OutboundEnvelope
	require.NoError(t, client.ReadJSON(&env))
	assert.Equal(t, EventError, env.Event)

	// The server closes right after the error frame.
	_, _, readErr := client.ReadMessage()
	assert.Error(t, readErr)
}
