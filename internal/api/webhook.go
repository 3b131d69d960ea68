package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// WebhookAnnounce входящее событие с системным объявлением для игроков
const WebhookAnnounce = "server.announce"

// maxWebhookBody предел размера тела входящего webhook'а
const maxWebhookBody = 64 << 10

// WebhookEvent входящее webhook событие
type WebhookEvent struct {
	EventType string                 `json:"event_type"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Source    string                 `json:"source,omitempty"`
}

// WebhookConfig конфигурация входящих webhook'ов
type WebhookConfig struct {
	SecretKey        string
	RequireSignature bool
}

// WebhookHandler сопоставляет тип события с обработчиком
type WebhookHandler struct {
	config   WebhookConfig
	mu       sync.RWMutex
	handlers map[string]func(WebhookEvent) (string, error)
}

// NewWebhookHandler создаёт обработчик webhook'ов
func NewWebhookHandler(config WebhookConfig) *WebhookHandler {
	return &WebhookHandler{
		config:   config,
		handlers: make(map[string]func(WebhookEvent) (string, error)),
	}
}

// RegisterEventHandler регистрирует обработчик для типа события
func (wh *WebhookHandler) RegisterEventHandler(eventType string, handler func(WebhookEvent) (string, error)) {
	wh.mu.Lock()
	wh.handlers[eventType] = handler
	wh.mu.Unlock()
}

func (wh *WebhookHandler) handler(eventType string) (func(WebhookEvent) (string, error), bool) {
	wh.mu.RLock()
	defer wh.mu.RUnlock()
	h, ok := wh.handlers[eventType]
	return h, ok
}

// verify проверяет подпись "sha256=<hex>" тела запроса
func (wh *WebhookHandler) verify(body []byte, signature string) bool {
	if wh.config.SecretKey == "" {
		return !wh.config.RequireSignature
	}
	return hmac.Equal([]byte(signature), []byte(Sign(body, wh.config.SecretKey)))
}

// Sign HMAC-SHA256 подпись тела в формате заголовка X-Webhook-Signature
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// handleWebhook принимает подписанное событие от внешних сервисов
func (rs *RestServer) handleWebhook(c *gin.Context) {
	if !strings.Contains(c.GetHeader("Content-Type"), "application/json") {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Требуется Content-Type: application/json"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil || len(body) > maxWebhookBody {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Не удалось прочитать тело запроса"})
		return
	}

	if (rs.webhooks.config.SecretKey != "" || rs.webhooks.config.RequireSignature) &&
		!rs.webhooks.verify(body, c.GetHeader("X-Webhook-Signature")) {
		rs.logger.Warn("⚠️ Webhook от %s с неверной подписью", c.ClientIP())
		c.JSON(http.StatusUnauthorized, GenericResponse{Message: "Неверная подпись"})
		return
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil || event.EventType == "" {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный формат события"})
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	rs.logger.Info("📧 Webhook событие: %s от %s", event.EventType, c.ClientIP())

	h, ok := rs.webhooks.handler(event.EventType)
	if !ok {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Неизвестный тип события: " + event.EventType})
		return
	}
	details, err := h(event)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Webhook обработан",
		Data: gin.H{
			"event_id": fmt.Sprintf("%d_%s", event.Timestamp, event.EventType),
			"details":  details,
		},
	})
}

func (rs *RestServer) handleAnnounceEvent(event WebhookEvent) (string, error) {
	text, _ := event.Data["message"].(string)
	n, err := rs.announce(text)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Объявление доставлено %d соединениям", n), nil
}
