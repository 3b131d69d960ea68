package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type createWebhookRequest struct {
	Name       string   `json:"name" binding:"required"`
	URL        string   `json:"url" binding:"required"`
	Secret     string   `json:"secret"`
	Events     []string `json:"events" binding:"required"`
	Timeout    int      `json:"timeout"`
	RetryCount int      `json:"retry_count"`
}

func (rs *RestServer) handleGetOutboundWebhooks(c *gin.Context) {
	hooks := rs.outbound.GetWebhooks()
	for i := range hooks {
		if hooks[i].Secret != "" {
			hooks[i].Secret = "***"
		}
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: hooks})
}

func (rs *RestServer) handleCreateOutboundWebhook(c *gin.Context) {
	var req createWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный формат запроса"})
		return
	}
	hook, err := rs.outbound.AddWebhook(OutboundWebhook{
		Name:       req.Name,
		URL:        req.URL,
		Secret:     req.Secret,
		Events:     req.Events,
		Timeout:    req.Timeout,
		RetryCount: req.RetryCount,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: err.Error()})
		return
	}
	rs.logger.Info("🪝 Добавлен webhook %d (%s) на %v", hook.ID, hook.Name, hook.Events)
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Webhook создан", Data: hook})
}

func (rs *RestServer) handleDeleteOutboundWebhook(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный ID"})
		return
	}
	if !rs.outbound.DeleteWebhook(id) {
		c.JSON(http.StatusNotFound, GenericResponse{Message: "Webhook не найден"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Webhook удалён"})
}

func (rs *RestServer) handleGetWebhookEventTypes(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: EventTypes()})
}
