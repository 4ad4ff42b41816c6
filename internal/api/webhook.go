package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func webhookID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "Неверный ID webhook'а")
		return 0, false
	}
	return id, true
}

// handleGetOutboundWebhooks возвращает список исходящих webhook'ов
func (rs *RestServer) handleGetOutboundWebhooks(c *gin.Context) {
	webhooks := rs.webhooks.GetWebhooks()
	respond(c, http.StatusOK, "Список webhook'ов получен", gin.H{
		"webhooks": webhooks,
		"total":    len(webhooks),
	})
}

// handleCreateOutboundWebhook создает новый исходящий webhook
func (rs *RestServer) handleCreateOutboundWebhook(c *gin.Context) {
	var webhook OutboundWebhook
	if err := c.ShouldBindJSON(&webhook); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат webhook'а: "+err.Error())
		return
	}
	if webhook.Name == "" || webhook.URL == "" || len(webhook.Events) == 0 {
		fail(c, http.StatusBadRequest, "Обязательные поля: name, url, events")
		return
	}
	respond(c, http.StatusCreated, "Webhook создан успешно", rs.webhooks.AddWebhook(webhook))
}

// handleGetOutboundWebhook возвращает webhook по ID
func (rs *RestServer) handleGetOutboundWebhook(c *gin.Context) {
	id, valid := webhookID(c)
	if !valid {
		return
	}
	webhook := rs.webhooks.GetWebhook(id)
	if webhook == nil {
		fail(c, http.StatusNotFound, "Webhook не найден")
		return
	}
	respond(c, http.StatusOK, "Webhook найден", webhook)
}

// handleUpdateOutboundWebhook обновляет webhook
func (rs *RestServer) handleUpdateOutboundWebhook(c *gin.Context) {
	id, valid := webhookID(c)
	if !valid {
		return
	}
	// Привязка без binding:"required" — обновление частичное
	var updates struct {
		Name       string   `json:"name"`
		URL        string   `json:"url"`
		Secret     string   `json:"secret"`
		Events     []string `json:"events"`
		Active     bool     `json:"active"`
		Timeout    int      `json:"timeout"`
		RetryCount *int     `json:"retry_count"`
	}
	if err := c.ShouldBindJSON(&updates); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат обновлений: "+err.Error())
		return
	}
	patch := OutboundWebhook{
		Name:       updates.Name,
		URL:        updates.URL,
		Secret:     updates.Secret,
		Events:     updates.Events,
		Active:     updates.Active,
		Timeout:    updates.Timeout,
		RetryCount: -1,
	}
	if updates.RetryCount != nil {
		patch.RetryCount = *updates.RetryCount
	}

	updated := rs.webhooks.UpdateWebhook(id, patch)
	if updated == nil {
		fail(c, http.StatusNotFound, "Webhook не найден")
		return
	}
	respond(c, http.StatusOK, "Webhook обновлен успешно", updated)
}

// handleDeleteOutboundWebhook удаляет webhook
func (rs *RestServer) handleDeleteOutboundWebhook(c *gin.Context) {
	id, valid := webhookID(c)
	if !valid {
		return
	}
	if !rs.webhooks.DeleteWebhook(id) {
		fail(c, http.StatusNotFound, "Webhook не найден")
		return
	}
	respond(c, http.StatusOK, "Webhook удален успешно", nil)
}

// handleGetWebhookEventTypes возвращает доступные типы событий
func (rs *RestServer) handleGetWebhookEventTypes(c *gin.Context) {
	eventTypes := rs.webhooks.GetEventTypes()
	respond(c, http.StatusOK, "Типы событий получены", gin.H{
		"event_types": eventTypes,
		"total":       len(eventTypes),
	})
}
