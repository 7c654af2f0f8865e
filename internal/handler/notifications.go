package handler

import (
	"net/http"

	"pricewatch/internal/apierror"
	"pricewatch/internal/repository"
	"pricewatch/internal/worker"

	"github.com/gin-gonic/gin"
)

type NotificationsHandler struct {
	settings  repository.SettingsRepository
	notifiers worker.NotifierFactory
}

func NewNotificationsHandler(settings repository.SettingsRepository, notifiers worker.NotifierFactory) *NotificationsHandler {
	return &NotificationsHandler{settings: settings, notifiers: notifiers}
}

// Test sends a probe message through every configured channel so the user
// can verify credentials before relying on alerts.
func (h *NotificationsHandler) Test(c *gin.Context) {
	st, err := h.settings.Get(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to load settings"))
		return
	}

	channels := h.notifiers(st)
	if len(channels) == 0 {
		c.JSON(http.StatusBadRequest, apierror.New("no notification channel configured"))
		return
	}

	sent := 0
	var lastErr error
	for _, n := range channels {
		if err := n.Send("Price watch test", "Notifications are working.", ""); err != nil {
			lastErr = err
			continue
		}
		sent++
	}
	if sent == 0 {
		c.JSON(http.StatusBadGateway, apierror.New("test notification failed: "+lastErr.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": sent, "channels": len(channels)})
}
