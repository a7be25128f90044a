package httpserver

import (
	"encoding/json"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gin-gonic/gin"
)

// webhook accepts Telegram callback deliveries and hands them to the
// bot's shared update handler. The payload stays opaque to this layer
// beyond decoding the Update envelope.
func (srv *HTTPServer) webhook(c *gin.Context) {
	var update tgbotapi.Update
	if err := json.NewDecoder(c.Request.Body).Decode(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update payload"})
		return
	}

	srv.dispatcher.HandleUpdate(c.Request.Context(), update)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
