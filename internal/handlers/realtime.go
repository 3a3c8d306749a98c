package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/partyfinder/internal/realtime"
	"github.com/charlesng35/partyfinder/pkg/errors"
	"github.com/charlesng35/partyfinder/pkg/response"
)

// RealtimeHandler upgrades authenticated requests to the realtime hub.
type RealtimeHandler struct {
	hub *realtime.Hub
}

func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Stream subscribes the connection to the streams named in the comma separated
// "streams" query, or to every known stream when it is absent.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var streams []string
	if raw := strings.TrimSpace(c.Query("streams")); raw != "" {
		streams = strings.Split(raw, ",")
	} else {
		streams = []string{realtime.StreamNotifications, realtime.StreamPartyApplications}
	}

	h.hub.Serve(userID, streams, c.Writer, c.Request)
}
