package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"futures-core/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamedEvents are the topics forwarded to dashboard clients.
var streamedEvents = []events.Event{
	events.EventSignal,
	events.EventPositionOpened,
	events.EventPositionUpdated,
	events.EventPositionClosed,
	events.EventTradeRecorded,
	events.EventBalanceHealth,
}

type wsMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// websocket streams the caller's engine events. Browsers cannot set
// headers on WS connects, so the token travels as a query parameter.
func (s *Server) websocket(c *gin.Context) {
	tenantID, err := parseToken(c.Query("token"), s.JWTSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":  "INVALID_TOKEN",
			"error": "invalid or expired token",
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	merged := make(chan wsMessage, 256)
	for _, event := range streamedEvents {
		stream, unsub := s.Bus.Subscribe(event, 100)
		defer unsub()
		go func(event events.Event, stream <-chan any) {
			for msg := range stream {
				payload, ok := msg.(events.TenantPayload)
				if !ok || payload.TenantID != tenantID {
					continue
				}
				select {
				case merged <- wsMessage{Event: string(event), Data: payload.Data}:
				default:
				}
			}
		}(event, stream)
	}

	// Read pump: we never expect client messages, but reading is the only
	// way to notice a disconnect while the event stream is quiet.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case msg := <-merged:
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}
}
