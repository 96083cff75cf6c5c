package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sapliy/reminder-engine/internal/notification"
)

const (
	wsSendBuffer = 32
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// EventsWebSocket streams received and action-performed events to the client
// until it disconnects. Slow clients lose events rather than stall delivery.
func (s *Server) EventsWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade to WebSocket", "error", err)
		return
	}
	defer conn.Close()

	send := make(chan *notification.Event, wsSendBuffer)
	push := func(eventType notification.EventType, data any) {
		evt, err := notification.NewEvent(eventType, data)
		if err != nil {
			return
		}
		select {
		case send <- evt:
		default:
			s.logger.Warn("Dropping event for slow WebSocket client", "type", eventType)
		}
	}

	offReceived := s.listeners.OnReceived(func(ctx context.Context, data notification.ReceivedData) {
		push(notification.EventReceived, data)
	})
	defer offReceived()
	offAction := s.listeners.OnAction(func(ctx context.Context, data notification.ActionData) {
		push(notification.EventActionPerformed, data)
	})
	defer offAction()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case evt := <-send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				s.logger.Warn("Failed to send event", "error", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
