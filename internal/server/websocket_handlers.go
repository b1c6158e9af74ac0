package server

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"newsdesk/internal/models"
	"newsdesk/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	// wsTicketTTL bounds how long an issued ticket stays redeemable.
	wsTicketTTL = 30 * time.Second

	// consumedTicketGrace keeps a redeemed ticket valid in-process long
	// enough for the multi-pass upgrade handshake to finish.
	consumedTicketGrace = 30 * time.Second
)

// IssueWSTicket mints a short-lived single-use ticket the client exchanges
// for a websocket connection. Tokens never appear in websocket URLs.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(fmt.Errorf("live updates unavailable")))
	}

	userID := currentUserID(c)
	ticket := uuid.NewString()
	key := fmt.Sprintf("ws_ticket:%s", ticket)

	if err := s.redis.Set(c.Context(), key, strconv.FormatUint(uint64(userID), 10), wsTicketTTL).Err(); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}

// redeemWSTicket exchanges a ticket for its user ID. The ticket is consumed
// from Redis atomically on first use and cached in-process because the Fiber
// websocket upgrade runs the middleware chain more than once.
func (s *Server) redeemWSTicket(ctx context.Context, ticket string) (uint, bool) {
	s.consumedTicketsMu.Lock()
	if entry, ok := s.consumedTickets[ticket]; ok {
		s.consumedTicketsMu.Unlock()
		return entry.userID, true
	}
	s.consumedTicketsMu.Unlock()

	if s.redis == nil {
		return 0, false
	}

	key := fmt.Sprintf("ws_ticket:%s", ticket)
	userIDStr, err := s.redis.GetDel(ctx, key).Result()
	if err != nil {
		return 0, false
	}
	userID, err := strconv.ParseUint(userIDStr, 10, 32)
	if err != nil {
		return 0, false
	}

	s.consumedTicketsMu.Lock()
	now := time.Now()
	for t, entry := range s.consumedTickets {
		if now.Sub(entry.consumeAt) > consumedTicketGrace {
			delete(s.consumedTickets, t)
		}
	}
	s.consumedTickets[ticket] = consumedTicketEntry{userID: uint(userID), consumeAt: now}
	s.consumedTicketsMu.Unlock()

	return uint(userID), true
}

// consumeWSTicket drops a redeemed ticket from the in-process cache once the
// handshake no longer needs it.
func (s *Server) consumeWSTicket(_ context.Context, ticket any) {
	t, ok := ticket.(string)
	if !ok || t == "" {
		return
	}
	s.consumedTicketsMu.Lock()
	delete(s.consumedTickets, t)
	s.consumedTicketsMu.Unlock()
}

// WebsocketHandler upgrades the connection and streams the caller's
// notifications until the peer goes away.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			_ = conn.Close()
			return
		}
		userID, ok := userIDVal.(uint)
		if !ok {
			_ = conn.Close()
			return
		}

		s.consumeWSTicket(context.Background(), conn.Locals("wsTicket"))

		if s.hub == nil {
			_ = conn.Close()
			return
		}

		client := notifications.NewClient(s.hub, conn, userID)
		if err := s.hub.RegisterClient(client); err != nil {
			log.Printf("WebSocket: failed to register user %d: %v", userID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}
