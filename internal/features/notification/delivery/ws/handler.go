package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"friend-connect-backend/internal/common/auth"
	"friend-connect-backend/internal/common/errors"
	"friend-connect-backend/internal/common/middleware"
	"friend-connect-backend/internal/features/notification/models"
	"friend-connect-backend/internal/features/notification/service"
)

const announceTimeout = 10 * time.Second

// Handler serves the live notification channel.
type Handler struct {
	dispatcher *service.Dispatcher
	tokens     *auth.Tokens
	upgrader   websocket.Upgrader
	sendBuffer int
	logger     zerolog.Logger
}

// NewHandler accepts browser connections from allowedOrigin ("*" for any).
func NewHandler(dispatcher *service.Dispatcher, tokens *auth.Tokens, allowedOrigin string, sendBuffer int, logger zerolog.Logger) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		tokens:     tokens,
		sendBuffer: sendBuffer,
		logger:     logger.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || strings.EqualFold(origin, allowedOrigin)
			},
		},
	}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/ws", h.serve)
}

// @Summary Live notification channel
// @Description Websocket. Announce with {"event":"user_connected","data":"<user id>"}.
// @Tags notifications
// @Param token query string false "Bearer token, if not sent as a header"
// @Router /ws [get]
func (h *Handler) serve(c *gin.Context) {
	raw := middleware.TokenFromRequest(c)
	if raw == "" {
		raw = c.Query("token")
	}
	if raw == "" {
		_ = c.Error(errors.NewUnauthorizedError("missing token"))
		return
	}
	subject, err := h.tokens.Verify(raw)
	if err != nil {
		_ = c.Error(errors.Wrap(err, errors.ErrCodeUnauthorized, "Unauthorized: invalid token"))
		return
	}

	socket, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader already wrote the response.
		h.logger.Warn().Err(err).Str("user_id", subject).Msg("Websocket upgrade failed")
		return
	}

	ch := newConn(socket, h.sendBuffer, h.logger)
	go ch.writePump()
	defer func() {
		h.dispatcher.Disconnect(ch)
		_ = ch.Close()
	}()

	h.readPump(c.Request.Context(), ch, subject)
}

func (h *Handler) readPump(ctx context.Context, ch *conn, subject string) {
	ch.ws.SetReadLimit(maxMessageSize)
	_ = ch.ws.SetReadDeadline(time.Now().Add(pongWait))
	ch.ws.SetPongHandler(func(string) error {
		return ch.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame models.InboundFrame
		if err := ch.ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug().Err(err).Str("user_id", subject).Msg("Websocket closed unexpectedly")
			}
			return
		}
		_ = ch.ws.SetReadDeadline(time.Now().Add(pongWait))

		switch frame.Event {
		case models.EventUserConnected:
			if !h.announce(ctx, ch, subject, frame.Data) {
				return
			}
		default:
			_ = ch.Send(models.ErrorFrame("unknown event " + frame.Event))
		}
	}
}

// announce registers the channel for the announced user. It reports whether
// the connection should stay open.
func (h *Handler) announce(ctx context.Context, ch *conn, subject string, data json.RawMessage) bool {
	var userID string
	if err := json.Unmarshal(data, &userID); err != nil || userID == "" {
		_ = ch.Send(models.ErrorFrame("user_connected expects the user id as payload"))
		return true
	}
	if userID != subject {
		h.logger.Warn().Str("user_id", subject).Str("announced", userID).Msg("Announced identity does not match token")
		_ = ch.Send(models.ErrorFrame("announced user does not match token"))
		return false
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), announceTimeout)
	defer cancel()
	if err := h.dispatcher.Connect(ctx, userID, ch); err != nil {
		appErr, ok := errors.AsAppError(err)
		if !ok || appErr.IsInternal() {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to register live channel")
			_ = ch.Send(models.ErrorFrame("could not register connection"))
			return true
		}
		_ = ch.Send(models.ErrorFrame(appErr.Message))
		// A deleted account cannot come back on this connection.
		return !appErr.IsNotFound()
	}
	return true
}
