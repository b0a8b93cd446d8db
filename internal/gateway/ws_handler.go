package gateway

import (
	"context"
	"net/http"

	"github.com/gurukulapp/heavenly-trial/internal/server"
	httperrors "github.com/gurukulapp/heavenly-trial/pkg/http/errors"
	"github.com/gurukulapp/heavenly-trial/pkg/http/ws"
)

// HandleWebSocket upgrades the HTTP connection and authenticates the player
// from the token query parameter.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Missing token")
		return
	}

	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket token validation failed")
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid token")
		return
	}

	conn, err := server.WSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	wsConn := ws.NewConnection(conn, h.logger)
	h.hub.RegisterConnection(claims.PlayerID, wsConn)

	go wsConn.WritePump()

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(context.Background(), claims, msg)
	})

	h.hub.UnregisterConnection(claims.PlayerID)
}
