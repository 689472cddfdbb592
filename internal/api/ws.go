package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// handleMCPWebSocket bridges the JSON-RPC dispatcher onto a WebSocket:
// each text frame carries one request, each reply frame one response.
func (s *Server) handleMCPWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.WSConnectionsAdd(1)
		defer s.metrics.WSConnectionsAdd(-1)
	}

	log.Info().Str("remote", r.RemoteAddr).Msg("WebSocket client connected")

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket read failed")
			}
			return
		}
		if s.metrics != nil {
			s.metrics.WSMessagesInc()
		}

		resp := s.dispatchRPC(r.Context(), payload)
		if err := conn.WriteJSON(resp); err != nil {
			log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket write failed")
			return
		}
	}
}
