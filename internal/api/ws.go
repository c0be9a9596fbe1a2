package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/sdrbot-io/sdrbot/internal/apperr"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The widget is embedded on customer sites, so origins vary.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsFrame struct {
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
}

type wsReply struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
}

// handleWebsocket runs the chat loop over one websocket connection. Each
// inbound frame is a full chat turn; the session id rides along in the
// frames so reconnects can resume.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.logger.Info("websocket connected", "remote", conn.RemoteAddr().String())

	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		reply, err := s.svc.HandleMessage(r.Context(), frame.SessionID, frame.Message)
		if err != nil {
			msg := "Erro ao processar mensagem. Por favor, tente novamente."
			if apperr.HTTPStatus(err) < http.StatusInternalServerError {
				msg = err.Error()
			} else {
				s.logger.Error("websocket turn failed", "error", err)
			}
			if err := conn.WriteJSON(wsReply{SessionID: frame.SessionID, Error: msg}); err != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(wsReply{SessionID: reply.SessionID, Message: reply.Message}); err != nil {
			return
		}
	}
}
