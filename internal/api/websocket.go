package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/drireneleemd/mri-safety/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is enforced at the HTTP layer; the socket accepts any origin
		return true
	},
}

// wsMessage is the envelope for every frame sent to the client
type wsMessage struct {
	Type     string                `json:"type"` // "progress", "done", "error"
	Event    *domain.ProgressEvent `json:"event,omitempty"`
	ReportID string                `json:"report_id,omitempty"`
	Result   *domain.BatchResult   `json:"result,omitempty"`
	Message  string                `json:"message,omitempty"`
}

// handleBatchWS runs a batch while streaming per-patient progress frames
// over a websocket. The client sends one BatchRequest JSON message, then
// receives "progress" frames followed by a terminal "done" or "error".
func (s *Server) handleBatchWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	var req domain.BatchRequest
	if err := conn.ReadJSON(&req); err != nil {
		conn.WriteJSON(wsMessage{Type: "error", Message: "invalid request: " + err.Error()})
		return
	}

	// Gorilla connections allow only one concurrent writer
	var writeMu sync.Mutex
	send := func(msg wsMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.WithError(err).Debug("Websocket write failed")
		}
	}

	progress := func(event domain.ProgressEvent) {
		ev := event
		send(wsMessage{Type: "progress", Event: &ev})
	}

	result, err := s.pipeline.Processor.Run(c.Request.Context(), req.MRNs, req.Mode, progress)
	if err != nil {
		send(wsMessage{Type: "error", Message: err.Error()})
		return
	}

	s.store.Put(result)
	send(wsMessage{Type: "done", ReportID: result.ReportID, Result: result})

	s.logger.WithFields(logrus.Fields{
		"report_id": result.ReportID,
		"mode":      result.Mode,
		"patients":  result.SubmittedCount,
	}).Info("Websocket batch completed")
}
