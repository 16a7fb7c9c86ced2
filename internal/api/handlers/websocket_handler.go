package handlers

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/contentpulse/backend/internal/insights"
	"github.com/contentpulse/backend/internal/report"
	"github.com/contentpulse/backend/pkg/logger"
)

// streamChunkSize is the approximate chunk length sent per frame. Chunks
// break on word boundaries so the client can append them verbatim.
const streamChunkSize = 64

// Assistant answers a question against a pre-rendered report context.
type Assistant interface {
	AssistantReply(ctx context.Context, question, reportContext string) (string, error)
}

// ReportViewer loads a stored report for the assistant to speak to.
type ReportViewer interface {
	Get(id string) (*report.View, error)
}

type WebSocketHandler struct {
	reports   ReportViewer
	assistant Assistant
}

func NewWebSocketHandler(reports ReportViewer, assistant Assistant) *WebSocketHandler {
	return &WebSocketHandler{
		reports:   reports,
		assistant: assistant,
	}
}

// HandleConnection serves one assistant session. The client sends question
// frames naming a stored report; the answer streams back as chunk frames
// followed by a complete frame.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("Assistant connection established")

	defer func() {
		c.Close()
		logger.Info("Assistant connection closed")
	}()

	for {
		var msg struct {
			Type     string `json:"type"`
			ReportID string `json:"report_id"`
			Content  string `json:"content"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("Assistant read ended", zap.Error(err))
			break
		}

		if msg.Type != "question" {
			continue
		}
		if msg.ReportID == "" || msg.Content == "" {
			h.sendError(c, "report_id and content are required")
			continue
		}

		logger.Info("Answering report question",
			zap.String("report_id", msg.ReportID),
			zap.Int("question_length", len(msg.Content)),
		)

		if err := h.answer(c, msg.ReportID, msg.Content); err != nil {
			logger.Error("Failed to answer question",
				zap.String("report_id", msg.ReportID),
				zap.Error(err),
			)
			h.sendError(c, "Failed to answer question")
		}
	}
}

func (h *WebSocketHandler) answer(c *websocket.Conn, reportID, question string) error {
	view, err := h.reports.Get(reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.sendError(c, "Report not found")
			return nil
		}
		return err
	}

	if err := h.sendChunk(c, "status", "Consulting report..."); err != nil {
		return err
	}

	reply, err := h.assistant.AssistantReply(context.Background(), question, insights.RenderContext(view.Result))
	if err != nil {
		return err
	}

	for _, chunk := range chunks(reply, streamChunkSize) {
		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":      "complete",
		"report_id": reportID,
		"report":    view.Name,
	})
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

// chunks splits text into word-aligned pieces of roughly size bytes.
// Whitespace is preserved so concatenating the chunks restores the text.
func chunks(text string, size int) []string {
	var out []string
	var b strings.Builder

	for _, word := range strings.SplitAfter(text, " ") {
		b.WriteString(word)
		if b.Len() >= size {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}

	return out
}
