package toolserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"cot-calculator/directive"
)

// notify sends a tool outcome to the client as a logging notification. It is
// a no-op outside a client session (direct handler calls in tests).
func (s *Server) notify(ctx context.Context, op, content string) {
	srv := server.ServerFromContext(ctx)
	if srv == nil {
		return
	}

	level := mcp.LoggingLevelInfo
	if op == directive.OpFallbackReasoning {
		level = mcp.LoggingLevelWarning
	}

	err := srv.SendLogMessageToClient(ctx, mcp.LoggingMessageNotification{
		Params: mcp.LoggingMessageNotificationParams{
			Level:  level,
			Logger: ServerName,
			Data: map[string]any{
				"type":    op,
				"content": content,
			},
		},
	})
	if err != nil {
		s.logger.Debug("log notification not sent", zap.String("op", op), zap.Error(err))
	}
}
