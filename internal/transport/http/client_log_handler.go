package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/k-laffite/water-quality-visualizer/internal/errors"
	apiv1 "github.com/k-laffite/water-quality-visualizer/pkg/contracts/api/v1"
)

// ClientLogHandler forwards browser-side log entries into the server's
// structured log stream.
type ClientLogHandler struct {
	logger       *slog.Logger
	validate     *validator.Validate
	errorHandler *apierrors.ErrorHandler
}

// NewClientLogHandler creates a new client log handler
func NewClientLogHandler(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ClientLogHandler {
	return &ClientLogHandler{
		logger:       logger.With(slog.String("handler", "client_log")),
		validate:     validator.New(),
		errorHandler: errorHandler,
	}
}

// Handle processes POST /api/client-logs
func (h *ClientLogHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req apiv1.ClientLogRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusBadRequest,
			"VALIDATION_ERROR",
			"Client log entry failed validation",
			validationDetails(err),
		))
		return
	}

	attrs := []slog.Attr{
		slog.String("source", "client"),
	}
	if req.Timestamp != "" {
		attrs = append(attrs, slog.String("client_timestamp", req.Timestamp))
	}
	if req.Context != nil {
		attrs = append(attrs, slog.Any("client_context", req.Context))
	}

	h.logger.LogAttrs(r.Context(), clientLogLevel(req.Level), req.Message, attrs...)

	render.JSON(w, r, map[string]interface{}{
		"success": true,
	})
}

func clientLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
