package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/taskflow/pkg/logger"
	"github.com/dmitrymomot/taskflow/pkg/requestid"
)

// ErrorInfo contains classified error information.
type ErrorInfo struct {
	StatusCode int
	LogLevel   slog.Level
}

func classifyError(err error) ErrorInfo {
	info := ErrorInfo{StatusCode: http.StatusInternalServerError}

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		info.StatusCode = httpErr.Code
	}

	var validationErr ValidationError
	if errors.As(err, &validationErr) {
		info.StatusCode = http.StatusUnprocessableEntity
	}

	info.LogLevel = slog.LevelError
	if info.StatusCode >= http.StatusBadRequest && info.StatusCode < http.StatusInternalServerError {
		info.LogLevel = slog.LevelWarn
	}

	return info
}

// NewErrorHandler creates the API error handler. It logs the error with the
// request id and writes the JSON error envelope.
// Configure this once in main.go and pass it to all modules.
func NewErrorHandler(log *slog.Logger) ErrorHandler[Context] {
	if log == nil {
		log = slog.Default()
	}

	return func(ctx Context, err error) {
		r := ctx.Request()
		info := classifyError(err)

		log.LogAttrs(r.Context(), info.LogLevel, "request error",
			logger.RequestID(requestid.FromContext(r.Context())),
			logger.Error(err),
			slog.Int("status_code", info.StatusCode),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("error_handler"),
		)

		if renderErr := JSONError(err).Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.Error("failed to render error response",
				logger.Error(renderErr),
				logger.Event("render_error_response"),
			)
		}
	}
}
