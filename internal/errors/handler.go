package errors

import (
	"net/http"

	"rag-doc-assistant/internal/config"

	"github.com/ory/herodot"
	"go.uber.org/zap"
)

// Handler writes gateway error responses through herodot and reports them
// to the structured log. What ends up in the body depends on the configured
// error mode.
type Handler struct {
	config *config.Config
	writer *herodot.JSONWriter
}

// NewHandler creates a new error handler with the given configuration
func NewHandler(cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		config: cfg,
		writer: herodot.NewJSONWriter(&zapReporter{log: logger}),
	}
}

// Writer exposes the JSON writer so handlers encode success bodies the same way.
func (h *Handler) Writer() *herodot.JSONWriter {
	return h.writer
}

// HandleValidationError rejects a request whose input failed validation.
// Validation messages are meant for the user and survive secure mode.
func (h *Handler) HandleValidationError(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	e := herodot.ErrBadRequest.WithReason(UserMessage(err))
	h.write(w, r, e, err, requestID)
}

// HandleUnauthorized handles a missing or unknown session token
func (h *Handler) HandleUnauthorized(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	reason := "Session required"
	if !h.secure() && err != nil {
		reason = err.Error()
	}
	e := herodot.ErrUnauthorized.WithReason(reason)
	h.write(w, r, e, err, requestID)
}

// HandleNotFoundError handles resource not found errors
func (h *Handler) HandleNotFoundError(w http.ResponseWriter, r *http.Request, resource string, requestID string) {
	reason := "Resource not found"
	if !h.secure() {
		reason = "Resource not found: " + resource
	}
	e := herodot.ErrNotFound.WithReason(reason)
	h.write(w, r, e, nil, requestID)
}

// HandleConflictError reports an operation refused because another one of
// the same kind is still running.
func (h *Handler) HandleConflictError(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	e := &herodot.DefaultError{
		CodeField:   http.StatusConflict,
		StatusField: http.StatusText(http.StatusConflict),
		ErrorField:  "The request conflicts with an operation in progress",
		ReasonField: UserMessage(err),
	}
	h.write(w, r, e, err, requestID)
}

// HandleBackendError handles a failed call to the document assistant
// backend. The normalized message is the one shown to the user.
func (h *Handler) HandleBackendError(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	e := &herodot.DefaultError{
		CodeField:   http.StatusBadGateway,
		StatusField: http.StatusText(http.StatusBadGateway),
		ErrorField:  "The document assistant backend could not complete the request",
		ReasonField: UserMessage(err),
	}
	h.write(w, r, e, err, requestID)
}

// HandleInternalError handles internal server errors
func (h *Handler) HandleInternalError(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	e := herodot.ErrInternalServerError.WithReason("An internal error occurred")
	h.write(w, r, e, err, requestID)
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, e *herodot.DefaultError, cause error, requestID string) {
	e.RIDField = h.getRequestID(requestID)

	// Never expose causes outside development
	if cause != nil && h.config.IsDevelopment() && !h.secure() {
		e.DebugField = cause.Error()
	}

	h.writer.WriteError(w, r, e)
}

func (h *Handler) secure() bool {
	return h.config.Security.ErrorMode == "secure" || h.config.IsProduction()
}

// getRequestID returns request ID for the response body, hidden in secure production
func (h *Handler) getRequestID(requestID string) string {
	if h.config.IsProduction() && h.config.Security.ErrorMode == "secure" {
		return ""
	}
	return requestID
}

// zapReporter implements herodot.ErrorReporter
type zapReporter struct {
	log *zap.Logger
}

func (z *zapReporter) ReportError(r *http.Request, code int, err error, args ...interface{}) {
	fields := []zap.Field{
		zap.Int("code", code),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_ip", getClientIP(r)),
		zap.Error(err),
	}
	if len(args) > 0 {
		fields = append(fields, zap.Any("args", args))
	}

	if code >= http.StatusInternalServerError {
		z.log.Error("request failed", fields...)
		return
	}
	z.log.Info("request rejected", fields...)
}

// getClientIP extracts the real client IP from request headers
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (for proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	// Fall back to RemoteAddr
	return r.RemoteAddr
}
