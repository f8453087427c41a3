package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"rag-doc-assistant/internal/auth"
	"rag-doc-assistant/internal/backend"
	"rag-doc-assistant/internal/chat"
	"rag-doc-assistant/internal/config"
	apperrors "rag-doc-assistant/internal/errors"
	"rag-doc-assistant/internal/models"
	"rag-doc-assistant/internal/session"

	"github.com/ory/herodot"
	"go.uber.org/zap"
)

// maxUploadSize bounds the multipart body accepted for one document.
const maxUploadSize = 50 << 20

// Interfaces for dependency injection
type Backend interface {
	session.Backend
	ListDocuments(ctx context.Context) ([]models.DocumentSummary, error)
	Health(ctx context.Context) (*models.HealthStatus, error)
	ListModels(ctx context.Context) (models.ModelCatalog, error)
}

type SessionStore interface {
	Create() (*session.Session, error)
	Get(id string) (*session.Session, error)
	Delete(id string) error
	Count() int
}

type Server struct {
	mux         *http.ServeMux
	config      *config.Config
	backend     Backend
	sessions    SessionStore
	errors      *apperrors.Handler
	writer      *herodot.JSONWriter
	log         *zap.Logger
	turnTimeout time.Duration
}

func NewServer(cfg *config.Config, b Backend, sessions SessionStore, logger *zap.Logger) *Server {
	errHandler := apperrors.NewHandler(cfg, logger.Named("http"))
	s := &Server{
		mux:         http.NewServeMux(),
		config:      cfg,
		backend:     b,
		sessions:    sessions,
		errors:      errHandler,
		writer:      errHandler.Writer(),
		log:         logger.Named("http"),
		turnTimeout: cfg.BackendTimeout(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	withSession := auth.Middleware(s.sessions, s.authFailed)

	s.mux.HandleFunc("POST /sessions", s.createSession)
	s.mux.Handle("GET /session", withSession(http.HandlerFunc(s.getSession)))
	s.mux.Handle("DELETE /session", withSession(http.HandlerFunc(s.deleteSession)))
	s.mux.Handle("POST /session/messages", withSession(http.HandlerFunc(s.sendMessage)))
	s.mux.Handle("DELETE /session/messages", withSession(http.HandlerFunc(s.clearMessages)))
	s.mux.Handle("GET /session/settings", withSession(http.HandlerFunc(s.getSettings)))
	s.mux.Handle("PUT /session/settings", withSession(http.HandlerFunc(s.putSettings)))
	s.mux.Handle("PUT /session/provider", withSession(http.HandlerFunc(s.putProvider)))
	s.mux.Handle("GET /session/documents", withSession(http.HandlerFunc(s.sessionDocuments)))
	s.mux.Handle("POST /session/documents", withSession(http.HandlerFunc(s.uploadDocument)))
	s.mux.Handle("DELETE /session/documents", withSession(http.HandlerFunc(s.clearDocuments)))
	s.mux.HandleFunc("GET /documents", s.listDocuments)
	s.mux.HandleFunc("GET /health", s.healthCheck)
	s.mux.HandleFunc("GET /models", s.listModels)
}

// Handler returns the routes wrapped in the request id and logging middleware.
func (s *Server) Handler() http.Handler {
	return requestIDMiddleware(loggingMiddleware(s.log, s.mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
		TLSConfig:    s.config.GetTLSConfig(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.Bool("tls", s.config.Server.TLS.Enabled))
		if s.config.Server.TLS.Enabled {
			errCh <- srv.ListenAndServeTLS(s.config.Server.TLS.CertFile, s.config.Server.TLS.KeyFile)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, session.ErrSessionNotFound) {
		s.errors.HandleNotFoundError(w, r, "session", requestID(r))
		return
	}
	s.errors.HandleUnauthorized(w, r, err, requestID(r))
}

func (s *Server) sessionResponse(sess *session.Session) *models.SessionResponse {
	return &models.SessionResponse{
		SessionID: sess.ID,
		CreatedAt: sess.CreatedAt,
		Settings:  sess.Settings.Current(),
		Snapshot:  sess.Chat.Snapshot(),
		Documents: sess.Documents.List(),
		Uploading: sess.Uploading(),
	}
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create()
	if err != nil {
		s.errors.HandleInternalError(w, r, err, requestID(r))
		return
	}
	s.writer.WriteCreated(w, r, "/session", s.sessionResponse(sess))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.writer.Write(w, r, s.sessionResponse(auth.SessionFromContext(r.Context())))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())
	if err := s.sessions.Delete(sess.ID); err != nil {
		s.errors.HandleNotFoundError(w, r, "session", requestID(r))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	var req models.QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errors.HandleValidationError(w, r, apperrors.Validation("Invalid request body").WithCause(err), requestID(r))
		return
	}

	// The turn outlives a dropped connection so the history stays consistent.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.turnTimeout)
	defer cancel()

	switch err := sess.Chat.Send(ctx, req.Question); {
	case errors.Is(err, chat.ErrBlankQuestion):
		s.errors.HandleValidationError(w, r, apperrors.Validation("Question must not be blank"), requestID(r))
		return
	case errors.Is(err, chat.ErrRequestInFlight):
		s.errors.HandleConflictError(w, r, apperrors.Validation("A question is already being answered"), requestID(r))
		return
	case err != nil:
		s.errors.HandleInternalError(w, r, err, requestID(r))
		return
	}

	s.writer.Write(w, r, sess.Chat.Snapshot())
}

func (s *Server) clearMessages(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())
	sess.Chat.Clear()
	s.writer.Write(w, r, sess.Chat.Snapshot())
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	s.writer.Write(w, r, auth.SessionFromContext(r.Context()).Settings.Current())
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	var next models.Settings
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		s.errors.HandleValidationError(w, r, apperrors.Validation("Invalid request body").WithCause(err), requestID(r))
		return
	}

	current, err := sess.Settings.Replace(next)
	if err != nil {
		s.errors.HandleValidationError(w, r, apperrors.Validation(err.Error()), requestID(r))
		return
	}
	s.writer.Write(w, r, current)
}

func (s *Server) putProvider(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	var req models.ProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errors.HandleValidationError(w, r, apperrors.Validation("Invalid request body").WithCause(err), requestID(r))
		return
	}

	current, err := sess.Settings.SelectProvider(req.Provider)
	if err != nil {
		s.errors.HandleValidationError(w, r, apperrors.Validation(err.Error()), requestID(r))
		return
	}
	s.writer.Write(w, r, current)
}

func (s *Server) sessionDocuments(w http.ResponseWriter, r *http.Request) {
	docs := auth.SessionFromContext(r.Context()).Documents.List()
	s.writer.Write(w, r, &models.DocumentListResponse{Documents: docs, Count: len(docs)})
}

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	f, header, err := r.FormFile("file")
	if err != nil {
		s.errors.HandleValidationError(w, r, apperrors.Validation("A file is required in the \"file\" field").WithCause(err), requestID(r))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		s.errors.HandleValidationError(w, r, apperrors.Validation("Could not read the uploaded file").WithCause(err), requestID(r))
		return
	}

	summary, err := sess.Upload(r.Context(), backend.File{Name: header.Filename, Data: data})
	switch {
	case errors.Is(err, session.ErrUploadInProgress):
		s.errors.HandleConflictError(w, r, apperrors.Validation("An upload is already in progress"), requestID(r))
		return
	case apperrors.IsValidation(err):
		s.errors.HandleValidationError(w, r, err, requestID(r))
		return
	case err != nil:
		s.errors.HandleBackendError(w, r, err, requestID(r))
		return
	}

	s.writer.WriteCreated(w, r, "/session/documents", &models.UploadResponse{
		Document:  *summary,
		Documents: sess.Documents.List(),
	})
}

func (s *Server) clearDocuments(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	if err := sess.ClearDocuments(r.Context()); err != nil {
		s.errors.HandleBackendError(w, r, err, requestID(r))
		return
	}
	s.writer.Write(w, r, &models.ClearDocumentsResponse{
		Message:  "All documents cleared",
		Snapshot: sess.Chat.Snapshot(),
	})
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.backend.ListDocuments(r.Context())
	if err != nil {
		s.errors.HandleBackendError(w, r, err, requestID(r))
		return
	}
	s.writer.Write(w, r, &models.DocumentListResponse{Documents: docs, Count: len(docs)})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	status, err := s.backend.Health(r.Context())
	if err != nil {
		s.errors.HandleBackendError(w, r, err, requestID(r))
		return
	}

	response := &models.HealthResponse{
		Status:   "healthy",
		Sessions: s.sessions.Count(),
		Backend:  status,
	}
	s.writer.Write(w, r, response)
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.backend.ListModels(r.Context())
	if err != nil {
		s.errors.HandleBackendError(w, r, err, requestID(r))
		return
	}
	s.writer.Write(w, r, catalog)
}
