// Package session ties settings, the document registry and the chat
// controller of one user together.
package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"rag-doc-assistant/internal/backend"
	"rag-doc-assistant/internal/chat"
	"rag-doc-assistant/internal/models"
	"rag-doc-assistant/internal/registry"
	"rag-doc-assistant/internal/settings"

	"go.uber.org/zap"
)

// ErrUploadInProgress is returned when an upload is started before the
// previous one of the same session finished.
var ErrUploadInProgress = errors.New("an upload is already in progress")

// Backend is the part of the backend protocol a session drives.
type Backend interface {
	chat.Asker
	Upload(ctx context.Context, file backend.File, chunkSize, chunkOverlap int) (*models.DocumentSummary, error)
	ClearDocuments(ctx context.Context) error
}

type Session struct {
	ID        string
	CreatedAt time.Time

	Settings  *settings.Store
	Documents *registry.Registry
	Chat      *chat.Controller

	backend   Backend
	log       *zap.Logger
	uploading atomic.Bool
}

// New builds a session starting from initial settings.
func New(id string, b Backend, initial models.Settings, logger *zap.Logger, opts ...chat.Option) (*Session, error) {
	store, err := settings.NewStore(initial)
	if err != nil {
		return nil, err
	}

	log := logger.With(zap.String("session_id", id))
	opts = append([]chat.Option{chat.WithLogger(log)}, opts...)

	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		Settings:  store,
		Documents: registry.New(),
		Chat:      chat.NewController(b, store, opts...),
		backend:   b,
		log:       log.Named("session"),
	}, nil
}

// Upload ingests one document with the chunking parameters currently set.
// Later settings changes do not affect documents already uploaded.
func (s *Session) Upload(ctx context.Context, file backend.File) (*models.DocumentSummary, error) {
	if !s.uploading.CompareAndSwap(false, true) {
		return nil, ErrUploadInProgress
	}
	defer s.uploading.Store(false)

	current := s.Settings.Current()
	summary, err := s.backend.Upload(ctx, file, current.ChunkSize, current.ChunkOverlap)
	if err != nil {
		s.log.Warn("upload failed", zap.String("filename", file.Name), zap.Error(err))
		return nil, err
	}

	s.Documents.Record(*summary)
	s.log.Info("document uploaded",
		zap.String("filename", summary.Filename),
		zap.Int("chunks", summary.NumChunks),
		zap.Int("chunk_size", current.ChunkSize),
		zap.Int("chunk_overlap", current.ChunkOverlap))
	return summary, nil
}

// Uploading reports whether an upload is running.
func (s *Session) Uploading() bool {
	return s.uploading.Load()
}

// ClearDocuments removes all documents from the backend. Only when the
// backend confirms does the session forget its documents and conversation.
func (s *Session) ClearDocuments(ctx context.Context) error {
	if err := s.backend.ClearDocuments(ctx); err != nil {
		s.log.Warn("clear documents failed", zap.Error(err))
		return err
	}

	s.Documents.ClearAll()
	s.Chat.Clear()
	s.log.Info("documents cleared")
	return nil
}
