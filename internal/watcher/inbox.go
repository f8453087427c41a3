package watcher

import (
	"context"
	"os"
	"path/filepath"

	"rag-doc-assistant/internal/backend"
	"rag-doc-assistant/internal/models"

	"go.uber.org/zap"
)

// Uploader ingests one document. session.Session satisfies it.
type Uploader interface {
	Upload(ctx context.Context, file backend.File) (*models.DocumentSummary, error)
}

// ReportFunc receives the outcome of every inbox upload.
type ReportFunc func(path string, summary *models.DocumentSummary, err error)

// Inbox uploads every file that settles in the watched directory.
type Inbox struct {
	watcher  *Watcher
	dir      string
	uploader Uploader
	report   ReportFunc
	readFile func(string) ([]byte, error)
	log      *zap.Logger
}

func NewInbox(w *Watcher, dir string, uploader Uploader, report ReportFunc, logger *zap.Logger) *Inbox {
	if report == nil {
		report = func(string, *models.DocumentSummary, error) {}
	}
	return &Inbox{
		watcher:  w,
		dir:      dir,
		uploader: uploader,
		report:   report,
		readFile: os.ReadFile,
		log:      logger.Named("inbox"),
	}
}

// Run uploads files one at a time until ctx is done.
func (i *Inbox) Run(ctx context.Context) error {
	paths, err := i.watcher.Watch(ctx, i.dir)
	if err != nil {
		return err
	}
	i.log.Info("watching inbox", zap.String("dir", i.dir))

	for path := range paths {
		i.upload(ctx, path)
	}
	return nil
}

func (i *Inbox) upload(ctx context.Context, path string) {
	data, err := i.readFile(path)
	if err != nil {
		i.log.Warn("read inbox file failed", zap.String("path", path), zap.Error(err))
		i.report(path, nil, err)
		return
	}

	summary, err := i.uploader.Upload(ctx, backend.File{Name: filepath.Base(path), Data: data})
	if err != nil {
		i.log.Warn("inbox upload failed", zap.String("path", path), zap.Error(err))
	} else {
		i.log.Info("inbox upload done", zap.String("path", path), zap.Int("chunks", summary.NumChunks))
	}
	i.report(path, summary, err)
}
