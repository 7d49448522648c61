// Package watcher auto-ingests contract files dropped into a watched
// directory, so a shared inbox folder can feed the pipeline without the
// upload endpoint.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/legal-rag/backend/internal/ingestion"
	"github.com/legal-rag/backend/internal/textextract"
	"github.com/legal-rag/backend/pkg/logger"
)

// settleDelay gives the writing process time to finish before ingestion
// opens the file.
const settleDelay = 2 * time.Second

// Registrar creates the contract record an ingestion run is keyed by.
type Registrar interface {
	CreateContract(filename string, fileSize int64) (string, error)
}

type Watcher struct {
	dir       string
	db        Registrar
	processor *ingestion.Processor
	progress  ingestion.ProgressFunc

	mu   sync.Mutex
	seen map[string]bool
}

func New(dir string, db Registrar, processor *ingestion.Processor, progress ingestion.ProgressFunc) *Watcher {
	return &Watcher{
		dir:       dir,
		db:        db,
		processor: processor,
		progress:  progress,
		seen:      make(map[string]bool),
	}
}

// Run watches the inbox directory until ctx is cancelled. Files already
// present at startup are ingested first.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return err
	}

	logger.Info("Watching inbox directory", zap.String("dir", w.dir))

	entries, err := os.ReadDir(w.dir)
	if err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				w.maybeIngest(ctx, filepath.Join(w.dir, entry.Name()))
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.maybeIngest(ctx, event.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) maybeIngest(ctx context.Context, path string) {
	ext := strings.ToLower(filepath.Ext(path))
	if !textextract.SupportedExtensions[ext] {
		return
	}

	w.mu.Lock()
	if w.seen[path] {
		w.mu.Unlock()
		return
	}
	w.seen[path] = true
	w.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(settleDelay):
		}

		info, err := os.Stat(path)
		if err != nil {
			logger.Warn("Watched file vanished", zap.String("path", path), zap.Error(err))
			return
		}

		contractID, err := w.db.CreateContract(filepath.Base(path), info.Size())
		if err != nil {
			logger.Error("Failed to register watched file", zap.String("path", path), zap.Error(err))
			return
		}

		logger.Info("Auto-ingesting watched file",
			zap.String("path", path),
			zap.String("contract_id", contractID),
		)

		if _, err := w.processor.ProcessContract(ctx, contractID, path, w.progress); err != nil {
			logger.Error("Watched file ingestion failed",
				zap.String("path", path),
				zap.Error(err),
			)
		}
	}()
}
