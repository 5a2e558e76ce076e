// Package watch keeps a tenant's documents in step with a folder.
//
// Every supported file under the root becomes a document named by its
// slash-separated path relative to the root. Creating or editing a file
// re-ingests it; removing or renaming it deletes the document. Hidden
// files and directories are ignored.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/normalisers"
)

// Default configuration values.
const (
	DefaultDebounce    = 500 * time.Millisecond
	DefaultMaxFileSize = 10 << 20
)

// ChangeType describes what happened to a watched file.
type ChangeType int

const (
	// ChangeUpserted means the file was created or modified.
	ChangeUpserted ChangeType = iota + 1

	// ChangeDeleted means the file was removed or renamed away.
	ChangeDeleted
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeUpserted:
		return "upserted"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// TypeFilter reports whether files of a MIME type can be ingested.
type TypeFilter interface {
	Supports(mimeType string) bool
}

// Config holds configuration for a Watcher.
type Config struct {
	// Tenant owns the documents created from the folder.
	Tenant string

	// Root is the folder to watch.
	Root string

	// Types decides which files are ingested (default: normalisers.Default()).
	Types TypeFilter

	// Debounce delays applying a change until the file has been quiet
	// for this long (default: 500ms).
	Debounce time.Duration

	// MaxFileSize skips larger files (default: 10 MiB).
	MaxFileSize int64

	// Prune lets Sync delete documents that have no file under the root.
	// Leave it off when the tenant also holds documents from elsewhere.
	Prune bool
}

// Stats counts the changes a watcher has applied.
type Stats struct {
	Ingested int
	Deleted  int
	Skipped  int
	Failed   int
}

// Watcher mirrors a folder into a tenant's documents.
type Watcher struct {
	docs driving.DocumentService
	cfg  Config

	mu      sync.Mutex
	pending map[string]ChangeType
	timers  map[string]*time.Timer
	stats   Stats
	applyMu sync.Mutex
}

// New creates a watcher for cfg.Root on behalf of cfg.Tenant.
func New(docs driving.DocumentService, cfg Config) (*Watcher, error) {
	if docs == nil {
		return nil, errors.New("watch: document service is required")
	}
	if strings.TrimSpace(cfg.Tenant) == "" {
		return nil, fmt.Errorf("%w: watch: tenant is required", domain.ErrValidation)
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: watch: %s is not a directory", domain.ErrValidation, root)
	}
	cfg.Root = root
	if cfg.Types == nil {
		cfg.Types = normalisers.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}

	return &Watcher{
		docs:    docs,
		cfg:     cfg,
		pending: make(map[string]ChangeType),
		timers:  make(map[string]*time.Timer),
	}, nil
}

// Stats returns the counts of applied changes so far.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Sync ingests every supported file under the root that is not yet a
// document. With Prune set it also deletes documents whose file is gone.
func (w *Watcher) Sync(ctx context.Context) error {
	existing, err := w.docs.List(ctx, w.cfg.Tenant)
	if err != nil {
		return fmt.Errorf("watch: list documents: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for i := range existing {
		known[existing[i].Name] = true
	}

	seen := make(map[string]bool)
	err = filepath.WalkDir(w.cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path != w.cfg.Root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		name, ok := w.documentName(path)
		if !ok {
			return nil
		}
		seen[name] = true
		if known[name] {
			return nil
		}
		return w.apply(ctx, path, ChangeUpserted)
	})
	if err != nil {
		return fmt.Errorf("watch: scan %s: %w", w.cfg.Root, err)
	}

	if !w.cfg.Prune {
		return nil
	}
	for name := range known {
		if !seen[name] {
			if err := w.apply(ctx, w.pathFor(name), ChangeDeleted); err != nil {
				return err
			}
		}
	}
	return nil
}

// Run watches the root until ctx is cancelled. Call Sync first to pick
// up files that changed while nothing was watching.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.cfg.Root); err != nil {
		return err
	}
	logger.Info("watch: watching %s for tenant %s", w.cfg.Root, w.cfg.Tenant)

	defer w.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !isHidden(info.Name()) {
					if err := w.addTree(fsw, event.Name); err != nil {
						logger.Warn("watch: %v", err)
					}
					continue
				}
			}
			if change, ok := w.classify(event); ok {
				w.schedule(ctx, event.Name, change)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch: %v", err)
		}
	}
}

// classify maps a filesystem event to a document change.
func (w *Watcher) classify(event fsnotify.Event) (ChangeType, bool) {
	if hasHiddenPart(w.cfg.Root, event.Name) {
		return 0, false
	}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if _, ok := w.documentName(event.Name); !ok {
			return 0, false
		}
		return ChangeDeleted, true
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return 0, false
		}
		if _, ok := w.documentName(event.Name); !ok {
			return 0, false
		}
		return ChangeUpserted, true
	default:
		return 0, false
	}
}

// schedule debounces changes per path; the last change wins.
func (w *Watcher) schedule(ctx context.Context, path string, change ChangeType) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = change
	if t, ok := w.timers[path]; ok {
		t.Reset(w.cfg.Debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.cfg.Debounce, func() {
		w.mu.Lock()
		c := w.pending[path]
		delete(w.pending, path)
		delete(w.timers, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if err := w.apply(ctx, path, c); err != nil {
			logger.Error(err, "watch: %s %s", c, path)
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
		delete(w.pending, path)
	}
}

// apply performs one change against the document service.
// Changes are applied one at a time so a delete and re-ingest of the
// same name never interleave.
func (w *Watcher) apply(ctx context.Context, path string, change ChangeType) error {
	w.applyMu.Lock()
	defer w.applyMu.Unlock()

	name, ok := w.documentName(path)
	if !ok {
		return nil
	}

	switch change {
	case ChangeDeleted:
		err := w.docs.Delete(ctx, w.cfg.Tenant, name)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			w.count(func(s *Stats) { s.Failed++ })
			return fmt.Errorf("watch: delete %s: %w", name, err)
		}
		logger.Debug("watch: deleted %s", name)
		w.count(func(s *Stats) { s.Deleted++ })
		return nil

	case ChangeUpserted:
		return w.ingest(ctx, path, name)
	}
	return nil
}

func (w *Watcher) ingest(ctx context.Context, path, name string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("watch: stat %s: %w", path, err)
	}
	if info.Size() > w.cfg.MaxFileSize {
		logger.Warn("watch: skipping %s, %d bytes exceeds limit", name, info.Size())
		w.count(func(s *Stats) { s.Skipped++ })
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("watch: read %s: %w", path, err)
	}
	mimeType := normalisers.DetectMIMEType(path, data)

	// Names are unique per tenant, so an edit replaces the old document.
	if err := w.docs.Delete(ctx, w.cfg.Tenant, name); err != nil && !errors.Is(err, domain.ErrNotFound) {
		w.count(func(s *Stats) { s.Failed++ })
		return fmt.Errorf("watch: replace %s: %w", name, err)
	}

	summary, err := w.docs.IngestFile(ctx, w.cfg.Tenant, name, data, mimeType)
	if errors.Is(err, domain.ErrUnsupportedType) {
		logger.Warn("watch: skipping %s: %v", name, err)
		w.count(func(s *Stats) { s.Skipped++ })
		return nil
	}
	if err != nil {
		w.count(func(s *Stats) { s.Failed++ })
		return fmt.Errorf("watch: ingest %s: %w", name, err)
	}
	logger.Debug("watch: ingested %s (%d chunks)", name, summary.ChunkCount)
	w.count(func(s *Stats) { s.Ingested++ })
	return nil
}

func (w *Watcher) count(f func(*Stats)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f(&w.stats)
}

// documentName returns the document name for a file path, or false when
// the file lies outside the root or has an unsupported type.
func (w *Watcher) documentName(path string) (string, bool) {
	rel, err := filepath.Rel(w.cfg.Root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	mimeType := normalisers.TypeByExtension(path)
	if mimeType == "" || !w.cfg.Types.Supports(mimeType) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) pathFor(name string) string {
	return filepath.Join(w.cfg.Root, filepath.FromSlash(name))
}

// addTree watches dir and every non-hidden directory below it.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add %s: %w", path, err)
		}
		return nil
	})
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// hasHiddenPart reports whether any element of path below root is hidden.
func hasHiddenPart(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if isHidden(part) {
			return true
		}
	}
	return false
}
