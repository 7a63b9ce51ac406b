// Package filesystem implements the document source over a local
// directory tree. Document IDs are derived from the cleaned file path,
// so the same file always maps to the same document across runs.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/logger"
)

// Ensure Source implements the interface.
var _ driven.DocumentSource = (*Source)(nil)

// Source reads documents from a directory.
type Source struct {
	dir       string
	recursive bool
}

// New creates a filesystem source rooted at dir.
func New(dir string, recursive bool) *Source {
	return &Source{dir: dir, recursive: recursive}
}

// DocumentID returns the stable identifier for a file path.
func DocumentID(path string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(filepath.Clean(path)))
}

// List walks the source directory and returns one reference per
// supported document, ordered by path. Hidden entries and files with
// unrecognised extensions are skipped.
func (s *Source) List(ctx context.Context) ([]domain.SourceRef, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("source directory %s: %w", s.dir, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("stat source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path %s is not a directory: %w", s.dir, domain.ErrInvalidInput)
	}

	var refs []domain.SourceRef
	err = filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		name := d.Name()
		if d.IsDir() {
			if path == s.dir {
				return nil
			}
			if strings.HasPrefix(name, ".") || !s.recursive {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		format, ok := domain.FormatForPath(path)
		if !ok {
			logger.Debug("skipping unsupported file: %s", path)
			return nil
		}

		refs = append(refs, domain.SourceRef{
			ID:     DocumentID(path),
			Path:   path,
			Format: format,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking source directory: %w", err)
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	return refs, nil
}

// Read returns the raw bytes of the referenced document.
func (s *Source) Read(_ context.Context, ref domain.SourceRef) ([]byte, error) {
	content, err := os.ReadFile(ref.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("document %s: %w", ref.Path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("reading document: %w", err)
	}
	return content, nil
}

// Watch emits a signal whenever files under the source directory
// change, debounced so a burst of writes produces one signal. The
// channel closes when ctx ends.
func (s *Source) Watch(ctx context.Context, debounce time.Duration) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	if err := s.addWatches(watcher); err != nil {
		watcher.Close()
		return nil, err
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		defer close(changes)

		var timer *time.Timer
		var timerC <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				// Watch directories created after startup.
				if event.Has(fsnotify.Create) && s.recursive {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := watcher.Add(event.Name); err != nil {
							logger.Warn("watching new directory %s: %v", event.Name, err)
						}
					}
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
					timerC = timer.C
				} else {
					timer.Reset(debounce)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("watch error: %v", err)

			case <-timerC:
				timer = nil
				timerC = nil
				select {
				case changes <- struct{}{}:
				default:
				}
			}
		}
	}()

	return changes, nil
}

// addWatches registers the source directory and, when recursive, every
// subdirectory.
func (s *Source) addWatches(watcher *fsnotify.Watcher) error {
	if !s.recursive {
		if err := watcher.Add(s.dir); err != nil {
			return fmt.Errorf("watching %s: %w", s.dir, err)
		}
		return nil
	}

	return filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != s.dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
