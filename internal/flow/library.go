package flow

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	appErrors "channelflow-backend/pkg/errors"
)

// Library holds the flow documents available to the service: the built-ins,
// plus any *.json documents in the configured directory. Documents on disk
// win over built-ins with the same id.
type Library struct {
	mu     sync.RWMutex
	dir    string
	docs   map[string]*Document
	logger *zap.Logger
}

// NewLibrary creates a library over dir and performs the initial load. A
// missing or empty dir is not an error; the built-ins are always available.
func NewLibrary(dir string, logger *zap.Logger) (*Library, error) {
	l := &Library{
		dir:    dir,
		docs:   make(map[string]*Document),
		logger: logger,
	}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload re-reads the flows directory. Malformed files are skipped with a
// warning so one bad edit cannot take down the whole library.
func (l *Library) Reload() error {
	docs := make(map[string]*Document)
	for _, doc := range Builtins() {
		docs[doc.ID] = doc
	}

	if l.dir != "" {
		entries, err := os.ReadDir(l.dir)
		switch {
		case os.IsNotExist(err):
			l.logger.Debug("flows directory does not exist, using built-ins only",
				zap.String("dir", l.dir))
		case err != nil:
			return appErrors.Wrap(err, "failed to read flows directory")
		default:
			for _, entry := range entries {
				if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
					continue
				}
				path := filepath.Join(l.dir, entry.Name())
				data, err := os.ReadFile(path)
				if err != nil {
					l.logger.Warn("failed to read flow file", zap.String("path", path), zap.Error(err))
					continue
				}
				doc, err := Parse(data)
				if err != nil {
					l.logger.Warn("skipping malformed flow file", zap.String("path", path), zap.Error(err))
					continue
				}
				if doc.ID == "" {
					l.logger.Warn("skipping flow file without id", zap.String("path", path))
					continue
				}
				docs[doc.ID] = doc
			}
		}
	}

	l.mu.Lock()
	l.docs = docs
	l.mu.Unlock()

	l.logger.Info("flow library loaded", zap.Int("flows", len(docs)))
	return nil
}

// Get returns the document with the given id.
func (l *Library) Get(id string) (*Document, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	doc, ok := l.docs[id]
	return doc, ok
}

// List returns all documents sorted by id.
func (l *Library) List() []*Document {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Document, 0, len(l.docs))
	for _, doc := range l.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
