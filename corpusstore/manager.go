package corpusstore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/im7mortal/kmutex"

	"github.com/korpling/graphannis-go/config"
	"github.com/korpling/graphannis-go/corpusgraph"
	"github.com/korpling/graphannis-go/qerr"
)

// Manager is the top-level handle a consumer holds: one root directory
// containing zero or more corpora, each a subdirectory in the layout
// [corpusgraph.AnnotationGraph.Snapshot] writes. Manager is safe for
// concurrent use; per-corpus operations serialize on a keyed mutex so
// work on one corpus never blocks another.
type Manager struct {
	rootDir string
	config  config.EngineConfig
	logger  *slog.Logger

	corpusLock *kmutex.Kmutex

	mu      sync.RWMutex
	corpora map[string]*corpusgraph.AnnotationGraph
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithLogger attaches a logger used for operation-boundary tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithConfig overrides the default [config.EngineConfig] the manager
// stores. No Manager operation reads its fields.
func WithConfig(cfg config.EngineConfig) Option {
	return func(m *Manager) { m.config = cfg }
}

// New returns a Manager rooted at dir. dir need not exist yet; it is
// created on first [Manager.Snapshot] or explicit [Manager.CreateCorpus].
func New(dir string, opts ...Option) *Manager {
	m := &Manager{
		rootDir:    dir,
		config:     config.Default(),
		corpusLock: kmutex.New(),
		corpora:    make(map[string]*corpusgraph.AnnotationGraph),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// corpusDir returns the persist directory for name.
func (m *Manager) corpusDir(name string) string {
	return filepath.Join(m.rootDir, name)
}

// List enumerates the corpora known to the root directory: every
// subdirectory containing a "current" or "backup" snapshot. Returns an
// empty slice, not an error, if the root directory does not exist yet.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.rootDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, qerr.New(qerr.KindIo, "list corpus root").
			WithDetail(qerr.DetailKeyPath, m.rootDir).WithCause(err).Build()
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(m.rootDir, e.Name())
		if hasSnapshot(dir) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func hasSnapshot(dir string) bool {
	for _, sub := range []string{"current", "backup"} {
		if _, err := os.Stat(filepath.Join(dir, sub, "snapshot.dat")); err == nil {
			return true
		}
	}
	return false
}

// open returns the resident graph for name, loading it from disk on first
// access. Every query and update operation goes through open so a corpus
// is read from disk at most once per Manager lifetime.
func (m *Manager) open(ctx context.Context, name string) (*corpusgraph.AnnotationGraph, error) {
	m.mu.RLock()
	g, ok := m.corpora[name]
	m.mu.RUnlock()
	if ok {
		return g, nil
	}

	m.corpusLock.Lock(name)
	defer m.corpusLock.Unlock(name)

	m.mu.RLock()
	g, ok = m.corpora[name]
	m.mu.RUnlock()
	if ok {
		return g, nil
	}

	dir := m.corpusDir(name)
	if !hasSnapshot(dir) {
		return nil, qerr.New(qerr.KindNoSuchCorpus, "corpus data directory not found").
			WithDetail(qerr.DetailKeyCorpus, name).
			WithDetail(qerr.DetailKeyPath, dir).Build()
	}

	g = corpusgraph.New(corpusgraph.WithLogger(m.logger), corpusgraph.WithPersistDir(dir))
	if err := g.Load(ctx); err != nil {
		return nil, qerr.New(qerr.KindIo, "load corpus").
			WithDetail(qerr.DetailKeyCorpus, name).WithCause(err).Build()
	}

	m.mu.Lock()
	m.corpora[name] = g
	m.mu.Unlock()
	return g, nil
}

// CreateCorpus registers an empty, writable graph under name, to be
// populated with [Manager.ApplyUpdate] and persisted with
// [Manager.Snapshot]. It is a no-op if name is already resident or
// already has a snapshot on disk.
func (m *Manager) CreateCorpus(name string) (*corpusgraph.AnnotationGraph, error) {
	m.corpusLock.Lock(name)
	defer m.corpusLock.Unlock(name)

	m.mu.RLock()
	g, ok := m.corpora[name]
	m.mu.RUnlock()
	if ok {
		return g, nil
	}

	dir := m.corpusDir(name)
	g = corpusgraph.New(corpusgraph.WithLogger(m.logger), corpusgraph.WithPersistDir(dir))
	if hasSnapshot(dir) {
		if err := g.Load(context.Background()); err != nil {
			return nil, qerr.New(qerr.KindIo, "load existing corpus").
				WithDetail(qerr.DetailKeyCorpus, name).WithCause(err).Build()
		}
	}

	m.mu.Lock()
	m.corpora[name] = g
	m.mu.Unlock()
	return g, nil
}

// Graph returns the named corpus's resident annotation graph, loading it
// from disk on first access. A query frontend building a [query.Conjunction]
// needs this to bind operators (such as [query.ValueEqual]) that carry
// their own store reference rather than resolving it from the plan's
// [compile.Graph] at bind time.
func (m *Manager) Graph(ctx context.Context, name string) (*corpusgraph.AnnotationGraph, error) {
	return m.open(ctx, name)
}

// Snapshot persists name's resident graph to disk, a no-op if name is not
// currently resident.
func (m *Manager) Snapshot(ctx context.Context, name string) error {
	m.mu.RLock()
	g, ok := m.corpora[name]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return g.Snapshot(ctx)
}

// Unload evicts name's resident graph without persisting it, forcing the
// next operation to reload from the last snapshot.
func (m *Manager) Unload(name string) {
	m.mu.Lock()
	delete(m.corpora, name)
	m.mu.Unlock()
}

// Close snapshots every resident corpus and evicts it, returning the first
// error encountered while still attempting every corpus.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	names := make([]string, 0, len(m.corpora))
	for name := range m.corpora {
		names = append(names, name)
	}
	m.mu.Unlock()

	var first error
	for _, name := range names {
		if err := m.Snapshot(ctx, name); err != nil && first == nil {
			first = err
		}
		m.Unload(name)
	}
	return first
}
