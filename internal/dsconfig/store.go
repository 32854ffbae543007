package dsconfig

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
)

// Listener receives the full configuration value after every mutation.
type Listener func(Config)

// Store holds the single live data-source configuration value and fans out
// change notifications. Mutations are serialized and last-write-wins; a Set
// racing a poll-driven refresh resolves to whichever merge ran last.
type Store struct {
	mu        sync.RWMutex
	cfg       Config
	listeners map[int]Listener
	nextID    int

	overrides OverrideStore
	remote    RemoteSource
	logger    *slog.Logger

	// lastRemote is the last remote document applied, compared byte-for-byte
	// by the poller to skip redundant re-application.
	lastRemote []byte
}

// StoreOption configures optional store collaborators.
type StoreOption func(*Store)

// WithRemote attaches the remote configuration document source.
func WithRemote(remote RemoteSource) StoreOption {
	return func(s *Store) {
		s.remote = remote
	}
}

// WithOverrides attaches the persisted override store.
func WithOverrides(overrides OverrideStore) StoreOption {
	return func(s *Store) {
		s.overrides = overrides
	}
}

// WithLogger attaches the store logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore constructs a store seeded with the supplied configuration snapshot.
func NewStore(seed Config, opts ...StoreOption) *Store {
	s := &Store{
		cfg:       seed.Clone(),
		listeners: make(map[int]Listener),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.overrides == nil {
		s.overrides = NewMemoryOverrideStore()
	}
	return s
}

// Snapshot returns a deep copy of the current configuration value.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Set shallow-merges the patch into the current value and notifies every
// subscriber synchronously with the new full value.
func (s *Store) Set(p Partial) {
	if p.IsZero() {
		return
	}
	s.mu.Lock()
	s.cfg = s.cfg.apply(p)
	cfg, listeners := s.cfg.Clone(), s.listenerList()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
}

// SetAndPersist behaves like Set but first writes the patch, merged over any
// previously persisted override, into the override store. Persistence
// failures are logged and swallowed.
func (s *Store) SetAndPersist(p Partial) {
	if p.IsZero() {
		return
	}
	existing, _, err := s.overrides.Load()
	if err != nil {
		s.logger.Warn("reading persisted override failed", "error", err)
		existing = Partial{}
	}
	if err := s.overrides.Save(mergePartial(existing, p)); err != nil {
		s.logger.Warn("persisting override failed", "error", err)
	}
	s.Set(p)
}

// Subscribe registers a listener invoked on every mutation and returns its
// deregistration function. Subscriptions are independent of each other.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// ResetOverride deletes the persisted override and re-resolves the value from
// the environment and remote layers, discarding the override layer.
func (s *Store) ResetOverride(ctx context.Context) {
	if err := s.overrides.Delete(); err != nil {
		s.logger.Warn("deleting persisted override failed", "error", err)
	}

	base := Seed(s.logger)

	s.mu.Lock()
	remoteDoc := s.lastRemote
	s.mu.Unlock()
	if remoteDoc == nil && s.remote != nil {
		if data, err := s.remote.Fetch(ctx); err == nil {
			remoteDoc = data
		}
	}
	if remoteDoc != nil {
		if patch, err := partialFromRemote(remoteDoc, base); err == nil {
			base = base.apply(patch)
		}
	}

	s.mu.Lock()
	s.cfg = base
	s.lastRemote = remoteDoc
	cfg, listeners := s.cfg.Clone(), s.listenerList()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
}

// Bootstrap applies the asynchronous cascade layers: the remote document
// (best-effort, bounded retry) followed by the persisted override so the
// override always wins. Every failure is logged and skipped.
func (s *Store) Bootstrap(ctx context.Context) {
	if s.remote != nil {
		data, err := fetchWithRetry(ctx, s.remote)
		if err != nil {
			s.logger.Warn("remote data-source config unavailable at startup", "error", err)
		} else {
			s.applyRemoteDoc(data)
		}
	}
	s.applyOverrideLayer()
}

// PollOnce re-fetches the remote document and, when its content changed,
// re-applies the remote layer followed by the override layer. Failures are
// silent beyond a debug log; the next interval retries.
func (s *Store) PollOnce(ctx context.Context) (changed bool, err error) {
	if s.remote == nil {
		return false, nil
	}
	data, err := s.remote.Fetch(ctx)
	if err != nil {
		s.logger.Debug("data-source config poll failed", "error", err)
		return false, err
	}

	s.mu.RLock()
	same := bytes.Equal(data, s.lastRemote)
	s.mu.RUnlock()
	if same {
		return false, nil
	}

	if !s.applyRemoteDoc(data) {
		return false, nil
	}
	s.applyOverrideLayer()
	return true, nil
}

// applyRemoteDoc parses and applies a remote document, recording its bytes for
// poll comparison. Malformed documents are logged and skipped.
func (s *Store) applyRemoteDoc(data []byte) bool {
	patch, err := partialFromRemote(data, s.Snapshot())
	if err != nil {
		s.logger.Warn("skipping malformed remote data-source config", "error", err)
		return false
	}

	s.mu.Lock()
	s.lastRemote = append([]byte(nil), data...)
	s.mu.Unlock()

	if !patch.IsZero() {
		s.Set(patch)
	}
	return true
}

// applyOverrideLayer re-applies the persisted override on top of the current
// value, preserving override priority after remote-driven changes.
func (s *Store) applyOverrideLayer() {
	patch, ok, err := s.overrides.Load()
	if err != nil {
		s.logger.Warn("skipping malformed persisted override", "error", err)
		return
	}
	if ok && !patch.IsZero() {
		s.Set(patch)
	}
}

// listenerList snapshots the subscriber set. Callers must hold s.mu.
func (s *Store) listenerList() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}
