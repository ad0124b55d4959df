// Package manifest loads and caches raw version descriptors by id. The
// store does no interpretation of its own: inheritance and merging belong to
// the resolver.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/vk/launchcraft/internal/ctxlog"
	"github.com/vk/launchcraft/internal/fsutil"
	"github.com/vk/launchcraft/internal/layout"
	"github.com/vk/launchcraft/internal/remote"
	"github.com/vk/launchcraft/internal/verify"
)

// DefaultIndexURL is the canonical remote version index.
const DefaultIndexURL = "https://launchermeta.mojang.com/mc/game/version_manifest.json"

// Aliases resolved through the remote index's latest block.
const (
	AliasRelease  = "release"
	AliasSnapshot = "snapshot"
)

// indexEntry is one row of the remote version index.
type indexEntry struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
	SHA1 string `json:"sha1,omitempty"`
}

// versionIndex is the remote index document.
type versionIndex struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []indexEntry `json:"versions"`
}

// Option configures a Store.
type Option func(*Store)

// WithClient overrides the HTTP client (used by tests).
func WithClient(c *remote.Client) Option {
	return func(s *Store) { s.client = c }
}

// WithIndexURL overrides the remote index location.
func WithIndexURL(url string) Option {
	return func(s *Store) { s.indexURL = url }
}

// Store resolves version ids to parsed descriptors, consulting the local
// versions cache first and the remote index on a miss. Freshly fetched
// descriptors are persisted to the cache. There is deliberately no
// package-level instance: callers construct a Store against an install root
// and pass it by reference.
type Store struct {
	layout   layout.Layout
	client   *remote.Client
	indexURL string

	mu    sync.Mutex
	index *versionIndex
	memo  map[string]*VersionDescriptor
}

// NewStore builds a Store over the given install layout.
func NewStore(l layout.Layout, client *remote.Client, opts ...Option) *Store {
	s := &Store{
		layout:   l,
		client:   client,
		indexURL: DefaultIndexURL,
		memo:     make(map[string]*VersionDescriptor),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the descriptor for id. The "release" and "snapshot" aliases
// resolve through the remote index before lookup.
func (s *Store) Get(ctx context.Context, id string) (*VersionDescriptor, error) {
	logger := ctxlog.FromContext(ctx)

	if id == AliasRelease || id == AliasSnapshot {
		resolved, err := s.resolveAlias(ctx, id)
		if err != nil {
			return nil, err
		}
		logger.Debug("Resolved version alias.", "alias", id, "version", resolved)
		id = resolved
	}

	s.mu.Lock()
	if desc, ok := s.memo[id]; ok {
		s.mu.Unlock()
		return desc, nil
	}
	s.mu.Unlock()

	desc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.memo[id] = desc
	s.mu.Unlock()
	return desc, nil
}

// load reads the descriptor from cache, falling back to the remote index.
func (s *Store) load(ctx context.Context, id string) (*VersionDescriptor, error) {
	logger := ctxlog.FromContext(ctx)
	path := s.layout.VersionManifest(id)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		logger.Debug("Version descriptor served from cache.", "version", id, "path", path)
		return parseDescriptor(id, data)
	case errors.Is(err, fs.ErrNotExist):
		return s.fetch(ctx, id)
	default:
		return nil, err
	}
}

// fetch downloads the descriptor via the remote index and persists it.
func (s *Store) fetch(ctx context.Context, id string) (*VersionDescriptor, error) {
	logger := ctxlog.FromContext(ctx)

	entry, err := s.indexLookup(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := s.client.GetBytes(ctx, entry.URL)
	if err != nil {
		return nil, err
	}
	if err := verify.Bytes(data, entry.SHA1); err != nil {
		return nil, err
	}

	desc, err := parseDescriptor(id, data)
	if err != nil {
		return nil, err
	}

	// Cache write failures are not fatal: the descriptor is already in hand
	// and the next run will simply refetch.
	if err := fsutil.WriteFileAtomic(s.layout.VersionManifest(id), data, 0o644); err != nil {
		logger.Warn("Failed to cache version descriptor.", "version", id, "error", err)
	} else {
		logger.Debug("Version descriptor fetched and cached.", "version", id)
	}
	return desc, nil
}

// indexLookup finds the remote index row for id.
func (s *Store) indexLookup(ctx context.Context, id string) (*indexEntry, error) {
	idx, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	for i := range idx.Versions {
		if idx.Versions[i].ID == id {
			return &idx.Versions[i], nil
		}
	}
	return nil, &NotFoundError{ID: id}
}

// resolveAlias maps "release"/"snapshot" onto a concrete version id.
func (s *Store) resolveAlias(ctx context.Context, alias string) (string, error) {
	idx, err := s.loadIndex(ctx)
	if err != nil {
		return "", err
	}
	if alias == AliasSnapshot {
		return idx.Latest.Snapshot, nil
	}
	return idx.Latest.Release, nil
}

// loadIndex fetches and memoizes the remote version index.
func (s *Store) loadIndex(ctx context.Context) (*versionIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		return s.index, nil
	}

	data, err := s.client.GetBytes(ctx, s.indexURL)
	if err != nil {
		return nil, err
	}
	var idx versionIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, &ParseError{ID: "version index", Err: err}
	}
	s.index = &idx
	return s.index, nil
}

// parseDescriptor decodes raw manifest bytes, enforcing the id field.
func parseDescriptor(id string, data []byte) (*VersionDescriptor, error) {
	var desc VersionDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, &ParseError{ID: id, Err: err}
	}
	if desc.ID == "" {
		desc.ID = id
	}
	return &desc, nil
}
