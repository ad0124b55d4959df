// Package resolve walks a version's inheritance chain and merges the
// descriptors into one effective spec. The walk is an explicit loop with a
// visited set and a depth cap so that cyclic or pathological chains fail
// fast instead of recursing without bound.
package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/launchcraft/internal/ctxlog"
	"github.com/vk/launchcraft/internal/manifest"
)

// DefaultMaxDepth bounds the inheritance chain length. Real chains are two
// or three deep (vanilla, plus a mod loader profile); anything past this is
// a broken or hostile manifest set.
const DefaultMaxDepth = 8

// CyclicInheritanceError reports a version id repeating in its own chain.
type CyclicInheritanceError struct {
	Chain []string
}

// Error implements the error interface.
func (e *CyclicInheritanceError) Error() string {
	return "cyclic version inheritance: " + strings.Join(e.Chain, " -> ")
}

// InheritanceTooDeepError reports a chain exceeding the depth cap.
type InheritanceTooDeepError struct {
	ID       string
	MaxDepth int
}

// Error implements the error interface.
func (e *InheritanceTooDeepError) Error() string {
	return fmt.Sprintf("version %q inheritance chain exceeds %d levels", e.ID, e.MaxDepth)
}

// Library is a library entry annotated with the chain depth of the manifest
// that contributed it (0 = root-most ancestor). The planner uses the depth
// to pick a winner when two entries resolve to the same local path.
type Library struct {
	manifest.Library
	Depth int
}

// Spec is the merge result of a full inheritance chain. Exactly one main
// class and asset index survive the merge; library and argument lists are
// ordered root-first so a stable classpath falls out of plan order.
type Spec struct {
	ID                     string
	Chain                  []string
	Type                   string
	MainClass              string
	Assets                 string
	AssetIndex             *manifest.AssetIndexRef
	Downloads              map[string]manifest.ArtifactMeta
	Libraries              []Library
	GameArgs               []manifest.Argument
	JVMArgs                []manifest.Argument
	MinecraftArguments     string
	JavaVersion            *manifest.JavaVersion
	Logging                *manifest.Logging
	MinimumLauncherVersion int
	ReleaseTime            string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxDepth overrides the chain depth cap.
func WithMaxDepth(n int) Option {
	return func(r *Resolver) { r.maxDepth = n }
}

// Resolver turns a requested version id into a merged Spec via the store.
type Resolver struct {
	store    *manifest.Store
	maxDepth int
}

// NewResolver builds a Resolver over the given store.
func NewResolver(store *manifest.Store, opts ...Option) *Resolver {
	r := &Resolver{store: store, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve loads the chain for id and merges it root-to-leaf. The merge is
// deterministic: the same chain always yields a deeply equal Spec.
func (r *Resolver) Resolve(ctx context.Context, id string) (*Spec, error) {
	logger := ctxlog.FromContext(ctx)

	chain, err := r.walk(ctx, id)
	if err != nil {
		return nil, err
	}
	logger.Debug("Inheritance chain resolved.", "version", id, "depth", len(chain))

	spec := &Spec{
		Downloads: make(map[string]manifest.ArtifactMeta),
	}
	for depth, desc := range chain {
		mergeDescriptor(spec, desc, depth)
	}
	spec.ID = chain[len(chain)-1].ID
	return spec, nil
}

// walk follows inheritsFrom links from the leaf upward and returns the chain
// ordered root-most ancestor first.
func (r *Resolver) walk(ctx context.Context, id string) ([]*manifest.VersionDescriptor, error) {
	var reversed []*manifest.VersionDescriptor
	visited := make(map[string]bool)
	seen := []string{}

	for current := id; current != ""; {
		if visited[current] {
			return nil, &CyclicInheritanceError{Chain: append(seen, current)}
		}
		if len(reversed) >= r.maxDepth {
			return nil, &InheritanceTooDeepError{ID: id, MaxDepth: r.maxDepth}
		}
		visited[current] = true
		seen = append(seen, current)

		desc, err := r.store.Get(ctx, current)
		if err != nil {
			return nil, err
		}
		reversed = append(reversed, desc)
		current = desc.InheritsFrom
	}

	chain := make([]*manifest.VersionDescriptor, len(reversed))
	for i, desc := range reversed {
		chain[len(reversed)-1-i] = desc
	}
	return chain, nil
}

// mergeDescriptor folds one descriptor into the accumulating spec. Callers
// merge root first, so "child wins" is simply "later value overwrites".
func mergeDescriptor(spec *Spec, desc *manifest.VersionDescriptor, depth int) {
	spec.Chain = append(spec.Chain, desc.ID)

	if desc.Type != "" {
		spec.Type = desc.Type
	}
	if desc.MainClass != "" {
		spec.MainClass = desc.MainClass
	}
	if desc.Assets != "" {
		spec.Assets = desc.Assets
	}
	if desc.AssetIndex != nil {
		spec.AssetIndex = desc.AssetIndex
	}
	if desc.JavaVersion != nil {
		spec.JavaVersion = desc.JavaVersion
	}
	if desc.Logging != nil {
		spec.Logging = desc.Logging
	}
	if desc.MinimumLauncherVersion > spec.MinimumLauncherVersion {
		spec.MinimumLauncherVersion = desc.MinimumLauncherVersion
	}
	if desc.ReleaseTime != "" {
		spec.ReleaseTime = desc.ReleaseTime
	}
	for kind, meta := range desc.Downloads {
		spec.Downloads[kind] = meta
	}
	for _, lib := range desc.Libraries {
		spec.Libraries = append(spec.Libraries, Library{Library: lib, Depth: depth})
	}
	if desc.Arguments != nil {
		spec.GameArgs = append(spec.GameArgs, desc.Arguments.Game...)
		spec.JVMArgs = append(spec.JVMArgs, desc.Arguments.JVM...)
	}
	// The legacy single-string template has no append semantics: a child
	// declaring it replaces the whole game argument line.
	if desc.MinecraftArguments != "" {
		spec.MinecraftArguments = desc.MinecraftArguments
	}
}
