package plan

import (
	"context"
	"strings"

	"github.com/vk/launchcraft/internal/ctxlog"
	"github.com/vk/launchcraft/internal/layout"
	"github.com/vk/launchcraft/internal/manifest"
	"github.com/vk/launchcraft/internal/resolve"
	"github.com/vk/launchcraft/internal/rules"
)

// DefaultLibraryRepo is the repository used for library entries that carry
// only a maven coordinate and no explicit download metadata.
const DefaultLibraryRepo = "https://libraries.minecraft.net/"

// DedupPolicy decides which ref wins when two target the same local path.
// Child-wins mirrors how inheriting manifests override their parents; it is
// configurable because the policy is convention, not schema.
type DedupPolicy string

const (
	DedupChildWins DedupPolicy = "child-wins"
	DedupFirstWins DedupPolicy = "first-wins"
)

// Option configures a Planner.
type Option func(*Planner)

// WithDedupPolicy overrides the duplicate-path policy.
func WithDedupPolicy(p DedupPolicy) Option {
	return func(pl *Planner) { pl.dedup = p }
}

// WithLibraryRepo overrides the fallback maven repository.
func WithLibraryRepo(url string) Option {
	return func(pl *Planner) { pl.libraryRepo = url }
}

// Planner builds artifact plans for one platform/feature context.
type Planner struct {
	layout      layout.Layout
	rctx        rules.Context
	dedup       DedupPolicy
	libraryRepo string
}

// NewPlanner builds a Planner over the install layout and rule context.
func NewPlanner(l layout.Layout, rctx rules.Context, opts ...Option) *Planner {
	p := &Planner{
		layout:      l,
		rctx:        rctx,
		dedup:       DedupChildWins,
		libraryRepo: DefaultLibraryRepo,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan emits the pre-asset plan: rule-filtered libraries, platform natives,
// the client jar, the asset index file and the logging config. Individual
// assets are added later via ExpandAssetIndex once the index itself is on
// disk.
func (p *Planner) Plan(ctx context.Context, spec *resolve.Spec) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	out := NewPlan()

	for _, lib := range spec.Libraries {
		if !rules.Evaluate(lib.Rules, p.rctx) {
			logger.Debug("Library excluded by rules.", "library", lib.Name)
			continue
		}
		refs, err := p.libraryRefs(lib)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			p.add(ctx, out, ref)
		}
	}

	if client, ok := spec.Downloads["client"]; ok {
		p.add(ctx, out, Ref{
			Name:  spec.ID,
			Kind:  KindClientJar,
			Path:  p.layout.VersionJar(spec.ID),
			URL:   client.URL,
			SHA1:  client.SHA1,
			Size:  client.Size,
			Depth: len(spec.Chain) - 1,
		})
	} else {
		logger.Warn("Version declares no client download; assuming jar is already installed.", "version", spec.ID)
	}

	if spec.AssetIndex != nil {
		p.add(ctx, out, Ref{
			Name: spec.AssetIndex.ID,
			Kind: KindAssetIndex,
			Path: p.layout.AssetIndex(spec.AssetIndex.ID),
			URL:  spec.AssetIndex.URL,
			SHA1: spec.AssetIndex.SHA1,
			Size: spec.AssetIndex.Size,
		})
	}

	if spec.Logging != nil && spec.Logging.Client != nil {
		meta := spec.Logging.Client.Meta()
		p.add(ctx, out, Ref{
			Name: spec.Logging.Client.FileID(),
			Kind: KindLogConfig,
			Path: p.layout.LogConfig(spec.Logging.Client.FileID()),
			URL:  meta.URL,
			SHA1: meta.SHA1,
			Size: meta.Size,
		})
	}

	return out, nil
}

// add inserts a ref under the configured dedup policy, logging the loser of
// any collision. Collisions are expected with inheriting manifests and are
// never an error.
func (p *Planner) add(ctx context.Context, out *Plan, ref Ref) {
	kept, displaced := out.Add(ref, p.dedup)
	logger := ctxlog.FromContext(ctx)
	switch {
	case displaced != nil:
		logger.Debug("Duplicate artifact path, replacing earlier entry.",
			"path", ref.Path, "kept", ref.Name, "discarded", displaced.Name)
	case !kept:
		logger.Debug("Duplicate artifact path, keeping earlier entry.",
			"path", ref.Path, "discarded", ref.Name)
	}
}

// libraryRefs produces the main artifact and/or native artifact for one
// surviving library entry.
func (p *Planner) libraryRefs(lib resolve.Library) ([]Ref, error) {
	var refs []Ref

	switch {
	case lib.Downloads != nil && lib.Downloads.Artifact != nil:
		a := lib.Downloads.Artifact
		refs = append(refs, Ref{
			Name:  lib.Name,
			Kind:  KindLibrary,
			Path:  p.layout.Library(a.Path),
			URL:   a.URL,
			SHA1:  a.SHA1,
			Size:  a.Size,
			Depth: lib.Depth,
		})
	case lib.Downloads == nil:
		// Coordinate-only entry: derive path and URL from the maven name
		// against the entry's repository or the default one.
		coord, err := manifest.ParseCoordinate(lib.Name)
		if err != nil {
			return nil, err
		}
		repo := lib.URL
		if repo == "" {
			repo = p.libraryRepo
		}
		if !strings.HasSuffix(repo, "/") {
			repo += "/"
		}
		rel := coord.JarPath()
		refs = append(refs, Ref{
			Name:  lib.Name,
			Kind:  KindLibrary,
			Path:  p.layout.Library(rel),
			URL:   repo + rel,
			SHA1:  "", // unknown; verified by size/presence only
			Size:  -1,
			Depth: lib.Depth,
		})
	}

	if native := p.nativeRef(lib); native != nil {
		refs = append(refs, *native)
	}
	return refs, nil
}

// nativeRef selects the platform classifier for a library that ships
// per-platform native archives. No matching classifier means the library is
// platform-agnostic here, which is not an error.
func (p *Planner) nativeRef(lib resolve.Library) *Ref {
	if lib.Natives == nil || lib.Downloads == nil {
		return nil
	}
	template, ok := lib.Natives[p.rctx.Platform.OSName]
	if !ok {
		return nil
	}
	classifier := strings.ReplaceAll(template, "${arch}", p.rctx.Platform.NativeClassifierArch())
	meta, ok := lib.Downloads.Classifiers[classifier]
	if !ok {
		return nil
	}
	return &Ref{
		Name:    lib.Name + ":" + classifier,
		Kind:    KindNative,
		Path:    p.layout.Library(meta.Path),
		URL:     meta.URL,
		SHA1:    meta.SHA1,
		Size:    meta.Size,
		Depth:   lib.Depth,
		Extract: lib.Extract,
	}
}
