// Package plan turns an effective version spec into the deduplicated,
// ordered set of artifacts a launch needs on disk, and computes the
// classpath ordering from the survivors.
package plan

import (
	"fmt"

	"github.com/vk/launchcraft/internal/manifest"
)

// Kind tags what role an artifact plays in the install tree.
type Kind string

const (
	KindLibrary    Kind = "library"
	KindNative     Kind = "native"
	KindClientJar  Kind = "client-jar"
	KindAssetIndex Kind = "asset-index"
	KindAsset      Kind = "asset"
	KindLogConfig  Kind = "log-config"
)

// Ref is one planned artifact: logical identity, local target path, source
// URL and the expected size and digest used for verification.
type Ref struct {
	Name string
	Kind Kind
	Path string
	URL  string
	SHA1 string
	Size int64

	// Depth is the inheritance chain depth of the manifest that contributed
	// this ref; the dedup policy consults it on path collisions.
	Depth int

	// Extract carries native archive exclusion prefixes (natives only).
	Extract *manifest.Extract

	// CopyTo lists extra name-addressed paths legacy asset indexes require
	// the object to be mirrored at after download.
	CopyTo []string
}

// ID is the stable identity used in progress and error reporting.
func (r Ref) ID() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.Name)
}

// Plan is an ordered, path-deduplicated artifact sequence.
type Plan struct {
	Refs []Ref

	index map[string]int // (kind, path) -> position in Refs
}

// NewPlan returns an empty plan.
func NewPlan() *Plan {
	return &Plan{index: make(map[string]int)}
}

func dedupKey(kind Kind, path string) string {
	return string(kind) + "\x00" + path
}

// Add inserts ref, resolving local-path collisions with the given policy.
// A replaced ref keeps the position of the entry it displaces, so classpath
// order stays stable across inheritance overrides. Add reports whether the
// ref survived and, on a collision, the ref that lost.
func (p *Plan) Add(ref Ref, policy DedupPolicy) (kept bool, displaced *Ref) {
	key := dedupKey(ref.Kind, ref.Path)
	if at, ok := p.index[key]; ok {
		existing := p.Refs[at]
		if policy == DedupFirstWins || ref.Depth < existing.Depth {
			return false, nil
		}
		p.Refs[at] = ref
		return true, &existing
	}
	p.index[key] = len(p.Refs)
	p.Refs = append(p.Refs, ref)
	return true, nil
}

// Classpath returns library paths in plan order with the client jar last.
// Native archives are not class-loadable and are excluded.
func (p *Plan) Classpath() []string {
	var cp []string
	var clientJar string
	for _, ref := range p.Refs {
		switch ref.Kind {
		case KindLibrary:
			cp = append(cp, ref.Path)
		case KindClientJar:
			clientJar = ref.Path
		}
	}
	if clientJar != "" {
		cp = append(cp, clientJar)
	}
	return cp
}

// Natives returns the native archive refs in plan order.
func (p *Plan) Natives() []Ref {
	var out []Ref
	for _, ref := range p.Refs {
		if ref.Kind == KindNative {
			out = append(out, ref)
		}
	}
	return out
}

// AssetIndexRef returns the asset index ref, if the plan has one.
func (p *Plan) AssetIndexRef() (Ref, bool) {
	for _, ref := range p.Refs {
		if ref.Kind == KindAssetIndex {
			return ref, true
		}
	}
	return Ref{}, false
}

// TotalSize sums the known sizes of all planned artifacts.
func (p *Plan) TotalSize() int64 {
	var total int64
	for _, ref := range p.Refs {
		if ref.Size > 0 {
			total += ref.Size
		}
	}
	return total
}
