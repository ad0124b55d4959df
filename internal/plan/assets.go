package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/vk/launchcraft/internal/ctxlog"
)

// DefaultResourceURL is the content-addressed store asset objects are
// fetched from, keyed by the first two hex digits of their hash.
const DefaultResourceURL = "https://resources.download.minecraft.net/"

// assetObject is one entry of an asset index's objects map.
type assetObject struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// assetIndexDoc is the parsed asset index file. The virtual and
// map_to_resources flags mark legacy layouts that additionally need
// name-addressed copies of every object.
type assetIndexDoc struct {
	Virtual        bool                   `json:"virtual,omitempty"`
	MapToResources bool                   `json:"map_to_resources,omitempty"`
	Objects        map[string]assetObject `json:"objects"`
}

// ExpandAssetIndex parses a materialized asset index and returns the refs
// for its individual objects. This is the second planning phase: it can only
// run after the index artifact itself reached verified. Objects referenced
// under several names collapse into one ref carrying every extra copy path.
func (p *Planner) ExpandAssetIndex(ctx context.Context, indexID string, data []byte, gameDir string) ([]Ref, error) {
	logger := ctxlog.FromContext(ctx)

	var doc assetIndexDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed asset index %q: %w", indexID, err)
	}

	names := make([]string, 0, len(doc.Objects))
	for name := range doc.Objects {
		names = append(names, name)
	}
	sort.Strings(names)

	byHash := make(map[string]int)
	var refs []Ref
	for _, name := range names {
		obj := doc.Objects[name]
		if len(obj.Hash) < 2 {
			return nil, fmt.Errorf("asset index %q: object %q has invalid hash %q", indexID, name, obj.Hash)
		}

		var copyTo []string
		if doc.Virtual {
			copyTo = append(copyTo, p.layout.VirtualAsset(indexID, name))
		}
		if doc.MapToResources && gameDir != "" {
			copyTo = append(copyTo, p.layout.ResourceAsset(gameDir, name))
		}

		if at, ok := byHash[obj.Hash]; ok {
			refs[at].CopyTo = append(refs[at].CopyTo, copyTo...)
			continue
		}
		byHash[obj.Hash] = len(refs)
		refs = append(refs, Ref{
			Name:   name,
			Kind:   KindAsset,
			Path:   p.layout.AssetObject(obj.Hash),
			URL:    DefaultResourceURL + obj.Hash[:2] + "/" + obj.Hash,
			SHA1:   obj.Hash,
			Size:   obj.Size,
			CopyTo: copyTo,
		})
	}

	logger.Debug("Asset index expanded.", "index", indexID, "objects", len(doc.Objects), "unique", len(refs))
	return refs, nil
}
