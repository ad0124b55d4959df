package resolve

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/launchcraft/internal/layout"
	"github.com/vk/launchcraft/internal/manifest"
	"github.com/vk/launchcraft/internal/remote"
)

// seedStore writes raw version descriptors into a temp install root and
// returns a store backed by it. The HTTP client is never exercised because
// every id is served from cache.
func seedStore(t *testing.T, descriptors map[string]string) *manifest.Store {
	t.Helper()
	root := t.TempDir()
	lay := layout.New(root)
	for id, body := range descriptors {
		path := lay.VersionManifest(id)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return manifest.NewStore(lay, remote.NewClient(time.Second))
}

func TestResolveScalarMerge(t *testing.T) {
	// Child redefines mainClass; parent supplies the asset index.
	store := seedStore(t, map[string]string{
		"1.20-common": `{
			"id": "1.20-common",
			"mainClass": "net.game.client.CommonMain",
			"assetIndex": {"id": "8", "url": "https://example.test/8.json", "sha1": "aa", "size": 10}
		}`,
		"1.20": `{
			"id": "1.20",
			"inheritsFrom": "1.20-common",
			"mainClass": "net.game.client.Main"
		}`,
	})

	spec, err := NewResolver(store).Resolve(context.Background(), "1.20")
	require.NoError(t, err)

	assert.Equal(t, "1.20", spec.ID)
	assert.Equal(t, []string{"1.20-common", "1.20"}, spec.Chain)
	assert.Equal(t, "net.game.client.Main", spec.MainClass)
	require.NotNil(t, spec.AssetIndex)
	assert.Equal(t, "8", spec.AssetIndex.ID)
}

func TestResolveLibraryAndArgumentConcatenation(t *testing.T) {
	store := seedStore(t, map[string]string{
		"base": `{
			"id": "base",
			"mainClass": "Main",
			"libraries": [{"name": "org.example:base-lib:1.0"}],
			"arguments": {"game": ["--baseArg"], "jvm": ["-Dbase=1"]}
		}`,
		"child": `{
			"id": "child",
			"inheritsFrom": "base",
			"libraries": [{"name": "org.example:child-lib:2.0"}],
			"arguments": {"game": ["--childArg"]}
		}`,
	})

	spec, err := NewResolver(store).Resolve(context.Background(), "child")
	require.NoError(t, err)

	require.Len(t, spec.Libraries, 2)
	assert.Equal(t, "org.example:base-lib:1.0", spec.Libraries[0].Name)
	assert.Equal(t, 0, spec.Libraries[0].Depth)
	assert.Equal(t, "org.example:child-lib:2.0", spec.Libraries[1].Name)
	assert.Equal(t, 1, spec.Libraries[1].Depth)

	require.Len(t, spec.GameArgs, 2)
	assert.Equal(t, []string{"--baseArg"}, spec.GameArgs[0].Values)
	assert.Equal(t, []string{"--childArg"}, spec.GameArgs[1].Values)
	require.Len(t, spec.JVMArgs, 1)
}

func TestResolveLegacyArgumentsReplace(t *testing.T) {
	store := seedStore(t, map[string]string{
		"old-base":  `{"id": "old-base", "mainClass": "Main", "minecraftArguments": "--username ${auth_player_name}"}`,
		"old-child": `{"id": "old-child", "inheritsFrom": "old-base", "minecraftArguments": "--username ${auth_player_name} --demo"}`,
	})

	spec, err := NewResolver(store).Resolve(context.Background(), "old-child")
	require.NoError(t, err)
	assert.Equal(t, "--username ${auth_player_name} --demo", spec.MinecraftArguments)
}

func TestResolveCycleFails(t *testing.T) {
	store := seedStore(t, map[string]string{
		"a": `{"id": "a", "inheritsFrom": "b"}`,
		"b": `{"id": "b", "inheritsFrom": "a"}`,
	})

	_, err := NewResolver(store).Resolve(context.Background(), "a")
	var cyclic *CyclicInheritanceError
	require.ErrorAs(t, err, &cyclic)
	assert.Equal(t, []string{"a", "b", "a"}, cyclic.Chain)
}

func TestResolveSelfInheritanceFails(t *testing.T) {
	store := seedStore(t, map[string]string{
		"selfish": `{"id": "selfish", "inheritsFrom": "selfish"}`,
	})

	_, err := NewResolver(store).Resolve(context.Background(), "selfish")
	var cyclic *CyclicInheritanceError
	require.ErrorAs(t, err, &cyclic)
}

func TestResolveDepthCap(t *testing.T) {
	descriptors := map[string]string{
		"v0": `{"id": "v0"}`,
	}
	for i := 1; i <= 5; i++ {
		parent := "v" + string(rune('0'+i-1))
		id := "v" + string(rune('0'+i))
		body, _ := json.Marshal(map[string]string{"id": id, "inheritsFrom": parent})
		descriptors[id] = string(body)
	}
	store := seedStore(t, descriptors)

	_, err := NewResolver(store, WithMaxDepth(3)).Resolve(context.Background(), "v5")
	var tooDeep *InheritanceTooDeepError
	require.ErrorAs(t, err, &tooDeep)
	assert.Equal(t, 3, tooDeep.MaxDepth)

	_, err = NewResolver(store).Resolve(context.Background(), "v5")
	assert.NoError(t, err)
}

func TestResolveMissingParentFails(t *testing.T) {
	store := seedStore(t, map[string]string{
		"orphan": `{"id": "orphan", "inheritsFrom": "no-such-parent"}`,
	})

	_, err := NewResolver(store).Resolve(context.Background(), "orphan")
	require.Error(t, err)
}

func TestResolveIsDeterministic(t *testing.T) {
	store := seedStore(t, map[string]string{
		"det-base": `{
			"id": "det-base",
			"mainClass": "Main",
			"assetIndex": {"id": "3", "url": "u", "sha1": "s", "size": 1},
			"libraries": [{"name": "a:b:1"}, {"name": "c:d:2"}],
			"arguments": {"game": ["--one", "--two"], "jvm": ["-Dx=y"]},
			"downloads": {"client": {"sha1": "cc", "size": 5, "url": "https://example.test/c.jar"}}
		}`,
		"det-leaf": `{
			"id": "det-leaf",
			"inheritsFrom": "det-base",
			"libraries": [{"name": "e:f:3"}]
		}`,
	})

	resolver := NewResolver(store)
	first, err := resolver.Resolve(context.Background(), "det-leaf")
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), "det-leaf")
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(first, second))
}
