// Package layout derives every on-disk path under the install root. The
// scheme is deliberately a pure function of the inputs so that repeated runs
// resolve identical paths and hash verification can short-circuit downloads.
package layout

import "path/filepath"

// Layout maps logical artifact identities onto paths below one install root.
type Layout struct {
	Root string
}

// New returns a Layout rooted at dir.
func New(dir string) Layout {
	return Layout{Root: dir}
}

// VersionDir is the cache directory for one version's metadata and jar.
func (l Layout) VersionDir(id string) string {
	return filepath.Join(l.Root, "versions", id)
}

// VersionManifest is the cached descriptor path for a version id.
func (l Layout) VersionManifest(id string) string {
	return filepath.Join(l.VersionDir(id), id+".json")
}

// VersionJar is the client jar path for a version id.
func (l Layout) VersionJar(id string) string {
	return filepath.Join(l.VersionDir(id), id+".jar")
}

// Library resolves a manifest-relative library path ("com/foo/bar/1.0/x.jar").
func (l Layout) Library(rel string) string {
	return filepath.Join(l.Root, "libraries", filepath.FromSlash(rel))
}

// NativesDir is the per-version extraction directory for native binaries.
func (l Layout) NativesDir(id string) string {
	return filepath.Join(l.VersionDir(id), "natives")
}

// AssetIndex is the path of a downloaded asset index file.
func (l Layout) AssetIndex(id string) string {
	return filepath.Join(l.Root, "assets", "indexes", id+".json")
}

// AssetObject is the content-addressed path for an asset hash.
func (l Layout) AssetObject(hash string) string {
	return filepath.Join(l.Root, "assets", "objects", hash[:2], hash)
}

// VirtualAsset is the name-addressed copy used by legacy versions whose
// asset index sets the virtual flag.
func (l Layout) VirtualAsset(indexID, name string) string {
	return filepath.Join(l.Root, "assets", "virtual", indexID, filepath.FromSlash(name))
}

// ResourceAsset is the in-game-directory copy used by ancient versions whose
// asset index sets map_to_resources.
func (l Layout) ResourceAsset(gameDir, name string) string {
	return filepath.Join(gameDir, "resources", filepath.FromSlash(name))
}

// LogConfig is the path of a downloaded logging configuration file.
func (l Layout) LogConfig(id string) string {
	return filepath.Join(l.Root, "assets", "log_configs", id)
}
