// Package config loads the optional launcher configuration file. The file
// is HCL; CLI flags overlay whatever it sets, and a missing file simply
// yields defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
)

// JVM configures the Java runtime invocation.
type JVM struct {
	Executable string `hcl:"executable,optional"`
	MinMemory  string `hcl:"min_memory,optional"`
	MaxMemory  string `hcl:"max_memory,optional"`
}

// Resolution sets the game window geometry, gated behind the
// has_custom_resolution feature in argument templates.
type Resolution struct {
	Width  int `hcl:"width"`
	Height int `hcl:"height"`
}

// featuresBlock keeps the feature flags as raw HCL so arbitrary flag names
// can be declared without a fixed schema.
type featuresBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// File is the decoded launcher configuration.
type File struct {
	InstallRoot string         `hcl:"install_root,optional"`
	Workers     int            `hcl:"workers,optional"`
	DedupPolicy string         `hcl:"dedup_policy,optional"`
	IndexURL    string         `hcl:"index_url,optional"`
	JVM         *JVM           `hcl:"jvm,block"`
	Features    *featuresBlock `hcl:"features,block"`
	Resolution  *Resolution    `hcl:"resolution,block"`
}

// Load decodes the config file at path. An empty path or a missing file
// returns a zero-value File rather than an error.
func Load(path string) (*File, error) {
	var f File
	if path == "" {
		return &f, nil
	}
	src, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &f, nil
	}
	if err != nil {
		return nil, err
	}
	if err := hclsimple.Decode(path, src, nil, &f); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return &f, nil
}

// FeatureMap evaluates the features block into a flag map. Only boolean
// literals are meaningful; anything else is a config error.
func (f *File) FeatureMap() (map[string]bool, error) {
	out := make(map[string]bool)
	if f.Features == nil {
		return out, nil
	}
	attrs, diags := f.Features.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		if val.Type() != cty.Bool {
			return nil, fmt.Errorf("feature %q must be a boolean", name)
		}
		out[name] = val.True()
	}
	return out, nil
}
