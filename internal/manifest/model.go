package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vk/launchcraft/internal/rules"
)

// ArtifactMeta is the download descriptor the schema attaches to every
// fetchable file: a repository-relative path, SHA-1 digest, byte size and
// absolute URL.
type ArtifactMeta struct {
	Path string `json:"path,omitempty"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// AssetIndexRef points at the asset index file for a version.
type AssetIndexRef struct {
	ID        string `json:"id"`
	SHA1      string `json:"sha1"`
	Size      int64  `json:"size"`
	TotalSize int64  `json:"totalSize,omitempty"`
	URL       string `json:"url"`
}

// JavaVersion is the runtime requirement a version declares.
type JavaVersion struct {
	Component    string `json:"component"`
	MajorVersion int    `json:"majorVersion"`
}

// Library is one dependency entry. Older manifests carry only a maven
// coordinate in Name plus an optional repository URL; newer ones spell out
// the artifact and per-platform native classifiers under Downloads.
type Library struct {
	Name      string            `json:"name"`
	URL       string            `json:"url,omitempty"`
	Downloads *LibraryDownloads `json:"downloads,omitempty"`
	Natives   map[string]string `json:"natives,omitempty"`
	Rules     []rules.Rule      `json:"rules,omitempty"`
	Extract   *Extract          `json:"extract,omitempty"`
}

// LibraryDownloads holds the main artifact and any native classifiers.
type LibraryDownloads struct {
	Artifact    *ArtifactMeta           `json:"artifact,omitempty"`
	Classifiers map[string]ArtifactMeta `json:"classifiers,omitempty"`
}

// Extract lists path prefixes excluded when unpacking a native archive.
type Extract struct {
	Exclude []string `json:"exclude,omitempty"`
}

// Coordinate is a parsed maven-style library name.
type Coordinate struct {
	Group      string
	Artifact   string
	Version    string
	Classifier string
}

// ParseCoordinate splits "group:artifact:version[:classifier]".
func ParseCoordinate(name string) (Coordinate, error) {
	parts := strings.Split(name, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return Coordinate{}, fmt.Errorf("malformed library coordinate %q", name)
	}
	c := Coordinate{Group: parts[0], Artifact: parts[1], Version: parts[2]}
	if len(parts) == 4 {
		c.Classifier = parts[3]
	}
	return c, nil
}

// Base returns the coordinate without its classifier. Two library entries
// with the same base refer to the same logical dependency.
func (c Coordinate) Base() string {
	return c.Group + ":" + c.Artifact + ":" + c.Version
}

// JarPath returns the repository-relative path of the coordinate's jar.
func (c Coordinate) JarPath() string {
	file := c.Artifact + "-" + c.Version
	if c.Classifier != "" {
		file += "-" + c.Classifier
	}
	return strings.ReplaceAll(c.Group, ".", "/") + "/" + c.Artifact + "/" + c.Version + "/" + file + ".jar"
}

// Argument is one entry of a jvm or game argument template list. Plain
// string entries have no rules; object entries gate one or more values
// behind a rule list.
type Argument struct {
	Values []string
	Rules  []rules.Rule
}

// UnmarshalJSON accepts the schema's three argument encodings: a bare
// string, an object with a string value, and an object with a value array.
func (a *Argument) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Values = []string{s}
		a.Rules = nil
		return nil
	}
	var obj struct {
		Rules []rules.Rule    `json:"rules"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	a.Rules = obj.Rules
	var one string
	if err := json.Unmarshal(obj.Value, &one); err == nil {
		a.Values = []string{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(obj.Value, &many); err != nil {
		return fmt.Errorf("argument value is neither string nor string array: %w", err)
	}
	a.Values = many
	return nil
}

// MarshalJSON re-encodes the argument in its most compact schema form.
func (a Argument) MarshalJSON() ([]byte, error) {
	if len(a.Rules) == 0 && len(a.Values) == 1 {
		return json.Marshal(a.Values[0])
	}
	return json.Marshal(struct {
		Rules []rules.Rule `json:"rules,omitempty"`
		Value []string     `json:"value"`
	}{a.Rules, a.Values})
}

// Arguments holds the modern split argument templates.
type Arguments struct {
	Game []Argument `json:"game,omitempty"`
	JVM  []Argument `json:"jvm,omitempty"`
}

// logFile carries the schema's extra id field on the logging file object.
type logFile struct {
	ID string `json:"id"`
	ArtifactMeta
}

// Logging maps logging targets (in practice only "client") to their configs.
type Logging struct {
	Client *ClientLogging `json:"client,omitempty"`
}

// ClientLogging is the client-side logging configuration entry.
type ClientLogging struct {
	Argument string  `json:"argument"`
	File     logFile `json:"file"`
	Type     string  `json:"type"`
}

// FileID returns the id the log config file is cached under.
func (c *ClientLogging) FileID() string {
	return c.File.ID
}

// Meta returns the download metadata of the log config file.
func (c *ClientLogging) Meta() ArtifactMeta {
	return c.File.ArtifactMeta
}

// VersionDescriptor is one parsed version manifest. It is immutable after
// parse; the resolver merges descriptors into a separate effective spec
// rather than mutating them.
type VersionDescriptor struct {
	ID                     string                  `json:"id"`
	InheritsFrom           string                  `json:"inheritsFrom,omitempty"`
	Type                   string                  `json:"type,omitempty"`
	MainClass              string                  `json:"mainClass,omitempty"`
	Assets                 string                  `json:"assets,omitempty"`
	AssetIndex             *AssetIndexRef          `json:"assetIndex,omitempty"`
	Downloads              map[string]ArtifactMeta `json:"downloads,omitempty"`
	Libraries              []Library               `json:"libraries,omitempty"`
	Arguments              *Arguments              `json:"arguments,omitempty"`
	MinecraftArguments     string                  `json:"minecraftArguments,omitempty"`
	JavaVersion            *JavaVersion            `json:"javaVersion,omitempty"`
	Logging                *Logging                `json:"logging,omitempty"`
	MinimumLauncherVersion int                     `json:"minimumLauncherVersion,omitempty"`
	ReleaseTime            string                  `json:"releaseTime,omitempty"`
}
