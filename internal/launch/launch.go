// Package launch assembles the final process invocation from the effective
// version spec, the materialized artifact plan and an externally supplied
// session. It performs no I/O: the output is a value the caller hands to
// whatever actually spawns the game.
package launch

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/vk/launchcraft/internal/layout"
	"github.com/vk/launchcraft/internal/manifest"
	"github.com/vk/launchcraft/internal/plan"
	"github.com/vk/launchcraft/internal/resolve"
	"github.com/vk/launchcraft/internal/rules"
)

// Session is the opaque credential bundle produced by the external auth
// flow. Fields are consumed purely as substitution values; nothing here
// validates or refreshes them.
type Session struct {
	PlayerName  string
	UUID        string
	AccessToken string
	UserType    string
	XUID        string
	ClientID    string
}

// MissingSubstitutionError reports an argument template referencing a key
// with no supplied value. Failing loudly beats launching with a silently
// blank argument.
type MissingSubstitutionError struct {
	Key string
}

// Error implements the error interface.
func (e *MissingSubstitutionError) Error() string {
	return fmt.Sprintf("argument template references unknown substitution key %q", e.Key)
}

// Spec is the assembled launch command: everything an external process
// collaborator needs to spawn the game.
type Spec struct {
	Executable string
	JVMArgs    []string
	MainClass  string
	GameArgs   []string
	WorkingDir string
	Env        map[string]string
}

// Argv returns the full argument vector, executable first.
func (s *Spec) Argv() []string {
	argv := make([]string, 0, 2+len(s.JVMArgs)+len(s.GameArgs))
	argv = append(argv, s.Executable)
	argv = append(argv, s.JVMArgs...)
	argv = append(argv, s.MainClass)
	argv = append(argv, s.GameArgs...)
	return argv
}

// Options are the launcher-side knobs that feed substitution values.
type Options struct {
	GameDir         string
	JavaExecutable  string
	MinMemory       string
	MaxMemory       string
	ResolutionW     int
	ResolutionH     int
	QuickPlayServer string
	QuickPlayPort   int
	LauncherName    string
	LauncherVersion string
}

// legacyJVMArgs is the implicit JVM template for manifests that predate the
// split arguments object.
var legacyJVMArgs = []string{
	"-Djava.library.path=${natives_directory}",
	"-cp",
	"${classpath}",
}

var placeholderRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// Assembler builds launch specs for one install layout and rule context.
type Assembler struct {
	layout layout.Layout
	rctx   rules.Context
}

// NewAssembler builds an Assembler.
func NewAssembler(l layout.Layout, rctx rules.Context) *Assembler {
	return &Assembler{layout: l, rctx: rctx}
}

// Assemble produces the launch spec. Templated arguments pass through the
// same rule evaluator as libraries did during planning; every ${key}
// placeholder must resolve or assembly fails with MissingSubstitutionError.
func (a *Assembler) Assemble(vspec *resolve.Spec, pl *plan.Plan, session Session, opts Options) (*Spec, error) {
	if vspec.MainClass == "" {
		return nil, fmt.Errorf("version %q resolved without a main class", vspec.ID)
	}

	subs := a.substitutions(vspec, pl, session, opts)

	jvmTemplates := vspec.JVMArgs
	if len(jvmTemplates) == 0 {
		jvmTemplates = plainArgs(legacyJVMArgs)
	}
	jvmArgs, err := a.expand(jvmTemplates, subs)
	if err != nil {
		return nil, err
	}
	jvmArgs = append(a.memoryArgs(opts), jvmArgs...)

	if vspec.Logging != nil && vspec.Logging.Client != nil && vspec.Logging.Client.Argument != "" {
		logSubs := map[string]string{"path": a.layout.LogConfig(vspec.Logging.Client.FileID())}
		logArg, err := substitute(vspec.Logging.Client.Argument, logSubs)
		if err != nil {
			return nil, err
		}
		jvmArgs = append(jvmArgs, logArg)
	}

	gameTemplates := vspec.GameArgs
	if len(gameTemplates) == 0 && vspec.MinecraftArguments != "" {
		gameTemplates = plainArgs(strings.Fields(vspec.MinecraftArguments))
	}
	gameArgs, err := a.expand(gameTemplates, subs)
	if err != nil {
		return nil, err
	}

	if opts.QuickPlayServer != "" {
		gameArgs = append(gameArgs, "--server", opts.QuickPlayServer)
		if opts.QuickPlayPort > 0 {
			gameArgs = append(gameArgs, "--port", strconv.Itoa(opts.QuickPlayPort))
		}
	}

	executable := opts.JavaExecutable
	if executable == "" {
		executable = "java"
	}

	return &Spec{
		Executable: executable,
		JVMArgs:    jvmArgs,
		MainClass:  vspec.MainClass,
		GameArgs:   gameArgs,
		WorkingDir: opts.GameDir,
		Env:        map[string]string{},
	}, nil
}

// substitutions builds the full placeholder table for one launch.
func (a *Assembler) substitutions(vspec *resolve.Spec, pl *plan.Plan, session Session, opts Options) map[string]string {
	sep := a.rctx.Platform.ClasspathSeparator()
	nativesDir := a.layout.NativesDir(vspec.ID)

	assetsIndex := vspec.Assets
	if vspec.AssetIndex != nil {
		assetsIndex = vspec.AssetIndex.ID
	}

	launcherName := opts.LauncherName
	if launcherName == "" {
		launcherName = "launchcraft"
	}

	subs := map[string]string{
		"classpath":           strings.Join(pl.Classpath(), sep),
		"classpath_separator": sep,
		"natives_directory":   nativesDir,
		"launcher_name":       launcherName,
		"launcher_version":    opts.LauncherVersion,
		"version_name":        vspec.ID,
		"version_type":        vspec.Type,
		"game_directory":      opts.GameDir,
		"assets_root":         filepath.Join(a.layout.Root, "assets"),
		"assets_index_name":   assetsIndex,
		"game_assets":         a.layout.VirtualAsset(assetsIndex, ""),
		"library_directory":   a.layout.Library(""),
		"auth_player_name":    session.PlayerName,
		"auth_uuid":           session.UUID,
		"auth_access_token":   session.AccessToken,
		"auth_session":        "token:" + session.AccessToken,
		"auth_xuid":           session.XUID,
		"clientid":            session.ClientID,
		"user_type":           session.UserType,
		"user_properties":     "{}",
	}
	if opts.ResolutionW > 0 {
		subs["resolution_width"] = strconv.Itoa(opts.ResolutionW)
	}
	if opts.ResolutionH > 0 {
		subs["resolution_height"] = strconv.Itoa(opts.ResolutionH)
	}
	return subs
}

// memoryArgs returns the heap flags derived from the options.
func (a *Assembler) memoryArgs(opts Options) []string {
	var args []string
	if opts.MinMemory != "" {
		args = append(args, "-Xms"+opts.MinMemory)
	}
	if opts.MaxMemory != "" {
		args = append(args, "-Xmx"+opts.MaxMemory)
	}
	return args
}

// plainArgs lifts bare strings into unconditional argument templates.
func plainArgs(values []string) []manifest.Argument {
	out := make([]manifest.Argument, len(values))
	for i, v := range values {
		out[i] = manifest.Argument{Values: []string{v}}
	}
	return out
}

// expand rule-filters each template and substitutes its placeholders.
func (a *Assembler) expand(templates []manifest.Argument, subs map[string]string) ([]string, error) {
	var out []string
	for _, tmpl := range templates {
		if !rules.Evaluate(tmpl.Rules, a.rctx) {
			continue
		}
		for _, value := range tmpl.Values {
			expanded, err := substitute(value, subs)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded)
		}
	}
	return out, nil
}

// substitute replaces every ${key} in value, failing on the first key with
// no entry in subs.
func substitute(value string, subs map[string]string) (string, error) {
	var missing *MissingSubstitutionError
	expanded := placeholderRe.ReplaceAllStringFunc(value, func(match string) string {
		key := match[2 : len(match)-1]
		replacement, ok := subs[key]
		if !ok {
			if missing == nil {
				missing = &MissingSubstitutionError{Key: key}
			}
			return match
		}
		return replacement
	})
	if missing != nil {
		return "", missing
	}
	return expanded, nil
}
