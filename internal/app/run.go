package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vk/launchcraft/internal/ctxlog"
	"github.com/vk/launchcraft/internal/download"
	"github.com/vk/launchcraft/internal/launch"
	"github.com/vk/launchcraft/internal/layout"
	"github.com/vk/launchcraft/internal/manifest"
	"github.com/vk/launchcraft/internal/plan"
	"github.com/vk/launchcraft/internal/platform"
	"github.com/vk/launchcraft/internal/remote"
	"github.com/vk/launchcraft/internal/resolve"
	"github.com/vk/launchcraft/internal/rules"
)

// requestTimeout bounds a single artifact or manifest request. Generous
// because the client jar is tens of megabytes on slow links.
const requestTimeout = 5 * time.Minute

// Run executes the resolution-and-launch pipeline: resolve the version
// chain, plan artifacts, materialize them, assemble the launch spec and
// print it for the external process launcher.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	lay := layout.New(a.cfg.InstallRoot)
	client := remote.NewClient(requestTimeout)
	defer client.Close()

	var storeOpts []manifest.Option
	if a.file.IndexURL != "" {
		storeOpts = append(storeOpts, manifest.WithIndexURL(a.file.IndexURL))
	}
	store := manifest.NewStore(lay, client, storeOpts...)

	a.logger.Info("Resolving version.", "version", a.cfg.VersionID)
	resolver := resolve.NewResolver(store)
	vspec, err := resolver.Resolve(ctx, a.cfg.VersionID)
	if err != nil {
		return fmt.Errorf("failed to resolve version %q: %w", a.cfg.VersionID, err)
	}
	a.logger.Info("Version resolved.", "version", vspec.ID, "chain", vspec.Chain, "main_class", vspec.MainClass)

	rctx := rules.Context{Platform: platform.Host(), Features: a.features}

	var planOpts []plan.Option
	if a.file.DedupPolicy != "" {
		planOpts = append(planOpts, plan.WithDedupPolicy(plan.DedupPolicy(a.file.DedupPolicy)))
	}
	planner := plan.NewPlanner(lay, rctx, planOpts...)
	artifactPlan, err := planner.Plan(ctx, vspec)
	if err != nil {
		return fmt.Errorf("failed to plan artifacts: %w", err)
	}
	a.logger.Info("Artifact plan built.", "artifacts", len(artifactPlan.Refs))

	if a.cfg.DryRun {
		return a.printPlan(artifactPlan)
	}

	var orchOpts []download.Option
	if a.cfg.Workers > 0 {
		orchOpts = append(orchOpts, download.WithWorkers(a.cfg.Workers))
	}
	orchOpts = append(orchOpts, download.WithProgress(a.progressLogger()))
	orchestrator := download.NewOrchestrator(client, orchOpts...)

	expand := func(ctx context.Context, indexData []byte) ([]plan.Ref, error) {
		return planner.ExpandAssetIndex(ctx, vspec.AssetIndex.ID, indexData, a.cfg.GameDir)
	}
	if vspec.AssetIndex == nil {
		expand = nil
	}

	a.logger.Info("Materializing artifacts.", "workers", a.cfg.Workers)
	if _, err := orchestrator.Run(ctx, artifactPlan, expand); err != nil {
		return fmt.Errorf("failed to materialize artifacts: %w", err)
	}

	session := launch.OfflineSession(a.username())
	if a.cfg.UUID != "" {
		session.UUID = a.cfg.UUID
	}
	assembler := launch.NewAssembler(lay, rctx)
	spec, err := assembler.Assemble(vspec, artifactPlan, session, a.launchOptions())
	if err != nil {
		return fmt.Errorf("failed to assemble launch command: %w", err)
	}

	a.logger.Info("Launch command assembled.", "main_class", spec.MainClass, "jvm_args", len(spec.JVMArgs), "game_args", len(spec.GameArgs))
	return a.printLaunchSpec(spec)
}

// username returns the offline player name, defaulting when unset.
func (a *App) username() string {
	if a.cfg.Username != "" {
		return a.cfg.Username
	}
	return "Player"
}

// launchOptions maps app configuration onto assembler options.
func (a *App) launchOptions() launch.Options {
	opts := launch.Options{
		GameDir:         a.cfg.GameDir,
		QuickPlayServer: a.cfg.Server,
		QuickPlayPort:   a.cfg.Port,
		LauncherName:    "launchcraft",
		LauncherVersion: "1",
	}
	if a.file.JVM != nil {
		opts.JavaExecutable = a.file.JVM.Executable
		opts.MinMemory = a.file.JVM.MinMemory
		opts.MaxMemory = a.file.JVM.MaxMemory
	}
	if a.file.Resolution != nil {
		opts.ResolutionW = a.file.Resolution.Width
		opts.ResolutionH = a.file.Resolution.Height
	}
	return opts
}

// progressLogger adapts orchestrator events onto the app logger.
func (a *App) progressLogger() download.ProgressFunc {
	return func(ev download.Event) {
		switch ev.State {
		case download.Fetching:
			a.logger.Debug("Fetching artifact.", "artifact", ev.Ref.ID())
		case download.Failed:
			a.logger.Error("Artifact failed.", "artifact", ev.Ref.ID(), "error", ev.Err)
		}
	}
}

// printPlan writes a dry-run plan summary to stdout.
func (a *App) printPlan(p *plan.Plan) error {
	type row struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
		Path string `json:"path"`
		URL  string `json:"url"`
		Size int64  `json:"size,omitempty"`
	}
	rows := make([]row, 0, len(p.Refs))
	for _, ref := range p.Refs {
		rows = append(rows, row{ID: ref.ID(), Kind: string(ref.Kind), Path: ref.Path, URL: ref.URL, Size: ref.Size})
	}
	enc := json.NewEncoder(a.outW)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// printLaunchSpec writes the assembled command to stdout as JSON for the
// external process-launching collaborator.
func (a *App) printLaunchSpec(spec *launch.Spec) error {
	out := struct {
		Executable string            `json:"executable"`
		Argv       []string          `json:"argv"`
		WorkingDir string            `json:"working_dir"`
		Env        map[string]string `json:"env"`
	}{
		Executable: spec.Executable,
		Argv:       spec.Argv(),
		WorkingDir: spec.WorkingDir,
		Env:        spec.Env,
	}
	enc := json.NewEncoder(a.outW)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
