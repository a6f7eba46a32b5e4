package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mabhi256/refscan/internal/graph"
	"github.com/mabhi256/refscan/internal/observability"
	"github.com/mabhi256/refscan/internal/report"
	"github.com/mabhi256/refscan/internal/results"
	"github.com/mabhi256/refscan/internal/scan"
	"github.com/mabhi256/refscan/internal/scene"
	"github.com/mabhi256/refscan/internal/tui"
	"github.com/mabhi256/refscan/utils"
)

var ErrScanCancelled = errors.New("scan cancelled")

// rootsFunc picks what to scan from a loaded project
type rootsFunc func(p *scene.Project) ([]graph.RootSpec, error)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a project for missing components and references",
}

var scanSceneCmd = &cobra.Command{
	Use:               "scene [scene-file...]",
	Short:             "Scan the given scene documents",
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: utils.CompleteFilesByExtension(scene.SceneSuffix),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, func(p *scene.Project) ([]graph.RootSpec, error) {
			roots := make([]graph.RootSpec, 0, len(args))
			for _, arg := range args {
				rel, err := projectRelative(p, arg)
				if err != nil {
					return nil, err
				}
				roots = append(roots, p.SceneRoot(rel))
			}
			return roots, nil
		})
	},
}

var scanScenesCmd = &cobra.Command{
	Use:   "scenes",
	Short: "Scan every scene enabled in the project manifest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, func(p *scene.Project) ([]graph.RootSpec, error) {
			roots := p.EnabledSceneRoots()
			if len(roots) == 0 {
				return nil, fmt.Errorf("project %q has no enabled scenes", p.Name())
			}
			return roots, nil
		})
	},
}

var scanAssetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "Scan every object in the project's asset documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, func(p *scene.Project) ([]graph.RootSpec, error) {
			return []graph.RootSpec{p.AssetRoot()}, nil
		})
	},
}

var scanAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Scan enabled scenes and all assets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, allRoots)
	},
}

var scanNodeCmd = &cobra.Command{
	Use:   "node [document] [object-path]",
	Short: "Scan one object and its children",
	Long: `Scan one object and its children. The object is named by its path of
object names inside the document, for example World/Player/Hand.`,
	Args: cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) != 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return utils.CompleteFilesByExtension(scene.SceneSuffix, scene.AssetSuffix)(cmd, args, toComplete)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, func(p *scene.Project) ([]graph.RootSpec, error) {
			rel, err := projectRelative(p, args[0])
			if err != nil {
				return nil, err
			}
			root, err := p.NodeRoot(rel, args[1])
			if err != nil {
				return nil, err
			}
			return []graph.RootSpec{root}, nil
		})
	},
}

func allRoots(p *scene.Project) ([]graph.RootSpec, error) {
	return p.AllRoots(), nil
}

// projectRelative accepts paths relative to the working directory or to the project
func projectRelative(p *scene.Project, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return filepath.ToSlash(path), nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	dir, err := filepath.Abs(p.Dir())
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(dir, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func runScan(cmd *cobra.Command, pick rootsFunc) error {
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	project, err := scene.OpenProject(ctx, projectPath, scene.Options{
		IncludeHidden: cfg.Scan.IncludeHidden,
		AssetWorkers:  cfg.Scan.AssetWorkers,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	agg := results.NewAggregator()
	opts := []scan.Option{scan.WithLogger(logger), scan.WithBatchSize(cfg.Scan.BatchSize)}
	if cfg.Scan.RetainResults {
		opts = append(opts, scan.WithRetainedResults())
	}
	engine := scan.NewEngine(project, agg, opts...)

	if cfg.Output.Format == "tui" {
		model := tui.NewModel(tui.Options{
			Title:        project.Name(),
			Engine:       engine,
			Results:      agg,
			Roots:        func() ([]graph.RootSpec, error) { return pick(project) },
			Reload:       func() error { return project.Reload(ctx) },
			StepsPerTick: cfg.Scan.StepsPerTick,
			TickInterval: cfg.Scan.TickInterval,
			Logger:       logger,
		})

		watchDir := ""
		if cfg.Watch.Enabled {
			watchDir = project.Dir()
		}
		return tui.Run(model, watchDir, cfg.Watch.Debounce)
	}

	out := cmd.OutOrStdout()
	if !cfg.Watch.Enabled {
		return scanOnce(ctx, engine, agg, project, pick, out)
	}
	return watchAndScan(ctx, engine, agg, project, pick, out, logger)
}

// scanOnce drives a session to the end and prints the report. An interrupt
// cancels the session; findings gathered so far are still printed.
func scanOnce(ctx context.Context, engine *scan.Engine, agg *results.Aggregator, project *scene.Project, pick rootsFunc, out io.Writer) error {
	roots, err := pick(project)
	if err != nil {
		return err
	}

	session, err := engine.BeginScan(roots)
	if err != nil {
		return err
	}

	var step scan.StepResult
	for !step.Done() {
		if ctx.Err() != nil {
			engine.Cancel(session)
		}
		step = engine.Advance(session)
	}

	summary := report.Summary{
		Project:   project.Name(),
		Documents: project.Documents(),
		Session:   session.ID.String(),
		State:     step.State.String(),
		Progress:  step.Progress,
		Nodes:     session.NodesVisited(),
		Elapsed:   session.Elapsed(),
		Errors:    session.Errors(),
	}

	view := agg.Snapshot()
	if cfg.Output.Format == "json" {
		err = report.JSON(out, view, summary)
	} else {
		err = report.Text(out, view, summary, report.Options{Color: cfg.Output.Color})
	}
	if err != nil {
		return err
	}

	if step.State == scan.Cancelled {
		return ErrScanCancelled
	}
	return nil
}

// watchAndScan prints a fresh report every time project files settle after
// a change, until interrupted
func watchAndScan(ctx context.Context, engine *scan.Engine, agg *results.Aggregator, project *scene.Project, pick rootsFunc, out io.Writer, logger *zap.Logger) error {
	changed := make(chan []scene.Change, 1)
	watcher, err := scene.NewWatcher(project.Dir(), cfg.Watch.Debounce, func(c []scene.Change) {
		select {
		case changed <- c:
		default:
		}
	}, logger)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	rescan := func() {
		if err := scanOnce(ctx, engine, agg, project, pick, out); err != nil && !errors.Is(err, ErrScanCancelled) {
			logger.Error("Scan failed", zap.Error(err))
		}
	}

	rescan()
	for {
		select {
		case <-ctx.Done():
			return nil
		case changes := <-changed:
			logger.Info("Project changed, rescanning", zap.Int("files", len(changes)))
			if err := project.Reload(ctx); err != nil {
				logger.Error("Reload failed", zap.Error(err))
				continue
			}
			rescan()
		}
	}
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.AddCommand(scanSceneCmd)
	scanCmd.AddCommand(scanScenesCmd)
	scanCmd.AddCommand(scanAssetsCmd)
	scanCmd.AddCommand(scanAllCmd)
	scanCmd.AddCommand(scanNodeCmd)
}
