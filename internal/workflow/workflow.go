// Package workflow wires the capture, diff and matrix engines into the three
// run modes and folds their per-target outcomes into a RunSummary.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"webqa/internal/browser"
	"webqa/internal/capture"
	"webqa/internal/config"
	"webqa/internal/logging"
	"webqa/internal/matrix"
	"webqa/internal/report"
	"webqa/internal/result"
	"webqa/internal/runner"
	"webqa/internal/target"
	"webqa/internal/visual"
)

// CurrentDir is the subdirectory of the output directory that receives the
// screenshots taken during a compare run.
const CurrentDir = "current"

// Options configures all three modes.
type Options struct {
	Capture capture.Options
	Visual  visual.Options
	Matrix  matrix.Options
	Workers int
	Policy  result.Policy
}

// OptionsFromConfig derives workflow options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	policy, err := visual.ParseResizePolicy(cfg.Visual.ResizePolicy)
	if err != nil {
		return Options{}, config.Errorf("visual.resize_policy: %v", err)
	}
	return Options{
		Capture: capture.OptionsFromConfig(cfg),
		Visual: visual.Options{
			Threshold: cfg.Visual.Threshold,
			Gain:      cfg.GetGain(),
			Policy:    policy,
		},
		Matrix:  matrix.OptionsFromConfig(cfg),
		Workers: cfg.GetWorkers(),
		Policy: result.Policy{
			FailOnError: cfg.Run.FailOnError,
			FailOnWarn:  cfg.Run.FailOnWarn,
		},
	}, nil
}

// Request describes one run.
type Request struct {
	URL     string
	Targets []target.Target
	// Warnings are carried into the summary (unknown target names).
	Warnings []string
	// Output receives screenshots, diff images and reports.
	Output string
	// Baseline is the directory of reference screenshots (compare only).
	Baseline string
	// Flow is a free-text description recorded with matrix runs.
	Flow string
}

// Workflow runs QA modes against a browser launcher.
type Workflow struct {
	launcher browser.Launcher
	opts     Options
	logger   *zap.Logger
	newID    func() string
}

// New creates a workflow.
func New(l browser.Launcher, opts Options, logger *zap.Logger) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		launcher: l,
		opts:     opts,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

func (w *Workflow) pool() runner.Pool {
	return runner.Pool{Workers: w.opts.Workers, Logger: logging.For(w.logger, logging.CategoryRunner)}
}

func (w *Workflow) meta(mode result.Mode, req Request) result.Meta {
	return result.Meta{
		RunID:     w.newID(),
		Mode:      mode,
		URL:       req.URL,
		Flow:      req.Flow,
		StartedAt: time.Now(),
		Warnings:  req.Warnings,
	}
}

func checkTargets(req Request) error {
	if req.URL == "" {
		return config.Errorf("a URL is required")
	}
	if len(req.Targets) == 0 {
		return config.Errorf("no targets to run")
	}
	return nil
}

// Baseline captures a reference screenshot per target into req.Output.
func (w *Workflow) Baseline(ctx context.Context, req Request) (result.RunSummary, error) {
	if err := checkTargets(req); err != nil {
		return result.RunSummary{}, err
	}
	store, err := capture.NewStore(req.Output)
	if err != nil {
		return result.RunSummary{}, err
	}

	meta := w.meta(result.ModeBaseline, req)
	log := logging.For(w.logger, logging.CategoryRunner).With(zap.String("run_id", meta.RunID))
	log.Info("baseline run started", zap.String("url", req.URL), zap.Int("targets", len(req.Targets)))

	svc := capture.NewService(w.launcher, w.opts.Capture, logging.For(w.logger, logging.CategoryCapture))
	results := runner.Run(ctx, w.pool(), req.Targets,
		func(ctx context.Context, t target.Target) result.CaptureResult {
			return w.baselineOne(ctx, svc, store, t, req.URL)
		},
		func(t target.Target, p *runner.PanicError) result.CaptureResult {
			return result.CaptureResult{Target: t, Status: result.StatusError, Error: p.Error()}
		})

	outcomes := make([]result.Outcome, 0, len(results))
	for _, r := range results {
		outcomes = append(outcomes, r)
	}
	return w.finish(log, meta, outcomes), nil
}

func (w *Workflow) baselineOne(ctx context.Context, svc *capture.Service, store *capture.Store, t target.Target, url string) result.CaptureResult {
	res := result.CaptureResult{Target: t, Status: result.StatusError}
	art, err := svc.Capture(ctx, t, url)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	path, err := store.WriteArtifact(art)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Path, res.Width, res.Height = path, art.Width, art.Height
	res.Status = result.StatusPass
	return res
}

// Compare captures each target again and diffs it against the screenshot of
// the same name in req.Baseline. A target without a baseline is an error for
// that target only.
func (w *Workflow) Compare(ctx context.Context, req Request) (result.RunSummary, error) {
	if err := checkTargets(req); err != nil {
		return result.RunSummary{}, err
	}
	if req.Baseline == "" {
		return result.RunSummary{}, config.Errorf("compare requires a baseline directory")
	}
	if fi, err := os.Stat(req.Baseline); err != nil || !fi.IsDir() {
		return result.RunSummary{}, config.Errorf("baseline directory %s not found", req.Baseline)
	}
	if t := w.opts.Visual.Threshold; math.IsNaN(t) || t < 0 || t > 1 {
		return result.RunSummary{}, config.Errorf("threshold %v is outside [0,1]", t)
	}

	baselines, err := capture.NewStore(req.Baseline)
	if err != nil {
		return result.RunSummary{}, err
	}
	out, err := capture.NewStore(req.Output)
	if err != nil {
		return result.RunSummary{}, err
	}
	current, err := capture.NewStore(filepath.Join(req.Output, CurrentDir))
	if err != nil {
		return result.RunSummary{}, err
	}

	meta := w.meta(result.ModeCompare, req)
	meta.Threshold = w.opts.Visual.Threshold
	log := logging.For(w.logger, logging.CategoryRunner).With(zap.String("run_id", meta.RunID))
	log.Info("compare run started",
		zap.String("url", req.URL),
		zap.Int("targets", len(req.Targets)),
		zap.Float64("threshold", meta.Threshold))

	c := &comparer{
		svc:       capture.NewService(w.launcher, w.opts.Capture, logging.For(w.logger, logging.CategoryCapture)),
		opts:      w.opts.Visual,
		baselines: baselines,
		current:   current,
		out:       out,
		log:       logging.For(w.logger, logging.CategoryDiff),
	}
	results := runner.Run(ctx, w.pool(), req.Targets,
		func(ctx context.Context, t target.Target) result.DiffResult {
			return c.compare(ctx, t, req.URL)
		},
		func(t target.Target, p *runner.PanicError) result.DiffResult {
			return c.errored(t, p)
		})

	outcomes := make([]result.Outcome, 0, len(results))
	for _, r := range results {
		outcomes = append(outcomes, r)
	}
	return w.finish(log, meta, outcomes), nil
}

type comparer struct {
	svc       *capture.Service
	opts      visual.Options
	baselines *capture.Store
	current   *capture.Store
	out       *capture.Store
	log       *zap.Logger
}

func (c *comparer) errored(t target.Target, err error) result.DiffResult {
	return result.DiffResult{
		Target:      t,
		BaselineRef: c.baselines.PathFor(t),
		Threshold:   c.opts.Threshold,
		Status:      result.StatusError,
		Error:       err.Error(),
	}
}

func (c *comparer) compare(ctx context.Context, t target.Target, url string) result.DiffResult {
	log := c.log.With(zap.String("target", t.Name))
	if !c.baselines.Exists(t) {
		log.Warn("baseline not found", zap.String("path", c.baselines.PathFor(t)))
		return c.errored(t, fmt.Errorf("baseline not found: %s", c.baselines.PathFor(t)))
	}
	baseline, err := c.baselines.Read(t)
	if err != nil {
		return c.errored(t, fmt.Errorf("read baseline: %w", err))
	}

	art, err := c.svc.Capture(ctx, t, url)
	if err != nil {
		return c.errored(t, err)
	}
	currentPath, err := c.current.WriteArtifact(art)
	if err != nil {
		return c.errored(t, err)
	}

	cmp, err := visual.CompareBytes(baseline, art.Image, c.opts)
	if err != nil {
		res := c.errored(t, err)
		res.CurrentRef = currentPath
		return res
	}
	if cmp.Mismatch != nil {
		log.Warn("dimension mismatch", zap.Stringer("mismatch", cmp.Mismatch))
	}

	res := result.NewDiffResult(t, cmp.Ratio, cmp.Threshold)
	res.BaselineRef = c.baselines.PathFor(t)
	res.CurrentRef = currentPath
	res.ChangedPixels = cmp.ChangedPixels
	res.TotalPixels = cmp.TotalPixels
	res.Resized = cmp.Resized

	var writeErrs []error
	if res.DiffImageRef, err = c.out.WritePNG(capture.DiffName(t), cmp.Diff); err != nil {
		writeErrs = append(writeErrs, err)
	}
	if res.ComparisonImageRef, err = c.out.WritePNG(capture.ComparisonName(t), cmp.Composite()); err != nil {
		writeErrs = append(writeErrs, err)
	}
	if err := errors.Join(writeErrs...); err != nil {
		log.Error("write diff images", zap.Error(err))
		res.Status = result.StatusError
		res.Error = err.Error()
		return res
	}

	log.Info("compared",
		zap.Float64("diff_ratio", res.DiffRatio),
		zap.Bool("passed", res.Passed),
		zap.Bool("resized", res.Resized))
	return res
}

// Matrix runs the smoke protocol once per browser engine target.
func (w *Workflow) Matrix(ctx context.Context, req Request) (result.RunSummary, error) {
	if err := checkTargets(req); err != nil {
		return result.RunSummary{}, err
	}

	meta := w.meta(result.ModeMatrix, req)
	log := logging.For(w.logger, logging.CategoryRunner).With(zap.String("run_id", meta.RunID))
	log.Info("matrix run started", zap.String("url", req.URL), zap.Int("browsers", len(req.Targets)))

	engine := matrix.NewEngine(w.launcher, w.opts.Matrix, logging.For(w.logger, logging.CategoryMatrix))
	results := runner.Run(ctx, w.pool(), req.Targets,
		func(ctx context.Context, t target.Target) result.BrowserRunResult {
			return engine.Run(ctx, t, req.URL)
		},
		func(t target.Target, p *runner.PanicError) result.BrowserRunResult {
			return result.BrowserRunResult{Target: t, Status: result.StatusError, Error: p.Error()}
		})

	outcomes := make([]result.Outcome, 0, len(results))
	for _, r := range results {
		outcomes = append(outcomes, r)
	}
	return w.finish(log, meta, outcomes), nil
}

func (w *Workflow) finish(log *zap.Logger, meta result.Meta, outcomes []result.Outcome) result.RunSummary {
	meta.FinishedAt = time.Now()
	s := result.Aggregate(meta, outcomes, w.opts.Policy)
	log.Info("run finished",
		zap.Stringer("overall", s.Overall),
		zap.Int("passed", s.Passed),
		zap.Int("failed", s.Failed),
		zap.Int("errored", s.Errored),
		zap.Duration("elapsed", meta.FinishedAt.Sub(meta.StartedAt)))
	return s
}

// WriteReports writes the summary JSON and the assembled report document
// into dir and returns their paths.
func WriteReports(dir string, s result.RunSummary) ([]string, error) {
	summaryPath, err := report.WriteSummaryJSON(dir, s)
	if err != nil {
		return nil, err
	}
	docPath, err := report.WriteDocumentJSON(dir, report.Assemble(s))
	if err != nil {
		return []string{summaryPath}, err
	}
	return []string{summaryPath, docPath}, nil
}
