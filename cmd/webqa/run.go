package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"webqa/internal/config"
	"webqa/internal/logging"
	"webqa/internal/result"
	"webqa/internal/target"
	"webqa/internal/workflow"
)

// modeFunc is one of the workflow entry points.
type modeFunc func(w *workflow.Workflow, ctx context.Context, req workflow.Request) (result.RunSummary, error)

// resolveTargets expands a comma-separated name list. Unknown names are
// logged and returned as warnings; an empty result is a configuration error.
func (a *app) resolveTargets(kind target.Kind, spec string) ([]target.Target, []string, error) {
	targets, unknown := target.Enumerate(kind, spec)
	log := logging.For(a.logger, logging.CategoryBoot)

	warnings := make([]string, 0, len(unknown))
	for _, u := range unknown {
		log.Warn("skipping unknown target", zap.String("name", u.Name), zap.String("kind", string(kind)))
		warnings = append(warnings, u.Error())
	}
	if len(targets) == 0 {
		return nil, warnings, config.Errorf("no valid %s targets in %q", kind, spec)
	}
	return targets, warnings, nil
}

// run executes one mode end to end: launcher setup, the workflow itself,
// report files and the console summary.
func (a *app) run(mode modeFunc, req workflow.Request, reportDir string) error {
	opts, err := workflow.OptionsFromConfig(a.cfg)
	if err != nil {
		return err
	}

	launcher, shutdown, err := a.newLauncher(a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logging.For(a.logger, logging.CategoryBrowser).Warn("browser shutdown", zap.Error(err))
		}
	}()

	ctx, stop := signalContext()
	defer stop()

	wf := workflow.New(launcher, opts, a.logger)
	summary, err := mode(wf, ctx, req)
	if err != nil {
		return err
	}

	if reportDir != "" {
		paths, err := workflow.WriteReports(reportDir, summary)
		if err != nil {
			logging.For(a.logger, logging.CategoryReport).Error("write reports", zap.Error(err))
		}
		for _, p := range paths {
			logging.For(a.logger, logging.CategoryReport).Info("report written", zap.String("path", p))
		}
	}

	printSummary(a.stdout, summary)
	a.exitCode = summary.ExitCode
	return nil
}

func listHelp(names []string) string {
	return strings.Join(names, ", ") + ", all"
}

func engineNames() []string {
	var names []string
	for _, t := range target.All(target.KindBrowserEngine) {
		names = append(names, t.Name)
	}
	return names
}

func viewportNames() []string {
	var names []string
	for _, t := range target.All(target.KindViewport) {
		names = append(names, fmt.Sprintf("%s (%dx%d)", t.Name, t.Width, t.Height))
	}
	return names
}
