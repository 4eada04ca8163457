package main

import (
	"github.com/spf13/cobra"

	"webqa/internal/config"
	"webqa/internal/target"
	"webqa/internal/workflow"
)

func (a *app) baselineCmd() *cobra.Command {
	var url, viewports, output string

	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Capture baseline screenshots for each viewport",
		Example: `  webqa baseline --url http://localhost:3000 --output baselines/
  webqa baseline --url http://localhost:3000 --viewports mobile,desktop`,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, warnings, err := a.resolveTargets(target.KindViewport, viewports)
			if err != nil {
				return err
			}
			req := workflow.Request{URL: url, Targets: targets, Warnings: warnings, Output: output}
			return a.run((*workflow.Workflow).Baseline, req, output)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "URL of the application under test (required)")
	cmd.Flags().StringVar(&viewports, "viewports", "desktop,tablet,mobile", "Viewports: "+listHelp(viewportNames()))
	cmd.Flags().StringVarP(&output, "output", "o", "baselines", "Directory for baseline screenshots")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func (a *app) compareCmd() *cobra.Command {
	var (
		url, viewports, output, baseline, resize string
		threshold                                float64
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Capture current screenshots and diff them against baselines",
		Example: `  webqa compare --url http://localhost:3000 --baseline baselines/ --output visual-diff/
  webqa compare --url http://localhost:3000 --baseline baselines/ --threshold 0.01 --resize pad`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseline == "" {
				return config.Errorf("compare requires --baseline")
			}
			if cmd.Flags().Changed("threshold") {
				a.cfg.Visual.Threshold = threshold
			}
			if cmd.Flags().Changed("resize") {
				a.cfg.Visual.ResizePolicy = resize
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			targets, warnings, err := a.resolveTargets(target.KindViewport, viewports)
			if err != nil {
				return err
			}
			req := workflow.Request{URL: url, Targets: targets, Warnings: warnings, Output: output, Baseline: baseline}
			return a.run((*workflow.Workflow).Compare, req, output)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "URL of the application under test (required)")
	cmd.Flags().StringVar(&viewports, "viewports", "desktop,tablet,mobile", "Viewports: "+listHelp(viewportNames()))
	cmd.Flags().StringVarP(&output, "output", "o", "visual-diff", "Directory for current screenshots, diffs and reports")
	cmd.Flags().StringVarP(&baseline, "baseline", "b", "", "Directory of baseline screenshots (required)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.05, "Largest passing fraction of changed pixels, 0..1")
	cmd.Flags().StringVar(&resize, "resize", "stretch", "Size mismatch policy: stretch, pad, reject")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
