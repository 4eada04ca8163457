package main

import (
	"github.com/spf13/cobra"

	"webqa/internal/target"
	"webqa/internal/workflow"
)

func (a *app) matrixCmd() *cobra.Command {
	var url, browsers, output, flow string

	cmd := &cobra.Command{
		Use:     "matrix",
		Aliases: []string{"cross-browser"},
		Short:   "Run the smoke test in each browser engine",
		Example: `  webqa matrix --url http://localhost:3000
  webqa matrix --url http://localhost:3000 --browsers chrome,firefox --output reports/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, warnings, err := a.resolveTargets(target.KindBrowserEngine, browsers)
			if err != nil {
				return err
			}
			req := workflow.Request{URL: url, Targets: targets, Warnings: warnings, Output: output, Flow: flow}
			return a.run((*workflow.Workflow).Matrix, req, output)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "URL of the application under test (required)")
	cmd.Flags().StringVar(&browsers, "browsers", "all", "Browsers: "+listHelp(engineNames()))
	cmd.Flags().StringVarP(&output, "output", "o", "", "Directory for reports (none written when empty)")
	cmd.Flags().StringVar(&flow, "flow", "", "Description of the user flow under test")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
