package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/ocr-review/internal/pipeline/steps"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run extract, review, apply and render end-to-end",
	Long: `Runs every stage in order over the work set: extract -> review -> apply -> render.

After each stage the pages that did not succeed are retried up to --retry-passes
times. Later stages still run over the pages that did; pages with no transcription
are reported by each stage rather than stopping the run.

Configuration can be loaded from a JSON or YAML file using --config. Command-line
arguments override config file values.`,
	Args: cobra.NoArgs,
	RunE: runPipelineCmd,
}

var (
	runRetryPasses int
	runTitle       string
)

func init() {
	runCommand.Flags().IntVar(&runRetryPasses, "retry-passes", 1, "Retry passes over failed pages after each stage")
	runCommand.Flags().StringVar(&runTitle, "title", "OCR Review", "Title shown in the viewers")
	rootCmd.AddCommand(runCommand)
}

func runPipelineCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := openEnvironment(ctx, cmd, needs{model: true, source: true})
	if err != nil {
		return err
	}
	defer env.Close()

	pages := env.pages()
	for _, name := range []string{steps.StepExtract, steps.StepReview, steps.StepApply} {
		step := pageSteps[name]
		summary, err := env.execStage(ctx, step.stage, pages, step.build, nil)
		if err != nil {
			return err
		}
		for pass := 0; pass < runRetryPasses && !summary.Complete(); pass++ {
			env.logger.Info("retrying failed pages", "stage", step.stage, "pass", pass+1, "pages", summary.FailedPages)
			if summary, err = env.execStage(ctx, step.stage, nil, step.build, summary); err != nil {
				return err
			}
		}
		if err := afterStage(ctx, env, step.stage, pages); err != nil {
			return err
		}
	}

	_, err = renderViewers(ctx, env, viewerAll, runTitle)
	return err
}
