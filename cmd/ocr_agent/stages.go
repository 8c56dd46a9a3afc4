package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/ocr-review/internal/pipeline"
	"github.com/jonathan/ocr-review/internal/pipeline/steps"
	"github.com/jonathan/ocr-review/internal/review"
	"github.com/jonathan/ocr-review/internal/store"
)

// pageStep ties a step name to the stage it writes and its page function.
type pageStep struct {
	name  string
	stage string
	needs needs
	build func(*pipeline.Stages) pipeline.PageFunc
}

var pageSteps = map[string]pageStep{
	steps.StepExtract: {
		name:  steps.StepExtract,
		stage: store.StagePages,
		needs: needs{model: true, source: true},
		build: (*pipeline.Stages).Extract,
	},
	steps.StepReview: {
		name:  steps.StepReview,
		stage: store.StageQA,
		needs: needs{model: true, source: true},
		build: (*pipeline.Stages).Review,
	},
	steps.StepApply: {
		name:  steps.StepApply,
		stage: store.StageCorrected,
		build: (*pipeline.Stages).Apply,
	},
}

// stepFor resolves a step name or the stage it writes.
func stepFor(name string) (pageStep, error) {
	if s, ok := pageSteps[name]; ok {
		return s, nil
	}
	for _, s := range pageSteps {
		if s.stage == name {
			return s, nil
		}
	}
	return pageStep{}, fmt.Errorf("unknown stage %q (want extract, review or apply)", name)
}

func newStageCommand(step pageStep, short, long string) *cobra.Command {
	return &cobra.Command{
		Use:   step.name,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := openEnvironment(ctx, cmd, step.needs)
			if err != nil {
				return err
			}
			defer env.Close()

			_, err = runStep(ctx, env, step)
			return err
		},
	}
}

// runStep checks the step's inputs and runs it over the work set.
func runStep(ctx context.Context, env *environment, step pageStep) (*pipeline.RunSummary, error) {
	pages := env.pages()
	if err := steps.ValidateDependencies(ctx, env.files, step.name, pages); err != nil {
		return nil, err
	}
	summary, err := env.execStage(ctx, step.stage, pages, step.build, nil)
	if err != nil {
		return summary, err
	}
	return summary, afterStage(ctx, env, step.stage, pages)
}

// afterStage prints and persists the stage's aggregate reports.
func afterStage(ctx context.Context, env *environment, stage string, pages []int) error {
	switch stage {
	case store.StageQA:
		reports, err := pipeline.LoadReports(ctx, env.files, pages)
		if err != nil {
			return err
		}
		env.printer.PrintReviewStats(review.ComputeStats(reports))
	case store.StageCorrected:
		report, err := pipeline.BuildCorrectionReport(ctx, env.files, pages)
		if err != nil {
			return err
		}
		if err := env.storeFor(uuid.Nil).SaveSummary(ctx, pipeline.StageCorrections, report); err != nil {
			return fmt.Errorf("failed to save correction report: %w", err)
		}
		writeOut(env.out, "Corrected %d of %d pages (%d corrections)\n",
			report.ModifiedPages, report.TotalPages, report.TotalCorrections)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(
		newStageCommand(pageSteps[steps.StepExtract],
			"Transcribe page images into structured JSON",
			`Renders each page, sends it to the vision model with the OCR instructions, recovers
a JSON document from the response and stores it under <out>/pages/. Responses that
cannot be recovered are kept raw and the page is reported as partial_failure.`),
		newStageCommand(pageSteps[steps.StepReview],
			"Ask the model to review each transcribed page",
			`Sends each page image with its transcription to the reviewer and stores the QA
report under <out>/qa/. Requires the extract stage.`),
		newStageCommand(pageSteps[steps.StepApply],
			"Apply review corrections to the transcriptions",
			`Merges each page's QA report into its transcription and stores the result under
<out>/corrected/. Pages without a usable review keep their original transcription.
No model calls are made.`),
	)
}
