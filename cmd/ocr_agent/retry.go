package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/ocr-review/internal/pipeline"
	"github.com/jonathan/ocr-review/internal/store"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-run a stage on the pages its last run did not complete",
	Long: `Reads the last run summary of a stage and runs the stage again on its failed and
partial_failure pages only. The new summary keeps the earlier results of the pages
that succeeded and replaces the ones that were retried.`,
	Args: cobra.NoArgs,
	RunE: runRetry,
}

var retryStage string

func init() {
	retryCmd.Flags().StringVarP(&retryStage, "stage", "s", "", "Stage to retry: extract, review or apply (required)")
	if err := retryCmd.MarkFlagRequired("stage"); err != nil {
		panic(fmt.Sprintf("failed to mark stage flag as required: %v", err))
	}
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, _ []string) error {
	step, err := stepFor(retryStage)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	env, err := openEnvironment(ctx, cmd, step.needs)
	if err != nil {
		return err
	}
	defer env.Close()

	_, err = retryStep(ctx, env, step)
	return err
}

// retryStep re-runs the failed pages of the stage's stored summary. It
// returns the stored summary unchanged when there is nothing to retry.
func retryStep(ctx context.Context, env *environment, step pageStep) (*pipeline.RunSummary, error) {
	var prev pipeline.RunSummary
	if err := env.files.LoadSummary(ctx, step.stage, &prev); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("no previous %s run to retry; run '%s' first", step.name, step.name)
		}
		return nil, err
	}
	if len(prev.FailedPages) == 0 {
		writeOut(env.out, "Nothing to retry: all %d pages of %s succeeded\n", prev.Total, step.name)
		return &prev, nil
	}
	if prev.Stage == "" {
		prev.Stage = step.stage
	}

	summary, err := env.execStage(ctx, step.stage, nil, step.build, &prev)
	if err != nil {
		return summary, err
	}
	pages := make([]int, 0, len(summary.Results))
	for _, res := range summary.Results {
		pages = append(pages, res.Page)
	}
	return summary, afterStage(ctx, env, step.stage, pages)
}
