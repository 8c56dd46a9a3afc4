package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/ocr-review/internal/pipeline/steps"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stage progress and which steps can run",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var statusRuns int

func init() {
	statusCmd.Flags().IntVar(&statusRuns, "runs", 10, "Recent runs to list when a database is configured")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := openEnvironment(ctx, cmd, needs{})
	if err != nil {
		return err
	}
	defer env.Close()

	pages := env.pages()
	writeOut(env.out, "Output: %s (%d pages)\n", env.cfg.OutputDir, len(pages))
	for _, name := range steps.Order {
		def := steps.StepRegistry[name]
		if def.Output == "" {
			continue
		}
		stored, err := env.files.Pages(ctx, def.Output)
		if err != nil {
			return err
		}
		writeOut(env.out, "  %-8s %d/%d pages\n", name, countIn(stored, pages), len(pages))
	}

	available, err := steps.GetAvailableSteps(ctx, env.files, pages)
	if err != nil {
		return err
	}
	blocked, err := steps.GetBlockedSteps(ctx, env.files, pages)
	if err != nil {
		return err
	}
	writeOut(env.out, "Available: %s\n", joinOrNone(available))
	writeOut(env.out, "Blocked:   %s\n", joinOrNone(blocked))

	if env.database != nil {
		runs, err := env.database.ListRuns(ctx, env.cfg.Project, statusRuns)
		if err != nil {
			return err
		}
		writeOut(env.out, "Recent runs (%s):\n", env.cfg.Project)
		for _, r := range runs {
			writeOut(env.out, "  %s  %-9s %-9s %d/%d ok  %s\n",
				r.CreatedAt.Format("2006-01-02 15:04"), r.Stage, r.Status, r.Success, r.Total, r.ID)
		}
	}
	return nil
}

func countIn(stored, pages []int) int {
	set := make(map[int]bool, len(stored))
	for _, p := range stored {
		set[p] = true
	}
	n := 0
	for _, p := range pages {
		if set[p] {
			n++
		}
	}
	return n
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
