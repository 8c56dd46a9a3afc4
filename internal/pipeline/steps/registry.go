// Package steps declares the pipeline steps, the stage each one writes, and
// the stages it reads, and checks those dependencies against a store.
package steps

import (
	"context"
	"fmt"
	"sort"

	"github.com/jonathan/ocr-review/internal/store"
)

// Step names.
const (
	StepExtract = "extract"
	StepReview  = "review"
	StepApply   = "apply"
	StepRender  = "render"
)

// StepDefinition defines metadata for a pipeline step
type StepDefinition struct {
	Name string
	// Output is the store stage the step writes, empty for steps that only
	// produce files outside the store.
	Output       string
	Dependencies []string
	Optional     []string
}

// StepRegistry holds all step definitions
var StepRegistry = map[string]StepDefinition{
	StepExtract: {
		Name:         StepExtract,
		Output:       store.StagePages,
		Dependencies: []string{},
		Optional:     []string{},
	},
	StepReview: {
		Name:         StepReview,
		Output:       store.StageQA,
		Dependencies: []string{StepExtract},
		Optional:     []string{},
	},
	StepApply: {
		Name:         StepApply,
		Output:       store.StageCorrected,
		Dependencies: []string{StepExtract},
		Optional:     []string{StepReview},
	},
	StepRender: {
		Name:         StepRender,
		Dependencies: []string{StepReview},
		Optional:     []string{StepApply},
	},
}

// Order lists the steps in execution order.
var Order = []string{StepExtract, StepReview, StepApply, StepRender}

// PageLister is the part of a store the dependency checks need.
type PageLister interface {
	Pages(ctx context.Context, stage string) ([]int, error)
}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Step                string
	MissingDependencies []string
	MissingPages        map[string][]int
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("missing dependencies: %v", e.MissingDependencies)
}

// ValidateDependencies checks that every required dependency of a step has a
// stored record for each of pages.
func ValidateDependencies(ctx context.Context, st PageLister, stepName string, pages []int) error {
	def, ok := StepRegistry[stepName]
	if !ok {
		return fmt.Errorf("unknown step: %s", stepName)
	}

	var missing []string
	missingPages := map[string][]int{}

	for _, dep := range def.Dependencies {
		absent, err := missingFor(ctx, st, StepRegistry[dep].Output, pages)
		if err != nil {
			return fmt.Errorf("failed to check dependency %s: %w", dep, err)
		}
		if len(absent) > 0 {
			missing = append(missing, dep)
			missingPages[dep] = absent
		}
	}

	if len(missing) > 0 {
		return &DependencyError{
			Step:                stepName,
			MissingDependencies: missing,
			MissingPages:        missingPages,
		}
	}

	return nil
}

// Completed reports whether a step has output for every page. Steps without
// a store stage are never complete.
func Completed(ctx context.Context, st PageLister, stepName string, pages []int) (bool, error) {
	def, ok := StepRegistry[stepName]
	if !ok {
		return false, fmt.Errorf("unknown step: %s", stepName)
	}
	if def.Output == "" {
		return false, nil
	}
	absent, err := missingFor(ctx, st, def.Output, pages)
	if err != nil {
		return false, err
	}
	return len(absent) == 0, nil
}

// GetAvailableSteps returns steps that can be executed (dependencies met)
// and are not yet complete, in execution order.
func GetAvailableSteps(ctx context.Context, st PageLister, pages []int) ([]string, error) {
	var available []string

	for _, stepName := range Order {
		done, err := Completed(ctx, st, stepName, pages)
		if err != nil {
			return nil, fmt.Errorf("failed to check step %s: %w", stepName, err)
		}
		if done {
			continue
		}
		if err := ValidateDependencies(ctx, st, stepName, pages); err != nil {
			continue
		}
		available = append(available, stepName)
	}

	return available, nil
}

// GetBlockedSteps returns steps that are blocked (dependencies not met)
func GetBlockedSteps(ctx context.Context, st PageLister, pages []int) ([]string, error) {
	var blocked []string

	for _, stepName := range Order {
		done, err := Completed(ctx, st, stepName, pages)
		if err != nil {
			return nil, fmt.Errorf("failed to check step %s: %w", stepName, err)
		}
		if done {
			continue
		}
		if err := ValidateDependencies(ctx, st, stepName, pages); err != nil {
			blocked = append(blocked, stepName)
		}
	}

	return blocked, nil
}

func missingFor(ctx context.Context, st PageLister, stage string, pages []int) ([]int, error) {
	stored, err := st.Pages(ctx, stage)
	if err != nil {
		return nil, err
	}
	have := make(map[int]bool, len(stored))
	for _, p := range stored {
		have[p] = true
	}

	var absent []int
	for _, p := range pages {
		if !have[p] {
			absent = append(absent, p)
		}
	}
	sort.Ints(absent)
	return absent, nil
}
