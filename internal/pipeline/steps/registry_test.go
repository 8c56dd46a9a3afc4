package steps

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/ocr-review/internal/store"
)

type fakeLister struct {
	pages map[string][]int
	err   error
}

func (f *fakeLister) Pages(ctx context.Context, stage string) ([]int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[stage], nil
}

func TestStepRegistry(t *testing.T) {
	for _, stepName := range Order {
		def, ok := StepRegistry[stepName]
		require.True(t, ok, "Step %s should be in registry", stepName)
		assert.Equal(t, stepName, def.Name)
		for _, dep := range append(def.Dependencies, def.Optional...) {
			_, ok := StepRegistry[dep]
			assert.True(t, ok, "dependency %s of %s should be registered", dep, stepName)
		}
	}
	assert.Len(t, StepRegistry, len(Order))
}

func TestStepRegistryOutputs(t *testing.T) {
	outputs := map[string]string{
		StepExtract: store.StagePages,
		StepReview:  store.StageQA,
		StepApply:   store.StageCorrected,
		StepRender:  "",
	}

	for stepName, output := range outputs {
		assert.Equal(t, output, StepRegistry[stepName].Output, "Step %s", stepName)
	}
}

func TestDependencyError(t *testing.T) {
	err := &DependencyError{
		Step:                "review",
		MissingDependencies: []string{"extract"},
	}

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing dependencies")
	assert.Equal(t, "review", err.Step)
}

func TestValidateDependencies(t *testing.T) {
	ctx := context.Background()
	pages := []int{1, 2, 3}

	tests := []struct {
		name        string
		step        string
		stored      map[string][]int
		wantMissing map[string][]int
	}{
		{
			name:   "extract has no dependencies",
			step:   StepExtract,
			stored: map[string][]int{},
		},
		{
			name:        "review without pages",
			step:        StepReview,
			stored:      map[string][]int{store.StagePages: {1, 3}},
			wantMissing: map[string][]int{StepExtract: {2}},
		},
		{
			name:   "apply ignores optional review",
			step:   StepApply,
			stored: map[string][]int{store.StagePages: {1, 2, 3}},
		},
		{
			name:        "render needs review",
			step:        StepRender,
			stored:      map[string][]int{store.StagePages: {1, 2, 3}},
			wantMissing: map[string][]int{StepReview: {1, 2, 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDependencies(ctx, &fakeLister{pages: tt.stored}, tt.step, pages)
			if tt.wantMissing == nil {
				assert.NoError(t, err)
				return
			}
			var depErr *DependencyError
			require.ErrorAs(t, err, &depErr)
			assert.Equal(t, tt.wantMissing, depErr.MissingPages)
		})
	}
}

func TestValidateDependencies_Errors(t *testing.T) {
	ctx := context.Background()

	assert.Error(t, ValidateDependencies(ctx, &fakeLister{}, "nope", []int{1}))

	err := ValidateDependencies(ctx, &fakeLister{err: errors.New("disk")}, StepReview, []int{1})
	require.Error(t, err)
	var depErr *DependencyError
	assert.False(t, errors.As(err, &depErr))
}

func TestAvailableAndBlockedSteps(t *testing.T) {
	ctx := context.Background()
	pages := []int{1, 2}

	lister := &fakeLister{pages: map[string][]int{}}
	available, err := GetAvailableSteps(ctx, lister, pages)
	require.NoError(t, err)
	assert.Equal(t, []string{StepExtract}, available)

	blocked, err := GetBlockedSteps(ctx, lister, pages)
	require.NoError(t, err)
	assert.Equal(t, []string{StepReview, StepApply, StepRender}, blocked)

	lister.pages[store.StagePages] = []int{1, 2}
	available, err = GetAvailableSteps(ctx, lister, pages)
	require.NoError(t, err)
	assert.Equal(t, []string{StepReview, StepApply}, available)

	lister.pages[store.StageQA] = []int{1, 2}
	available, err = GetAvailableSteps(ctx, lister, pages)
	require.NoError(t, err)
	assert.Equal(t, []string{StepApply, StepRender}, available)
}
