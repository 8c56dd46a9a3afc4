package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failOn(failing ...int) PageFunc {
	set := map[int]bool{}
	for _, p := range failing {
		set[p] = true
	}
	return func(ctx context.Context, page int) (*PageResult, error) {
		if set[page] {
			return nil, errors.New("boom")
		}
		return &PageResult{Strategy: "direct"}, nil
	}
}

func TestPages(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, Pages(3))
	assert.Empty(t, Pages(0))
}

func TestRunner_Run(t *testing.T) {
	r := NewRunner(2, nil, nil)
	summary := r.Run(context.Background(), "pages", Pages(5), failOn(2, 4))

	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 3, summary.Success)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 0, summary.PartialFailure)
	assert.Equal(t, []int{2, 4}, summary.FailedPages)
	assert.False(t, summary.Complete())
	assert.NotEqual(t, uuid.Nil, summary.RunID)

	require.Len(t, summary.Results, 5)
	for i, res := range summary.Results {
		assert.Equal(t, i+1, res.Page)
	}
	res, ok := summary.Result(2)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "boom", res.Error)
}

func TestRunner_Retry(t *testing.T) {
	r := NewRunner(4, nil, nil)
	first := r.Run(context.Background(), "pages", Pages(5), failOn(2, 4))

	var mu sync.Mutex
	var touched []int
	second := r.Retry(context.Background(), first, func(ctx context.Context, page int) (*PageResult, error) {
		mu.Lock()
		touched = append(touched, page)
		mu.Unlock()
		return nil, nil
	})

	assert.ElementsMatch(t, []int{2, 4}, touched)
	assert.Equal(t, 5, second.Total)
	assert.Equal(t, 5, second.Success)
	assert.Empty(t, second.FailedPages)
	assert.True(t, second.Complete())

	assert.Equal(t, 3, first.Success, "previous summary must not change")
	assert.Equal(t, []int{2, 4}, first.FailedPages)
}

func TestRunner_PartialFailureIsRetried(t *testing.T) {
	r := NewRunner(1, nil, nil)
	summary := r.Run(context.Background(), "qa", Pages(3), func(ctx context.Context, page int) (*PageResult, error) {
		if page == 3 {
			return &PageResult{Status: StatusPartialFailure, Error: "unrecoverable"}, nil
		}
		return nil, nil
	})

	assert.Equal(t, 2, summary.Success)
	assert.Equal(t, 1, summary.PartialFailure)
	assert.Equal(t, []int{3}, summary.FailedPages)
}

func TestRunner_RecoversPanics(t *testing.T) {
	r := NewRunner(3, nil, nil)
	summary := r.Run(context.Background(), "pages", Pages(4), func(ctx context.Context, page int) (*PageResult, error) {
		if page == 3 {
			panic("bad page")
		}
		return nil, nil
	})

	assert.Equal(t, 3, summary.Success)
	assert.Equal(t, []int{3}, summary.FailedPages)
	res, _ := summary.Result(3)
	assert.Contains(t, res.Error, "bad page")
}

func TestRunner_KeepsResultOnError(t *testing.T) {
	r := NewRunner(1, nil, nil)
	summary := r.Run(context.Background(), "pages", []int{1}, func(ctx context.Context, page int) (*PageResult, error) {
		return &PageResult{Attempts: 3, Status: StatusSuccess}, errors.New("save failed")
	})

	res, _ := summary.Result(1)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 3, res.Attempts)
}

func TestRunner_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	r := NewRunner(3, nil, nil)

	summary := r.Run(context.Background(), "pages", Pages(12), func(ctx context.Context, page int) (*PageResult, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil, nil
	})

	assert.Equal(t, 12, summary.Success)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRunner_Progress(t *testing.T) {
	var calls atomic.Int32
	var lastTotal atomic.Int32
	r := NewRunner(2, nil, nil)
	r.OnProgress = func(result PageResult, done, total int) {
		calls.Add(1)
		lastTotal.Store(int32(total))
	}

	r.Run(context.Background(), "pages", Pages(4), failOn())
	assert.EqualValues(t, 4, calls.Load())
	assert.EqualValues(t, 4, lastTotal.Load())
}

func TestRunSummary_View(t *testing.T) {
	r := NewRunner(2, nil, nil)
	summary := r.Run(context.Background(), "pages", Pages(3), failOn(2))

	v := summary.View()
	assert.Equal(t, "pages", v.Stage)
	assert.Equal(t, 2, v.Strategies["direct"])
	assert.Nil(t, v.Methods)

	lines := summary.FailureLines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Page)
}
