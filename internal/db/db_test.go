package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunCounts_Status(t *testing.T) {
	tests := []struct {
		name     string
		counts   RunCounts
		expected string
	}{
		{"all success", RunCounts{Total: 3, Success: 3}, RunStatusCompleted},
		{"empty run", RunCounts{}, RunStatusCompleted},
		{"some failed", RunCounts{Total: 5, Success: 3, Failed: 2, FailedPages: []int{2, 4}}, RunStatusPartial},
		{"partial failure only", RunCounts{Total: 2, Success: 1, PartialFailure: 1}, RunStatusPartial},
		{"nothing succeeded", RunCounts{Total: 2, Failed: 1, PartialFailure: 1}, RunStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.counts.Status())
		})
	}
}

func TestSchemaEmbedded(t *testing.T) {
	assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS ocr_runs")
	assert.Contains(t, schemaSQL, "PRIMARY KEY (project, stage, page)")
}

func TestRunType(t *testing.T) {
	run := Run{Project: "book", Stage: "pages", Status: RunStatusRunning}

	assert.Equal(t, "book", run.Project)
	assert.Nil(t, run.CompletedAt)
}
