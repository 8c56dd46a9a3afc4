package db

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	database, err := Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(database.Close)
	require.NoError(t, database.Migrate(ctx))
	return database
}

func TestRunLifecycle_Integration(t *testing.T) {
	database := connectTestDB(t)
	ctx := context.Background()
	project := "test-" + uuid.NewString()

	runID, err := database.CreateRun(ctx, project, "pages", 5)
	require.NoError(t, err)
	defer database.DeleteRun(ctx, runID)

	require.NoError(t, database.CompleteRun(ctx, runID, RunCounts{
		Total: 5, Success: 3, Failed: 2, FailedPages: []int{2, 4},
	}))

	run, err := database.GetRun(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, RunStatusPartial, run.Status)
	assert.Equal(t, []int32{2, 4}, run.FailedPages)
	assert.NotNil(t, run.CompletedAt)

	runs, err := database.ListRuns(ctx, project, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	missing, err := database.GetRun(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestArtifacts_Integration(t *testing.T) {
	database := connectTestDB(t)
	ctx := context.Background()
	project := "test-" + uuid.NewString()

	content, err := database.GetArtifact(ctx, project, "pages", 1)
	require.NoError(t, err)
	assert.Nil(t, content)

	for _, page := range []int{3, 1} {
		require.NoError(t, database.SaveArtifact(ctx, &Artifact{
			Project: project, Stage: "pages", Page: page, Status: "success",
			Content: []byte(`{"page": 1}`),
		}))
	}
	require.NoError(t, database.SaveArtifact(ctx, &Artifact{
		Project: project, Stage: "pages", Page: 1, Status: "failed", Content: []byte(`{"page": 1, "v": 2}`),
	}))

	content, err = database.GetArtifact(ctx, project, "pages", 1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"page": 1, "v": 2}`, string(content))

	exists, err := database.ArtifactExists(ctx, project, "pages", 3)
	require.NoError(t, err)
	assert.True(t, exists)

	pages, err := database.ListArtifactPages(ctx, project, "pages")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, pages)
}
