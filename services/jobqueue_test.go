package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
)

func newTestJobQueue(t *testing.T) JobQueue {
	t.Helper()
	d := newTestDownloader(t, newFakeCatalog(), quietSettings())
	return NewJobQueue(1, nil, d.catalog, d)
}

// TestJobQueueLifecycle tests job creation, lookup and cancellation
func TestJobQueueLifecycle(t *testing.T) {
	jq := newTestJobQueue(t)

	job := jq.AddJob(types.JobTypeAlbum, "a1", "The Wall", "Pink Floyd")
	require.NotEmpty(t, job.ID)
	assert.Equal(t, types.JobStatusQueued, job.Status)
	assert.WithinDuration(t, time.Now(), job.CreatedAt, time.Second)

	got, exists := jq.GetJob(job.ID)
	require.True(t, exists)
	assert.Equal(t, job.ID, got.ID)

	_, exists = jq.GetJob("nope")
	assert.False(t, exists)

	all := jq.GetAllJobs()
	assert.Len(t, all, 1)

	// Queued jobs can be cancelled.
	assert.True(t, jq.CancelJob(job.ID))
	got, _ = jq.GetJob(job.ID)
	assert.Equal(t, types.JobStatusCancelled, got.Status)
	require.NotNil(t, got.CompletedAt)

	// A finished job cannot be cancelled again.
	assert.False(t, jq.CancelJob(job.ID))
	assert.False(t, jq.CancelJob("nope"))
}

// TestJobQueueStatusTransitions tests timestamps on status changes
func TestJobQueueStatusTransitions(t *testing.T) {
	jq := newTestJobQueue(t)
	job := jq.AddJob(types.JobTypeTrack, "t1", "Mother", "Pink Floyd")

	jq.SetJobStatus(job.ID, types.JobStatusProcessing, "")
	got, _ := jq.GetJob(job.ID)
	assert.Equal(t, types.JobStatusProcessing, got.Status)
	require.NotNil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)

	jq.UpdateJobProgress(job.ID, 1, 2)
	got, _ = jq.GetJob(job.ID)
	assert.Equal(t, 1, got.Progress)
	assert.Equal(t, 2, got.Total)

	jq.SetJobStatus(job.ID, types.JobStatusFailed, "stream unavailable")
	got, _ = jq.GetJob(job.ID)
	assert.Equal(t, types.JobStatusFailed, got.Status)
	assert.Equal(t, "stream unavailable", got.Error)
	require.NotNil(t, got.CompletedAt)
}
