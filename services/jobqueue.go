package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devicelocksmith/Tidal-Media-Downloader/catalog"
	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
	"github.com/devicelocksmith/Tidal-Media-Downloader/websocket"
)

// JobQueue interface defines the methods for managing download jobs
type JobQueue interface {
	Start()
	AddJob(jobType types.JobType, itemID, title, artist string) *types.DownloadJob
	GetJob(id string) (*types.DownloadJob, bool)
	GetAllJobs() []*types.DownloadJob
	CancelJob(id string) bool
	UpdateJobProgress(id string, progress, total int)
	SetJobStatus(id string, status types.JobStatus, errorMsg string)
}

// jobQueue manages download jobs
type jobQueue struct {
	jobs       map[string]*types.DownloadJob
	queue      chan *types.DownloadJob
	activeJobs map[string]*types.DownloadJob
	mu         sync.RWMutex
	maxWorkers int
	hub        websocket.Hub
	catalog    catalog.Client
	downloader *Downloader
}

// NewJobQueue creates a new job queue backed by the downloader pipeline.
func NewJobQueue(maxWorkers int, hub websocket.Hub, client catalog.Client, downloader *Downloader) JobQueue {
	downloader.SetQuiet(true)
	return &jobQueue{
		jobs:       make(map[string]*types.DownloadJob),
		queue:      make(chan *types.DownloadJob, 100), // Buffer for 100 jobs
		activeJobs: make(map[string]*types.DownloadJob),
		maxWorkers: maxWorkers,
		hub:        hub,
		catalog:    client,
		downloader: downloader,
	}
}

// AddJob adds a new job to the queue
func (jq *jobQueue) AddJob(jobType types.JobType, itemID, title, artist string) *types.DownloadJob {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	job := &types.DownloadJob{
		ID:        uuid.New().String(),
		Type:      jobType,
		Status:    types.JobStatusQueued,
		ItemID:    itemID,
		Title:     title,
		Artist:    artist,
		Progress:  0,
		Total:     1,
		CreatedAt: time.Now(),
	}

	jq.jobs[job.ID] = job
	jq.queue <- job

	return job
}

// GetJob retrieves a job by ID
func (jq *jobQueue) GetJob(id string) (*types.DownloadJob, bool) {
	jq.mu.RLock()
	defer jq.mu.RUnlock()
	job, exists := jq.jobs[id]
	return job, exists
}

// GetAllJobs returns all jobs
func (jq *jobQueue) GetAllJobs() []*types.DownloadJob {
	jq.mu.RLock()
	defer jq.mu.RUnlock()

	jobs := make([]*types.DownloadJob, 0, len(jq.jobs))
	for _, job := range jq.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// CancelJob cancels a queued job
func (jq *jobQueue) CancelJob(id string) bool {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	job, exists := jq.jobs[id]
	if !exists {
		return false
	}

	if job.Status == types.JobStatusQueued {
		job.Status = types.JobStatusCancelled
		now := time.Now()
		job.CompletedAt = &now
		return true
	}

	return false
}

// UpdateJobProgress updates job progress
func (jq *jobQueue) UpdateJobProgress(id string, progress, total int) {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	if job, exists := jq.jobs[id]; exists {
		job.Progress = progress
		job.Total = total

		// Broadcast progress update via WebSocket
		if jq.hub != nil && total > 0 {
			progressPercent := float64(progress) / float64(total) * 100
			currentItem := ""
			if progress < total {
				currentItem = fmt.Sprintf("Item %d of %d", progress+1, total)
			}

			jq.hub.BroadcastProgress(id, "progress", string(job.Status), currentItem,
				fmt.Sprintf("Downloaded %d of %d items", progress, total), progressPercent)
		}
	}
}

// SetJobStatus updates job status
func (jq *jobQueue) SetJobStatus(id string, status types.JobStatus, errorMsg string) {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	if job, exists := jq.jobs[id]; exists {
		job.Status = status
		if errorMsg != "" {
			job.Error = errorMsg
		}

		now := time.Now()
		if status == types.JobStatusProcessing && job.StartedAt == nil {
			job.StartedAt = &now
			jq.activeJobs[id] = job
		} else if status == types.JobStatusCompleted || status == types.JobStatusFailed || status == types.JobStatusCancelled {
			job.CompletedAt = &now
			delete(jq.activeJobs, id)
		}

		// Broadcast status update via WebSocket
		if jq.hub != nil {
			msgType := "status"
			message := string(status)
			progress := float64(job.Progress) / float64(job.Total) * 100

			if status == types.JobStatusCompleted {
				msgType = "complete"
				progress = 100.0
				message = fmt.Sprintf("%s download completed", job.Title)
			} else if status == types.JobStatusFailed {
				msgType = "error"
				message = errorMsg
			} else if status == types.JobStatusProcessing {
				message = fmt.Sprintf("Started downloading %s", job.Title)
			}

			jq.hub.BroadcastProgress(id, msgType, string(status), "", message, progress)
		}
	}
}

// Start begins processing jobs
func (jq *jobQueue) Start() {
	for i := 0; i < jq.maxWorkers; i++ {
		go jq.worker()
	}
}

// worker processes jobs from the queue
func (jq *jobQueue) worker() {
	for job := range jq.queue {
		if job.Status == types.JobStatusCancelled {
			continue
		}

		jq.SetJobStatus(job.ID, types.JobStatusProcessing, "")

		ctx := context.Background()
		var err error
		switch job.Type {
		case types.JobTypeAlbum:
			err = jq.processAlbumJob(ctx, job)
		case types.JobTypeTrack:
			err = jq.processTrackJob(ctx, job)
		case types.JobTypeArtist:
			err = jq.processArtistJob(ctx, job)
		case types.JobTypePlaylist:
			err = jq.processPlaylistJob(ctx, job)
		case types.JobTypeVideo:
			err = jq.processVideoJob(ctx, job)
		}

		if err != nil {
			jq.SetJobStatus(job.ID, types.JobStatusFailed, err.Error())
			log.Printf("Job %s failed: %v", job.ID, err)
		} else {
			jq.SetJobStatus(job.ID, types.JobStatusCompleted, "")
			log.Printf("Job %s completed successfully", job.ID)
		}
	}
}

// batchError folds a batch result into a single job-level error.
func batchError(result BatchResult) error {
	if result.Failed == 0 {
		return nil
	}
	first := result.Failures[0]
	return fmt.Errorf("%d of %d items failed, first: %s: %s",
		result.Failed, result.Succeeded+result.Skipped+result.Failed, first.Title, first.Reason)
}

// processAlbumJob processes an album download job
func (jq *jobQueue) processAlbumJob(ctx context.Context, job *types.DownloadJob) error {
	album, err := jq.catalog.Album(ctx, job.ItemID)
	if err != nil {
		return fmt.Errorf("failed to get album metadata: %w", err)
	}
	tracks, videos, err := jq.catalog.AlbumItems(ctx, job.ItemID)
	if err != nil {
		return fmt.Errorf("failed to list album items: %w", err)
	}

	// Update job with album info
	job.Title = album.Title
	job.Artist = album.ArtistLine()
	total := len(tracks) + len(videos)
	jq.UpdateJobProgress(job.ID, 0, total)

	result := jq.downloader.DownloadTracks(ctx, tracks, album, nil, func(completed, _ int) {
		jq.UpdateJobProgress(job.ID, completed, total)
	})
	videoResult := jq.downloader.DownloadVideos(ctx, videos, album, nil, func(completed, _ int) {
		jq.UpdateJobProgress(job.ID, len(tracks)+completed, total)
	})
	result.Succeeded += videoResult.Succeeded
	result.Skipped += videoResult.Skipped
	result.Failed += videoResult.Failed
	result.Failures = append(result.Failures, videoResult.Failures...)
	return batchError(result)
}

// processTrackJob processes a track download job
func (jq *jobQueue) processTrackJob(ctx context.Context, job *types.DownloadJob) error {
	track, err := jq.catalog.Track(ctx, job.ItemID)
	if err != nil {
		return fmt.Errorf("failed to get track metadata: %w", err)
	}

	// Update job with track info
	job.Title = track.DisplayTitle()
	job.Artist = track.MainArtist()
	jq.UpdateJobProgress(job.ID, 0, 1)

	result := jq.downloader.DownloadTracks(ctx, []*types.Track{track}, nil, nil, nil)
	if err := batchError(result); err != nil {
		return fmt.Errorf("failed to download track: %w", err)
	}

	jq.UpdateJobProgress(job.ID, 1, 1)
	return nil
}

// processArtistJob processes an artist discography download job
func (jq *jobQueue) processArtistJob(ctx context.Context, job *types.DownloadJob) error {
	artist := job.Title
	albums, err := jq.catalog.ArtistAlbums(ctx, job.ItemID)
	if err != nil {
		return fmt.Errorf("failed to get artist albums: %w", err)
	}
	if len(albums) > 0 && len(albums[0].Artists) > 0 {
		artist = albums[0].Artists[0].Name
	}

	// Update job with artist info
	job.Title = fmt.Sprintf("%s (Discography)", artist)
	job.Artist = artist
	jq.UpdateJobProgress(job.ID, 0, len(albums))

	var combined BatchResult
	for i, album := range albums {
		tracks, _, err := jq.catalog.AlbumItems(ctx, album.ID)
		if err != nil {
			combined.Failed++
			combined.Failures = append(combined.Failures, ItemFailure{Title: album.Title, Reason: err.Error()})
			continue
		}
		result := jq.downloader.DownloadTracks(ctx, tracks, album, nil, nil)
		combined.Succeeded += result.Succeeded
		combined.Skipped += result.Skipped
		combined.Failed += result.Failed
		combined.Failures = append(combined.Failures, result.Failures...)
		jq.UpdateJobProgress(job.ID, i+1, len(albums))
	}
	return batchError(combined)
}

// processPlaylistJob processes a playlist download job
func (jq *jobQueue) processPlaylistJob(ctx context.Context, job *types.DownloadJob) error {
	tracks, videos, err := jq.catalog.PlaylistItems(ctx, job.ItemID)
	if err != nil {
		return fmt.Errorf("failed to list playlist items: %w", err)
	}

	playlist := &types.Playlist{ID: job.ItemID, Title: job.Title, NumberOfTracks: len(tracks)}
	total := len(tracks) + len(videos)
	jq.UpdateJobProgress(job.ID, 0, total)

	result := jq.downloader.DownloadTracks(ctx, tracks, nil, playlist, func(completed, _ int) {
		jq.UpdateJobProgress(job.ID, completed, total)
	})
	videoResult := jq.downloader.DownloadVideos(ctx, videos, nil, playlist, func(completed, _ int) {
		jq.UpdateJobProgress(job.ID, len(tracks)+completed, total)
	})
	result.Succeeded += videoResult.Succeeded
	result.Skipped += videoResult.Skipped
	result.Failed += videoResult.Failed
	result.Failures = append(result.Failures, videoResult.Failures...)
	return batchError(result)
}

// processVideoJob processes a single video download job
func (jq *jobQueue) processVideoJob(ctx context.Context, job *types.DownloadJob) error {
	video, err := jq.catalog.Video(ctx, job.ItemID)
	if err != nil {
		return fmt.Errorf("failed to get video metadata: %w", err)
	}

	job.Title = video.DisplayTitle()
	jq.UpdateJobProgress(job.ID, 0, 1)

	if _, err := jq.downloader.DownloadVideo(ctx, video, nil, nil); err != nil {
		return fmt.Errorf("failed to download video: %w", err)
	}
	jq.UpdateJobProgress(job.ID, 1, 1)
	return nil
}
