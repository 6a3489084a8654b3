package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devicelocksmith/Tidal-Media-Downloader/services"
	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
	"github.com/devicelocksmith/Tidal-Media-Downloader/websocket"
)

// DownloadHandler handles download management endpoints
type DownloadHandler struct {
	jobQueue services.JobQueue
	hub      websocket.Hub
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(jq services.JobQueue, hub websocket.Hub) *DownloadHandler {
	return &DownloadHandler{
		jobQueue: jq,
		hub:      hub,
	}
}

// queueJob is the shared body of every queue endpoint.
func (h *DownloadHandler) queueJob(c *gin.Context, jobType types.JobType, what string) {
	itemID := c.Param("id")
	if itemID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": what + " ID is required",
		})
		return
	}

	job := h.jobQueue.AddJob(jobType, itemID, c.Query("title"), "")
	c.JSON(http.StatusCreated, gin.H{
		"message": what + " download queued successfully",
		"job":     job,
	})
}

// QueueAlbum queues an album download
func (h *DownloadHandler) QueueAlbum(c *gin.Context) {
	h.queueJob(c, types.JobTypeAlbum, "album")
}

// QueueTrack queues a track download
func (h *DownloadHandler) QueueTrack(c *gin.Context) {
	h.queueJob(c, types.JobTypeTrack, "track")
}

// QueueArtist queues an artist discography download
func (h *DownloadHandler) QueueArtist(c *gin.Context) {
	h.queueJob(c, types.JobTypeArtist, "artist")
}

// QueuePlaylist queues a playlist download
func (h *DownloadHandler) QueuePlaylist(c *gin.Context) {
	h.queueJob(c, types.JobTypePlaylist, "playlist")
}

// QueueVideo queues a video download
func (h *DownloadHandler) QueueVideo(c *gin.Context) {
	h.queueJob(c, types.JobTypeVideo, "video")
}

// GetAllJobs returns all download jobs
func (h *DownloadHandler) GetAllJobs(c *gin.Context) {
	jobs := h.jobQueue.GetAllJobs()
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// GetJob returns a specific download job by ID
func (h *DownloadHandler) GetJob(c *gin.Context) {
	jobID := c.Param("jobId")
	job, exists := h.jobQueue.GetJob(jobID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "job not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job": job,
	})
}

// CancelJob cancels a download job
func (h *DownloadHandler) CancelJob(c *gin.Context) {
	jobID := c.Param("jobId")
	cancelled := h.jobQueue.CancelJob(jobID)
	if !cancelled {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job cannot be cancelled (not found or already processing)",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "job cancelled successfully",
	})
}

// HandleWebSocketConnection handles WebSocket connections for specific job progress
func (h *DownloadHandler) HandleWebSocketConnection(c *gin.Context) {
	jobID := c.Param("jobId")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job ID is required"})
		return
	}

	// Check if job exists
	_, exists := h.jobQueue.GetJob(jobID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	upgrader := websocket.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, jobID)
	h.hub.RegisterClient(client)

	// Start client pumps
	client.StartPumps()
}

// HandleWebSocketAllConnection handles WebSocket connections for all job progress
func (h *DownloadHandler) HandleWebSocketAllConnection(c *gin.Context) {
	upgrader := websocket.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, "all")
	h.hub.RegisterClient(client)

	// Start client pumps
	client.StartPumps()
}
