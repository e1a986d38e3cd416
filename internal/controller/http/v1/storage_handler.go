package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yunojang/backend/internal/domain/entity"
	"github.com/yunojang/backend/internal/domain/usecase"
	"github.com/yunojang/backend/internal/repository/redisq"
)

// Header names accepted as the caller-supplied idempotency token, checked in
// order.
var idempotencyHeaderCandidates = []string{
	"Idempotency-Key",
	"X-Idempotency-Key",
	"Dupilot-Idempotency-Key",
}

type RegisterUseCase interface {
	RegisterSource(ctx context.Context, projectID, sourceURL, idemToken string) (*entity.IngestJob, bool, error)
	JobStatus(ctx context.Context, jobID string) (*entity.IngestJob, error)
}

type Presigner interface {
	PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	PresignedPost(ctx context.Context, key, contentType string, expiry time.Duration) (string, map[string]string, error)
}

type FinalizeUseCase interface {
	Finalize(ctx context.Context, projectID, objectKey string) error
}

type StorageHandler struct {
	Register RegisterUseCase
	S3       Presigner
	Finalize FinalizeUseCase
}

func NewStorageHandler(register RegisterUseCase, s3 Presigner, finalize FinalizeUseCase) *StorageHandler {
	return &StorageHandler{Register: register, S3: s3, Finalize: finalize}
}

type registerRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
	SourceURL string `json:"source_url" binding:"required"`
}

// RegisterSource enqueues an ingest job for a remote video source. Repeating
// the request returns the already registered job instead of a duplicate.
func (h *StorageHandler) RegisterSource(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project_id and source_url required"})
		return
	}

	var idemToken string
	for _, header := range idempotencyHeaderCandidates {
		if value := c.GetHeader(header); value != "" {
			idemToken = value
			break
		}
	}

	job, _, err := h.Register.RegisterSource(c.Request.Context(), req.ProjectID, req.SourceURL, idemToken)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidPayload):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ingest payload"})
		case errors.Is(err, redisq.ErrQueueUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upload queue unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": job.ID,
		"queue":  redisq.QueueName,
		"status": job.Stage.QueueStatus(),
		"stage":  job.Stage,
	})
}

func (h *StorageHandler) JobStatus(c *gin.Context) {
	jobID := c.Param("job_id")
	job, err := h.Register.JobStatus(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		case errors.Is(err, redisq.ErrQueueUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upload queue unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	resp := gin.H{
		"job_id":   job.ID,
		"status":   job.Stage.QueueStatus(),
		"stage":    job.Stage,
		"progress": job.Progress,
	}
	if job.ObjectKey != "" {
		resp["s3_key"] = job.ObjectKey
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	c.JSON(http.StatusOK, resp)
}

type presignRequest struct {
	ProjectID   string `json:"project_id" binding:"required"`
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// PrepareUpload hands the browser a short-lived presigned POST for a direct
// upload into the project's input prefix.
func (h *StorageHandler) PrepareUpload(c *gin.Context) {
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project_id, filename and content_type required"})
		return
	}

	objectKey := "projects/" + req.ProjectID + "/inputs/videos/" + uuid.New().String() + "_" + req.Filename

	uploadURL, fields, err := h.S3.PresignedPost(c.Request.Context(), objectKey, req.ContentType, 5*time.Minute)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project_id": req.ProjectID,
		"upload_url": uploadURL,
		"fields":     fields,
		"object_key": objectKey,
	})
}

type finishUploadRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
	ObjectKey string `json:"object_key" binding:"required"`
}

// FinishUpload runs the finalization handshake for a direct upload.
func (h *StorageHandler) FinishUpload(c *gin.Context) {
	var req finishUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project_id and object_key required"})
		return
	}

	if err := h.Finalize.Finalize(c.Request.Context(), req.ProjectID, req.ObjectKey); err != nil {
		if errors.Is(err, entity.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"project_id": req.ProjectID,
		"status":     entity.ProjectStatusUploadDone,
	})
}

// MediaRedirect 302s to a presigned GET for the stored object.
func (h *StorageHandler) MediaRedirect(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("object_key"), "/")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "object key required"})
		return
	}

	url, err := h.S3.PresignedGetURL(c.Request.Context(), key, time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Cache-Control", "private, max-age=300")
	c.Redirect(http.StatusFound, url)
}
