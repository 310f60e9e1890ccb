package service

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/astronomyk/CrowdSky/internal/pkg/logger"
	"github.com/astronomyk/CrowdSky/internal/pkg/response"
	"github.com/astronomyk/CrowdSky/internal/stacking/biz"
	"github.com/astronomyk/CrowdSky/internal/stacking/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WorkerService exposes the queue to stacking workers: claiming jobs,
// fetching their input frames and reporting outcomes. All endpoints sit
// behind the worker API key.
type WorkerService struct {
	dispatch *biz.DispatchUseCase
	jobs     *biz.JobUseCase
	sweeper  *biz.Sweeper
	log      *logger.Logger
}

// NewWorkerService creates a new worker service
func NewWorkerService(dispatch *biz.DispatchUseCase, jobs *biz.JobUseCase, sweeper *biz.Sweeper, log *logger.Logger) *WorkerService {
	return &WorkerService{dispatch: dispatch, jobs: jobs, sweeper: sweeper, log: log}
}

type claimRequest struct {
	WorkerID string `json:"worker_id" binding:"required"`
}

// Claim handles POST /worker/v1/jobs/claim. Responds 204 when no work
// is available.
func (s *WorkerService) Claim(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "worker_id is required")
		return
	}

	job, err := s.dispatch.Claim(c.Request.Context(), req.WorkerID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	if job == nil {
		c.Status(http.StatusNoContent)
		return
	}
	response.Success(c, job)
}

// ListFiles handles GET /worker/v1/jobs/:id/files
func (s *WorkerService) ListFiles(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid job id")
		return
	}

	files, err := s.jobs.ListFiles(c.Request.Context(), jobID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, files)
}

// FetchFile handles GET /worker/v1/files/:id and streams the raw frame
func (s *WorkerService) FetchFile(c *gin.Context) {
	fileID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid file id")
		return
	}

	file, rc, err := s.jobs.FetchFile(c.Request.Context(), fileID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, file.SizeBytes, "application/octet-stream", rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", file.OriginalName),
	})
}

// Complete handles POST /worker/v1/jobs/:id/complete. The request is
// multipart: a "meta" field with the artifact JSON, a "stack" file part
// and an optional "thumb" part.
func (s *WorkerService) Complete(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid job id")
		return
	}

	var artifact types.CompleteArtifact
	if err := json.Unmarshal([]byte(c.PostForm("meta")), &artifact); err != nil {
		response.BadRequest(c, "field 'meta' must be artifact JSON")
		return
	}
	if artifact.ArchivePath == "" || artifact.SizeBytes <= 0 {
		response.BadRequest(c, "archive_path and size_bytes are required")
		return
	}

	stackHeader, err := c.FormFile("stack")
	if err != nil {
		response.BadRequest(c, "multipart part 'stack' is required")
		return
	}
	stack, err := stackHeader.Open()
	if err != nil {
		response.BadRequest(c, "unreadable stack upload")
		return
	}
	defer stack.Close()

	var thumb multipart.File
	if th, err := c.FormFile("thumb"); err == nil {
		t, err := th.Open()
		if err != nil {
			response.BadRequest(c, "unreadable thumbnail upload")
			return
		}
		defer t.Close()
		thumb = t
	}

	if err := s.jobs.Complete(c.Request.Context(), jobID, &artifact, stack, thumb); err != nil {
		s.log.Warn("completion rejected", zap.Int64("job_id", jobID), zap.Error(err))
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"job_id": jobID, "status": types.JobCompleted})
}

// Fail handles POST /worker/v1/jobs/:id/fail and returns the resulting
// status, retry or failed.
func (s *WorkerService) Fail(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid job id")
		return
	}

	var req types.FailJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "error message is required")
		return
	}

	result, err := s.jobs.Fail(c.Request.Context(), jobID, req.Error)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, result)
}

// Sweep handles POST /worker/v1/maintenance/sweep, running both expiry
// sweeps immediately.
func (s *WorkerService) Sweep(c *gin.Context) {
	report, err := s.sweeper.Run(c.Request.Context())
	if err != nil {
		s.log.Error("sweep run failed", zap.Error(err))
		response.HandleError(c, err)
		return
	}
	response.Success(c, report)
}

// RegisterRoutes mounts the worker endpoints on a key-protected group
func (s *WorkerService) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/jobs/claim", s.Claim)
	g.GET("/jobs/:id/files", s.ListFiles)
	g.GET("/files/:id", s.FetchFile)
	g.POST("/jobs/:id/complete", s.Complete)
	g.POST("/jobs/:id/fail", s.Fail)
	g.POST("/maintenance/sweep", s.Sweep)
}
