package service

import (
	"github.com/astronomyk/CrowdSky/internal/auth/middleware"
	"github.com/astronomyk/CrowdSky/internal/pkg/logger"
	"github.com/astronomyk/CrowdSky/internal/pkg/response"
	"github.com/astronomyk/CrowdSky/internal/stacking/biz"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionService exposes the upload session API to authenticated users
type SessionService struct {
	uc  *biz.SessionUseCase
	log *logger.Logger
}

// NewSessionService creates a new session service
func NewSessionService(uc *biz.SessionUseCase, log *logger.Logger) *SessionService {
	return &SessionService{uc: uc, log: log}
}

// Open handles POST /api/v1/sessions
func (s *SessionService) Open(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}

	info, err := s.uc.Open(c.Request.Context(), userID)
	if err != nil {
		s.log.Error("failed to open session", zap.Int64("user_id", userID), zap.Error(err))
		response.HandleError(c, err)
		return
	}
	response.Created(c, info)
}

// Status handles GET /api/v1/sessions/:token
func (s *SessionService) Status(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}

	info, err := s.uc.Status(c.Request.Context(), c.Param("token"), userID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, info)
}

// Upload handles POST /api/v1/sessions/:token/files. The frame is the
// multipart part named "file".
func (s *SessionService) Upload(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "multipart part 'file' is required")
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "unreadable upload")
		return
	}
	defer f.Close()

	result, err := s.uc.Ingest(c.Request.Context(), c.Param("token"), userID, fh.Filename, f)
	if err != nil {
		s.log.Warn("ingest rejected",
			zap.Int64("user_id", userID),
			zap.String("filename", fh.Filename),
			zap.Error(err))
		response.HandleError(c, err)
		return
	}
	response.Created(c, result)
}

// Finalize handles POST /api/v1/sessions/:token/finalize
func (s *SessionService) Finalize(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}

	result, err := s.uc.Finalize(c.Request.Context(), c.Param("token"), userID)
	if err != nil {
		s.log.Warn("finalize rejected",
			zap.Int64("user_id", userID),
			zap.String("token", c.Param("token")),
			zap.Error(err))
		response.HandleError(c, err)
		return
	}

	s.log.Info("session finalized",
		zap.Int64("user_id", userID),
		zap.String("token", c.Param("token")),
		zap.Int("job_count", result.JobCount))
	response.Success(c, result)
}

// RegisterRoutes mounts the session endpoints on an authenticated group
func (s *SessionService) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/sessions", s.Open)
	g.GET("/sessions/:token", s.Status)
	g.POST("/sessions/:token/files", s.Upload)
	g.POST("/sessions/:token/finalize", s.Finalize)
}
