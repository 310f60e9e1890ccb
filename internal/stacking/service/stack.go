package service

import (
	"strconv"

	"github.com/astronomyk/CrowdSky/internal/auth/middleware"
	"github.com/astronomyk/CrowdSky/internal/pkg/logger"
	"github.com/astronomyk/CrowdSky/internal/pkg/response"
	"github.com/astronomyk/CrowdSky/internal/stacking/biz"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StackService exposes finished stacks to their owners
type StackService struct {
	uc  *biz.JobUseCase
	log *logger.Logger
}

// NewStackService creates a new stack service
func NewStackService(uc *biz.JobUseCase, log *logger.Logger) *StackService {
	return &StackService{uc: uc, log: log}
}

// List handles GET /api/v1/stacks
func (s *StackService) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}

	stacks, err := s.uc.ListStacks(c.Request.Context(), userID)
	if err != nil {
		s.log.Error("failed to list stacks", zap.Int64("user_id", userID), zap.Error(err))
		response.HandleError(c, err)
		return
	}
	response.Success(c, stacks)
}

// DeleteJob handles DELETE /api/v1/jobs/:id, removing the job together
// with its artifact and any frames it still holds.
func (s *StackService) DeleteJob(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}

	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid job id")
		return
	}

	if err := s.uc.Delete(c.Request.Context(), userID, jobID); err != nil {
		response.HandleError(c, err)
		return
	}
	response.NoContent(c)
}

// RegisterRoutes mounts the stack endpoints on an authenticated group
func (s *StackService) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/stacks", s.List)
	g.DELETE("/jobs/:id", s.DeleteJob)
}
