package service

import (
	"github.com/astronomyk/CrowdSky/internal/account/biz"
	"github.com/astronomyk/CrowdSky/internal/auth/middleware"
	"github.com/astronomyk/CrowdSky/internal/pkg/logger"
	"github.com/astronomyk/CrowdSky/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountService exposes registration, login and profile endpoints
type AccountService struct {
	uc  *biz.AccountUseCase
	log *logger.Logger
}

// NewAccountService creates a new account service
func NewAccountService(uc *biz.AccountUseCase, log *logger.Logger) *AccountService {
	return &AccountService{uc: uc, log: log}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type accountResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// Register handles POST /api/v1/auth/register
func (s *AccountService) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	account, err := s.uc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Created(c, s.toResponse(account))
}

// Login handles POST /api/v1/auth/login
func (s *AccountService) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	token, err := s.uc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, token)
}

// Me handles GET /api/v1/me
func (s *AccountService) Me(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}

	account, err := s.uc.Get(c.Request.Context(), userID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, s.toResponse(account))
}

func (s *AccountService) toResponse(a *biz.Account) *accountResponse {
	return &accountResponse{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		CreatedAt: a.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// RegisterPublicRoutes mounts the unauthenticated auth endpoints
func (s *AccountService) RegisterPublicRoutes(r *gin.RouterGroup) {
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", s.Register)
		authGroup.POST("/login", s.Login)
	}
}

// RegisterRoutes mounts the endpoints requiring authentication
func (s *AccountService) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/me", s.Me)
}
