package biz

import (
	"context"
	"strings"
	"time"

	"github.com/astronomyk/CrowdSky/internal/auth"
	apperrors "github.com/astronomyk/CrowdSky/internal/pkg/errors"
	"github.com/astronomyk/CrowdSky/internal/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Account represents a registered contributor
type Account struct {
	ID        int64
	Name      string
	Email     string
	CreatedAt time.Time
}

// Token is an issued access token with its expiry
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AccountRepo defines the interface for account data operations
type AccountRepo interface {
	Create(ctx context.Context, name, email, passwordHash string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, string, error)
	GetByID(ctx context.Context, id int64) (*Account, error)
}

// AccountUseCase contains business logic for registration and login
type AccountUseCase struct {
	repo AccountRepo
	jwt  *auth.JWTManager
	log  *logger.Logger
}

func NewAccountUseCase(repo AccountRepo, jwt *auth.JWTManager, log *logger.Logger) *AccountUseCase {
	return &AccountUseCase{repo: repo, jwt: jwt, log: log}
}

func (uc *AccountUseCase) Register(ctx context.Context, name, email, password string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return nil, apperrors.New(apperrors.ErrInvalidParams, "name and email are required")
	}
	if len(password) < 8 {
		return nil, apperrors.New(apperrors.ErrInvalidParams, "password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer)
	}

	account, err := uc.repo.Create(ctx, name, email, string(hash))
	if err != nil {
		return nil, err
	}

	uc.log.Info("account registered",
		zap.Int64("account_id", account.ID),
		zap.String("email", account.Email))
	return account, nil
}

// Login verifies credentials and issues an access token. Unknown email
// and wrong password produce the same error.
func (uc *AccountUseCase) Login(ctx context.Context, email, password string) (*Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	account, hash, err := uc.repo.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.New(apperrors.ErrBadCredentials)
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		uc.log.Warn("failed login attempt", zap.String("email", email))
		return nil, apperrors.New(apperrors.ErrBadCredentials)
	}

	token, err := uc.jwt.GenerateAccessToken(account.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer)
	}

	return &Token{
		AccessToken: token,
		ExpiresAt:   time.Now().Add(auth.AccessTokenDuration),
	}, nil
}

func (uc *AccountUseCase) Get(ctx context.Context, id int64) (*Account, error) {
	return uc.repo.GetByID(ctx, id)
}
