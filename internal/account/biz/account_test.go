package biz

import (
	"context"
	"testing"
	"time"

	"github.com/astronomyk/CrowdSky/internal/auth"
	apperrors "github.com/astronomyk/CrowdSky/internal/pkg/errors"
	"github.com/astronomyk/CrowdSky/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccountRepo struct {
	nextID int64
	byID   map[int64]*Account
	hashes map[string]string
	ids    map[string]int64
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		byID:   make(map[int64]*Account),
		hashes: make(map[string]string),
		ids:    make(map[string]int64),
	}
}

func (r *fakeAccountRepo) Create(ctx context.Context, name, email, passwordHash string) (*Account, error) {
	if _, exists := r.ids[email]; exists {
		return nil, apperrors.New(apperrors.ErrEmailTaken)
	}
	r.nextID++
	account := &Account{ID: r.nextID, Name: name, Email: email, CreatedAt: time.Now()}
	r.byID[account.ID] = account
	r.hashes[email] = passwordHash
	r.ids[email] = account.ID
	return account, nil
}

func (r *fakeAccountRepo) GetByEmail(ctx context.Context, email string) (*Account, string, error) {
	id, ok := r.ids[email]
	if !ok {
		return nil, "", apperrors.New(apperrors.ErrNotFound, "account")
	}
	return r.byID[id], r.hashes[email], nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*Account, error) {
	account, ok := r.byID[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrNotFound, "account")
	}
	return account, nil
}

func newAccountEnv(t *testing.T) (*AccountUseCase, *auth.JWTManager) {
	t.Helper()
	jwt := auth.NewJWTManager("test-secret", "test")
	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "console"})
	require.NoError(t, err)
	return NewAccountUseCase(newFakeAccountRepo(), jwt, log), jwt
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	uc, jwt := newAccountEnv(t)

	account, err := uc.Register(ctx, "Ada", "Ada@Example.COM", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", account.Email, "email is normalized")

	token, err := uc.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	require.NotEmpty(t, token.AccessToken)
	assert.WithinDuration(t, time.Now().Add(auth.AccessTokenDuration), token.ExpiresAt, time.Minute)

	claims, err := jwt.VerifyAccessToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.UserID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	uc, _ := newAccountEnv(t)

	_, err := uc.Register(ctx, "Ada", "ada@example.com", "correct horse")
	require.NoError(t, err)

	_, err = uc.Login(ctx, "ada@example.com", "wrong horse")
	assert.True(t, apperrors.Is(err, apperrors.ErrBadCredentials))

	// Unknown email must be indistinguishable from a wrong password.
	_, err = uc.Login(ctx, "nobody@example.com", "correct horse")
	assert.True(t, apperrors.Is(err, apperrors.ErrBadCredentials))
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	uc, _ := newAccountEnv(t)

	_, err := uc.Register(ctx, "Ada", "ada@example.com", "short")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParams))

	_, err = uc.Register(ctx, "", "ada@example.com", "correct horse")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParams))

	_, err = uc.Register(ctx, "Ada", "ada@example.com", "correct horse")
	require.NoError(t, err)
	_, err = uc.Register(ctx, "Imposter", "ADA@example.com", "another pass")
	assert.True(t, apperrors.Is(err, apperrors.ErrEmailTaken))
}
