package data

import (
	"context"
	"errors"
	"time"

	"github.com/astronomyk/CrowdSky/internal/account/biz"
	"github.com/astronomyk/CrowdSky/internal/pkg/database"
	apperrors "github.com/astronomyk/CrowdSky/internal/pkg/errors"

	"gorm.io/gorm"
)

// AccountPO is the database model behind biz.Account
type AccountPO struct {
	ID           int64  `gorm:"primarykey"`
	Name         string `gorm:"size:100;not null"`
	Email        string `gorm:"size:255;not null;uniqueIndex:idx_accounts_email"`
	PasswordHash string `gorm:"size:255;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (AccountPO) TableName() string {
	return "accounts"
}

// Models returns the account models for migration
func Models() []interface{} {
	return []interface{}{&AccountPO{}}
}

// AccountRepo implements biz.AccountRepo on PostgreSQL
type AccountRepo struct {
	db *database.DB
}

// NewAccountRepo creates a new account repository
func NewAccountRepo(db *database.DB) biz.AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) Create(ctx context.Context, name, email, passwordHash string) (*biz.Account, error) {
	po := &AccountPO{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
	}
	if err := r.db.Conn(ctx).Create(po).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.New(apperrors.ErrEmailTaken)
		}
		return nil, err
	}
	return r.toAccount(po), nil
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*biz.Account, string, error) {
	var po AccountPO
	err := r.db.Conn(ctx).Where("email = ?", email).First(&po).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, "", apperrors.New(apperrors.ErrNotFound, "account")
		}
		return nil, "", err
	}
	return r.toAccount(&po), po.PasswordHash, nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*biz.Account, error) {
	var po AccountPO
	err := r.db.Conn(ctx).First(&po, id).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, apperrors.New(apperrors.ErrNotFound, "account")
		}
		return nil, err
	}
	return r.toAccount(&po), nil
}

func (r *AccountRepo) toAccount(po *AccountPO) *biz.Account {
	return &biz.Account{
		ID:        po.ID,
		Name:      po.Name,
		Email:     po.Email,
		CreatedAt: po.CreatedAt,
	}
}
