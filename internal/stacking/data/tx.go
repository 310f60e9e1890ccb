package data

import (
	"context"

	"github.com/astronomyk/CrowdSky/internal/pkg/database"
	"github.com/astronomyk/CrowdSky/internal/stacking/biz"
)

// TxManager implements biz.TxManager on the shared database handle.
// Repository calls made with the callback's context join the same
// transaction.
type TxManager struct {
	db *database.DB
}

// NewTxManager creates a new transaction manager
func NewTxManager(db *database.DB) biz.TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.Transaction(ctx, fn)
}
