package uow

import (
	"context"

	"gorm.io/gorm"

	"tallybook/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with gorm. Every ledger mutation
// that spans more than one row runs through here so partial writes roll
// back together.
type UnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	})
}
