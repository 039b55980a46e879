package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"tallybook/internal/ports"
)

// dbFromContext prefers a transaction handle stashed in ctx by the unit of
// work, falling back to the root connection.
func dbFromContext(ctx context.Context, root *gorm.DB) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return root.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}
