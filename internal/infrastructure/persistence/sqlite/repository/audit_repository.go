package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"tallybook/internal/errs"
	"tallybook/internal/infrastructure/persistence/sqlite/model"
	"tallybook/internal/ports"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) AppendEntry(ctx context.Context, entry ports.AuditEntry) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.AuditEntry{
		ActorID:          entry.ActorID,
		ActorType:        entry.ActorType,
		ActionType:       entry.ActionType,
		ActionLabel:      entry.ActionLabel,
		DatasetVersionID: entry.DatasetVersionID,
		Reason:           entry.Reason,
		ContextJSON:      entry.ContextJSON,
		Status:           entry.Status,
		ErrorMessage:     entry.ErrorMessage,
		CreatedAt:        entry.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert audit entry")
	}
	return nil
}

func (r *AuditRepository) QueryEntries(ctx context.Context, filter ports.AuditFilter) ([]ports.AuditEntry, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.AuditEntry{})
	if dv := strings.TrimSpace(filter.DatasetVersionID); dv != "" {
		query = query.Where("dataset_version_id = ?", dv)
	}
	if action := strings.TrimSpace(filter.ActionType); action != "" {
		query = query.Where("action_type = ?", action)
	}
	query = query.Order("entry_id asc")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.AuditEntry
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query audit entries")
	}

	items := make([]ports.AuditEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.AuditEntry{
			EntryID:          row.EntryID,
			ActorID:          row.ActorID,
			ActorType:        row.ActorType,
			ActionType:       row.ActionType,
			ActionLabel:      row.ActionLabel,
			DatasetVersionID: row.DatasetVersionID,
			Reason:           row.Reason,
			ContextJSON:      row.ContextJSON,
			Status:           row.Status,
			ErrorMessage:     row.ErrorMessage,
			CreatedAt:        row.CreatedAt,
		})
	}
	return items, nil
}
