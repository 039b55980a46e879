package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tallybook/internal/domain/ledger"
	"tallybook/internal/errs"
	"tallybook/internal/infrastructure/persistence/sqlite/model"
	"tallybook/internal/ports"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) CreateDatasetVersion(ctx context.Context, version ports.DatasetVersion) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.DatasetVersion{
		DatasetVersionID: version.ID,
		CreatedAt:        version.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert dataset version")
	}
	return nil
}

func (r *LedgerRepository) GetDatasetVersion(ctx context.Context, id string) (ports.DatasetVersion, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.DatasetVersion{}, err
	}

	var row model.DatasetVersion
	if err := db.Where("dataset_version_id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.DatasetVersion{}, fmt.Errorf("%w: %s", ledger.ErrDatasetVersionNotFound, id)
		}
		return ports.DatasetVersion{}, errs.Wrap(err, "query dataset version")
	}
	return ports.DatasetVersion{ID: row.DatasetVersionID, CreatedAt: row.CreatedAt}, nil
}

// InsertRawRecord writes conflict-ignored on the primary key and reports
// whether this call created the row.
func (r *LedgerRepository) InsertRawRecord(ctx context.Context, record ports.RawRecordCreate) (bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return false, err
	}

	row := model.RawRecord{
		RawRecordID:      record.RawRecordID,
		DatasetVersionID: record.DatasetVersionID,
		Payload:          record.Payload,
		FileChecksum:     record.FileChecksum,
		LegacyNoChecksum: record.LegacyNoChecksum,
		CreatedAt:        record.CreatedAt,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "raw_record_id"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "insert raw record")
	}
	return result.RowsAffected > 0, nil
}

func (r *LedgerRepository) GetRawRecord(ctx context.Context, rawRecordID string) (ports.RawRecord, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.RawRecord{}, err
	}

	var row model.RawRecord
	if err := db.Where("raw_record_id = ?", rawRecordID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.RawRecord{}, fmt.Errorf("%w: %s", ledger.ErrRawRecordNotFound, rawRecordID)
		}
		return ports.RawRecord{}, errs.Wrap(err, "query raw record")
	}
	return mapRawRecord(row), nil
}

func (r *LedgerRepository) ListRawRecords(ctx context.Context, datasetVersionID string) ([]ports.RawRecord, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.RawRecord
	if err := db.
		Where("dataset_version_id = ?", datasetVersionID).
		Order("created_at asc, raw_record_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query raw records")
	}

	items := make([]ports.RawRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapRawRecord(row))
	}
	return items, nil
}

// MarkRawRecordLegacy sets the migration flag. The payload and checksum
// columns are deliberately untouchable here.
func (r *LedgerRepository) MarkRawRecordLegacy(ctx context.Context, rawRecordID string) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.RawRecord{}).
		Where("raw_record_id = ?", rawRecordID).
		Update("legacy_no_checksum", true)
	if result.Error != nil {
		return errs.Wrap(result.Error, "mark raw record legacy")
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrRawRecordNotFound, rawRecordID)
	}
	return nil
}

func mapRawRecord(row model.RawRecord) ports.RawRecord {
	return ports.RawRecord{
		RawRecordID:      row.RawRecordID,
		DatasetVersionID: row.DatasetVersionID,
		Payload:          row.Payload,
		FileChecksum:     row.FileChecksum,
		LegacyNoChecksum: row.LegacyNoChecksum,
		CreatedAt:        row.CreatedAt,
	}
}
