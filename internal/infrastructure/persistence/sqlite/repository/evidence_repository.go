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

type EvidenceRepository struct {
	db *gorm.DB
}

func NewEvidenceRepository(db *gorm.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

func (r *EvidenceRepository) InsertEvidence(ctx context.Context, record ports.EvidenceRecord) (bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return false, err
	}

	row := model.EvidenceRecord{
		EvidenceID:       record.EvidenceID,
		DatasetVersionID: record.DatasetVersionID,
		Kind:             record.Kind,
		Payload:          record.Payload,
		CreatedAt:        record.CreatedAt,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "evidence_id"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "insert evidence record")
	}
	return result.RowsAffected > 0, nil
}

func (r *EvidenceRepository) GetEvidence(ctx context.Context, evidenceID string) (ports.EvidenceRecord, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.EvidenceRecord{}, err
	}

	var row model.EvidenceRecord
	if err := db.Where("evidence_id = ?", evidenceID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.EvidenceRecord{}, fmt.Errorf("%w: evidence %s", ledger.ErrMissingEvidence, evidenceID)
		}
		return ports.EvidenceRecord{}, errs.Wrap(err, "query evidence record")
	}
	return mapEvidence(row), nil
}

func (r *EvidenceRepository) GetEvidenceByIDs(ctx context.Context, evidenceIDs []string) ([]ports.EvidenceRecord, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}
	if len(evidenceIDs) == 0 {
		return nil, nil
	}

	var rows []model.EvidenceRecord
	if err := db.
		Where("evidence_id IN ?", evidenceIDs).
		Order("evidence_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query evidence records by ids")
	}

	items := make([]ports.EvidenceRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapEvidence(row))
	}
	return items, nil
}

func (r *EvidenceRepository) ListEvidenceByDataset(ctx context.Context, datasetVersionID string) ([]ports.EvidenceRecord, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.EvidenceRecord
	if err := db.
		Where("dataset_version_id = ?", datasetVersionID).
		Order("created_at asc, evidence_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query evidence records")
	}

	items := make([]ports.EvidenceRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapEvidence(row))
	}
	return items, nil
}

func (r *EvidenceRepository) InsertFinding(ctx context.Context, record ports.FindingRecord) (bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return false, err
	}

	row := model.FindingRecord{
		FindingID:        record.FindingID,
		DatasetVersionID: record.DatasetVersionID,
		RawRecordID:      record.RawRecordID,
		Kind:             record.Kind,
		Payload:          record.Payload,
		CreatedAt:        record.CreatedAt,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "finding_id"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "insert finding record")
	}
	return result.RowsAffected > 0, nil
}

func (r *EvidenceRepository) GetFinding(ctx context.Context, findingID string) (ports.FindingRecord, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.FindingRecord{}, err
	}

	var row model.FindingRecord
	if err := db.Where("finding_id = ?", findingID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.FindingRecord{}, fmt.Errorf("%w: finding %s", ledger.ErrMissingEvidence, findingID)
		}
		return ports.FindingRecord{}, errs.Wrap(err, "query finding record")
	}
	return mapFinding(row), nil
}

func (r *EvidenceRepository) GetFindingsByIDs(ctx context.Context, findingIDs []string) ([]ports.FindingRecord, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}
	if len(findingIDs) == 0 {
		return nil, nil
	}

	var rows []model.FindingRecord
	if err := db.
		Where("finding_id IN ?", findingIDs).
		Order("finding_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query finding records by ids")
	}

	items := make([]ports.FindingRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapFinding(row))
	}
	return items, nil
}

func (r *EvidenceRepository) ListFindingsByDataset(ctx context.Context, datasetVersionID string) ([]ports.FindingRecord, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.FindingRecord
	if err := db.
		Where("dataset_version_id = ?", datasetVersionID).
		Order("created_at asc, finding_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query finding records")
	}

	items := make([]ports.FindingRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapFinding(row))
	}
	return items, nil
}

func (r *EvidenceRepository) InsertLink(ctx context.Context, link ports.FindingEvidenceLink) (bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return false, err
	}

	row := model.FindingEvidenceLink{
		LinkID:     link.LinkID,
		FindingID:  link.FindingID,
		EvidenceID: link.EvidenceID,
		CreatedAt:  link.CreatedAt,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "link_id"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "insert finding evidence link")
	}
	return result.RowsAffected > 0, nil
}

func (r *EvidenceRepository) GetLink(ctx context.Context, linkID string) (ports.FindingEvidenceLink, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.FindingEvidenceLink{}, err
	}

	var row model.FindingEvidenceLink
	if err := db.Where("link_id = ?", linkID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.FindingEvidenceLink{}, fmt.Errorf("%w: link %s", ledger.ErrMissingEvidence, linkID)
		}
		return ports.FindingEvidenceLink{}, errs.Wrap(err, "query finding evidence link")
	}
	return ports.FindingEvidenceLink{
		LinkID:     row.LinkID,
		FindingID:  row.FindingID,
		EvidenceID: row.EvidenceID,
		CreatedAt:  row.CreatedAt,
	}, nil
}

func (r *EvidenceRepository) ListLinksByFindings(ctx context.Context, findingIDs []string) ([]ports.FindingEvidenceLink, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}
	if len(findingIDs) == 0 {
		return nil, nil
	}

	var rows []model.FindingEvidenceLink
	if err := db.
		Where("finding_id IN ?", findingIDs).
		Order("link_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query finding evidence links")
	}

	items := make([]ports.FindingEvidenceLink, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.FindingEvidenceLink{
			LinkID:     row.LinkID,
			FindingID:  row.FindingID,
			EvidenceID: row.EvidenceID,
			CreatedAt:  row.CreatedAt,
		})
	}
	return items, nil
}

func mapEvidence(row model.EvidenceRecord) ports.EvidenceRecord {
	return ports.EvidenceRecord{
		EvidenceID:       row.EvidenceID,
		DatasetVersionID: row.DatasetVersionID,
		Kind:             row.Kind,
		Payload:          row.Payload,
		CreatedAt:        row.CreatedAt,
	}
}

func mapFinding(row model.FindingRecord) ports.FindingRecord {
	return ports.FindingRecord{
		FindingID:        row.FindingID,
		DatasetVersionID: row.DatasetVersionID,
		RawRecordID:      row.RawRecordID,
		Kind:             row.Kind,
		Payload:          row.Payload,
		CreatedAt:        row.CreatedAt,
	}
}
