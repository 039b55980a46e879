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

type ArtifactRepository struct {
	db *gorm.DB
}

func NewArtifactRepository(db *gorm.DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// InsertArtifact is conflict-ignored on the content-derived key, so
// concurrent puts of identical content cannot duplicate storage or error.
func (r *ArtifactRepository) InsertArtifact(ctx context.Context, artifact ports.Artifact) (bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return false, err
	}

	row := model.Artifact{
		Key:         artifact.Key,
		SHA256:      artifact.SHA256,
		Size:        artifact.Size,
		ContentType: artifact.ContentType,
		Content:     artifact.Content,
		CreatedAt:   artifact.CreatedAt,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "insert artifact")
	}
	return result.RowsAffected > 0, nil
}

func (r *ArtifactRepository) GetArtifact(ctx context.Context, key string) (ports.Artifact, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Artifact{}, err
	}

	var row model.Artifact
	if err := db.Where("key = ?", key).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Artifact{}, fmt.Errorf("%w: %s", ledger.ErrArtifactNotFound, key)
		}
		return ports.Artifact{}, errs.Wrap(err, "query artifact")
	}
	return ports.Artifact{
		Key:         row.Key,
		SHA256:      row.SHA256,
		Size:        row.Size,
		ContentType: row.ContentType,
		Content:     row.Content,
		CreatedAt:   row.CreatedAt,
	}, nil
}
