package model

type DatasetVersion struct {
	DatasetVersionID string `gorm:"column:dataset_version_id;type:text;primaryKey"`
	CreatedAt        string `gorm:"column:created_at;type:text;not null"`
}

func (DatasetVersion) TableName() string {
	return "dataset_versions"
}
