package model

type EvidenceRecord struct {
	EvidenceID       string `gorm:"column:evidence_id;type:text;primaryKey"`
	DatasetVersionID string `gorm:"column:dataset_version_id;type:text;not null;index"`
	Kind             string `gorm:"column:kind;type:text;not null"`
	Payload          string `gorm:"column:payload;type:text;not null"`
	CreatedAt        string `gorm:"column:created_at;type:text;not null"`
}

func (EvidenceRecord) TableName() string {
	return "evidence_records"
}
