package model

type FindingRecord struct {
	FindingID        string `gorm:"column:finding_id;type:text;primaryKey"`
	DatasetVersionID string `gorm:"column:dataset_version_id;type:text;not null;index"`
	RawRecordID      string `gorm:"column:raw_record_id;type:text;not null;index"`
	Kind             string `gorm:"column:kind;type:text;not null"`
	Payload          string `gorm:"column:payload;type:text;not null"`
	CreatedAt        string `gorm:"column:created_at;type:text;not null"`
}

func (FindingRecord) TableName() string {
	return "finding_records"
}
