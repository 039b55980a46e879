package model

type RawRecord struct {
	RawRecordID      string `gorm:"column:raw_record_id;type:text;primaryKey"`
	DatasetVersionID string `gorm:"column:dataset_version_id;type:text;not null;index"`
	Payload          string `gorm:"column:payload;type:text;not null"`
	FileChecksum     string `gorm:"column:file_checksum;type:text;not null;default:''"`
	LegacyNoChecksum bool   `gorm:"column:legacy_no_checksum;not null;default:0"`
	CreatedAt        string `gorm:"column:created_at;type:text;not null"`
}

func (RawRecord) TableName() string {
	return "raw_records"
}
