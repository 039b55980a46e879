package model

type Artifact struct {
	Key         string `gorm:"column:key;type:text;primaryKey"`
	SHA256      string `gorm:"column:sha256;type:text;not null;index"`
	Size        int64  `gorm:"column:size;not null"`
	ContentType string `gorm:"column:content_type;type:text;not null;default:''"`
	Content     []byte `gorm:"column:content;type:blob;not null"`
	CreatedAt   string `gorm:"column:created_at;type:text;not null"`
}

func (Artifact) TableName() string {
	return "artifacts"
}
