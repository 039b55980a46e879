package model

type FindingEvidenceLink struct {
	LinkID     string `gorm:"column:link_id;type:text;primaryKey"`
	FindingID  string `gorm:"column:finding_id;type:text;not null;index"`
	EvidenceID string `gorm:"column:evidence_id;type:text;not null;index"`
	CreatedAt  string `gorm:"column:created_at;type:text;not null"`
}

func (FindingEvidenceLink) TableName() string {
	return "finding_evidence_links"
}
