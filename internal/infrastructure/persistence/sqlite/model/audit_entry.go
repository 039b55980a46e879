package model

type AuditEntry struct {
	EntryID          uint64 `gorm:"column:entry_id;primaryKey;autoIncrement"`
	ActorID          string `gorm:"column:actor_id;type:text;not null"`
	ActorType        string `gorm:"column:actor_type;type:text;not null"`
	ActionType       string `gorm:"column:action_type;type:text;not null;index"`
	ActionLabel      string `gorm:"column:action_label;type:text;not null"`
	DatasetVersionID string `gorm:"column:dataset_version_id;type:text;not null;default:'';index"`
	Reason           string `gorm:"column:reason;type:text;not null;default:''"`
	ContextJSON      string `gorm:"column:context_json;type:text;not null;default:''"`
	Status           string `gorm:"column:status;type:text;not null"`
	ErrorMessage     string `gorm:"column:error_message;type:text;not null;default:''"`
	CreatedAt        string `gorm:"column:created_at;type:text;not null;index"`
}

func (AuditEntry) TableName() string {
	return "audit_entries"
}
