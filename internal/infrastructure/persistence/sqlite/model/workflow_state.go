package model

type WorkflowState struct {
	EntityID     string `gorm:"column:entity_id;type:text;primaryKey"`
	CurrentState string `gorm:"column:current_state;type:text;not null"`
	CreatedAt    string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt    string `gorm:"column:updated_at;type:text;not null"`
}

func (WorkflowState) TableName() string {
	return "workflow_states"
}

type WorkflowTransition struct {
	TransitionID     uint64 `gorm:"column:transition_id;primaryKey;autoIncrement"`
	EntityID         string `gorm:"column:entity_id;type:text;not null;index"`
	FromState        string `gorm:"column:from_state;type:text;not null"`
	ToState          string `gorm:"column:to_state;type:text;not null"`
	ActorID          string `gorm:"column:actor_id;type:text;not null"`
	ActorRoles       string `gorm:"column:actor_roles;type:text;not null;default:''"`
	RequiresApproval bool   `gorm:"column:requires_approval;not null;default:0"`
	CreatedAt        string `gorm:"column:created_at;type:text;not null"`
}

func (WorkflowTransition) TableName() string {
	return "workflow_transitions"
}
