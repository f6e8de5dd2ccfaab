package domain

import "time"

type AuditPriority string

const (
	AuditNormal AuditPriority = "normal"
	AuditUrgent AuditPriority = "urgent"
)

// AuditEvent records sensitive mutations (payment deletion, edits, gateway
// status flips). Urgent events are pushed to connected admin/manager
// sessions over the notification feed.
type AuditEvent struct {
	ID       int64         `json:"id" gorm:"primaryKey"`
	Action   string        `json:"action" gorm:"not null"`
	Entity   string        `json:"entity" gorm:"not null"`
	EntityID int64         `json:"entity_id" gorm:"index"`
	ActorID  int64         `json:"actor_id"`
	Priority AuditPriority `json:"priority" gorm:"type:varchar(10);default:'normal'"`
	Detail   string        `json:"detail,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
}

func (AuditEvent) TableName() string { return "audit_events" }
