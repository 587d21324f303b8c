package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records every relationship transition, including rejected ones.
type AuditLog struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID    string         `gorm:"index:idx_audit_trace;size:64" json:"trace_id"`
	ActorID    int64          `gorm:"index:idx_audit_actor;not null" json:"actor_id"`
	TargetID   *int64         `json:"target_id"`
	GroupID    *int64         `json:"group_id"`
	Action     string         `gorm:"size:64;not null" json:"action"`
	Request    datatypes.JSON `json:"request"`
	Response   datatypes.JSON `json:"response"`
	Error      string         `gorm:"type:text" json:"error"`
	DurationMs int            `json:"duration_ms"`
	CreatedAt  time.Time      `gorm:"index:idx_audit_created;autoCreateTime:milli" json:"created_at"`
}
