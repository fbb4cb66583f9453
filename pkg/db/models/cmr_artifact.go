package models

import (
	"time"

	"github.com/google/uuid"
)

// CMRArtifact records a merged multi-stop document persisted to the
// artifact store. The latest row per group is the downloadable one;
// older rows are kept for audit.
type CMRArtifact struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupID     uuid.UUID `gorm:"column:group_id;type:uuid;not null;index"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ObjectKey   string    `gorm:"column:object_key;not null"`
	Filename    string    `gorm:"column:filename;not null"`
	SizeBytes   int64     `gorm:"column:size_bytes;not null"`
	ContentHash string    `gorm:"column:content_hash;not null"`
	GeneratedAt time.Time `gorm:"column:generated_at;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
