package cmrdocs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
)

// GroupReader supplies the notes of one group, ascending by stop
// index.
type GroupReader interface {
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.CMR, error)
}

// GroupWriter refreshes the cached shared signature columns after a
// render recomputes the propagation.
type GroupWriter interface {
	UpdateGroup(ctx context.Context, groupID uuid.UUID, updates map[string]any) error
}

// OrderReader supplies the parent order a note is rendered with.
type OrderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// ArtifactRepository persists merged-document records.
type ArtifactRepository interface {
	WithTx(tx *gorm.DB) ArtifactRepository
	Create(ctx context.Context, artifact *models.CMRArtifact) error
	LatestByGroup(ctx context.Context, groupID uuid.UUID) (*models.CMRArtifact, error)
}

// ArtifactStore is the durable byte store for merged documents.
type ArtifactStore interface {
	Save(ctx context.Context, key, contentType string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
}

// Locker is the single-flight guard around a group merge.
type Locker interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}
