package cmr

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	"github.com/freightlinkhq/freightlink-backend/pkg/types"
)

// Repository defines persistence operations for consignment notes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, cmrs []models.CMR) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.CMR, error)
	// ListByGroup returns the group's rows ascending by stop index.
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.CMR, error)
	Update(ctx context.Context, cmrID uuid.UUID, updates map[string]any) error
	// UpdateGroup applies the same column updates to every row of the
	// group in one statement.
	UpdateGroup(ctx context.Context, groupID uuid.UUID, updates map[string]any) error
}

// NumberSource hands out unique human-readable CMR numbers. The
// numbers come from the datastore and are injected at creation time.
type NumberSource interface {
	Next(ctx context.Context, tx *gorm.DB, count int) ([]string, error)
}

// OrderDirectory supplies the order rows a group is built from.
type OrderDirectory interface {
	FindByIDWithStops(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// CarrierProfile is the contractor snapshot stamped onto every note.
type CarrierProfile struct {
	Name    string
	Address types.Address
}

// ProfileDirectory is the read-only profile lookup used to populate
// carrier blocks.
type ProfileDirectory interface {
	CarrierProfile(ctx context.Context, contractorID uuid.UUID) (*CarrierProfile, error)
}
