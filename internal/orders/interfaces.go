package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
	"github.com/freightlinkhq/freightlink-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their stops.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDWithStops(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	ListByStatus(ctx context.Context, status enums.OrderStatus, params pagination.Params) ([]models.Order, string, error)
	// UpdateStatusIf performs the conditional status write all
	// cross-row invariants hang on: the update only lands when the
	// row still carries the expected current status, and the number
	// of affected rows is reported back so callers can detect a lost
	// race instead of silently double-assigning.
	UpdateStatusIf(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (int64, error)
	// AssignContractorIf writes the winning contractor, the captured
	// prices and the accepted status onto the order, guarded on the
	// status still being pending at write time.
	AssignContractorIf(ctx context.Context, orderID, contractorID uuid.UUID, customerPrice, contractorPrice decimal.Decimal) (int64, error)
	Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	NextOrderNumber(ctx context.Context) (int64, error)
}
