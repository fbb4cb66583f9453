package bids

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Repository defines persistence operations for the bid ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, bid *models.Bid) (*models.Bid, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	// ListByOrder returns bids cheapest-first, earliest-first within
	// equal amounts. Acceptance remains a manual choice; the ordering
	// only drives presentation.
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Bid, error)
	ExistsForOrderAndContractor(ctx context.Context, orderID, contractorID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, bidID uuid.UUID, status enums.BidStatus) error
	UpdateAmount(ctx context.Context, bidID uuid.UUID, amount decimal.Decimal) error
	RejectSiblings(ctx context.Context, orderID, acceptedBidID uuid.UUID) error
	Delete(ctx context.Context, bidID uuid.UUID) error
}

// EligibilityChecker is the verification capability boundary. Only
// verified contractors may place bids.
type EligibilityChecker interface {
	IsContractorEligible(ctx context.Context, contractorID uuid.UUID) (bool, error)
}

// OrderReader supplies the order rows the acceptance transaction
// re-reads and conditionally updates.
type OrderReader interface {
	WithTx(tx *gorm.DB) OrderReader
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// AssignContractorIf writes the winner onto the order, guarded on
	// the status still being pending at write time. Returns the number
	// of affected rows; zero means another acceptance already won.
	AssignContractorIf(ctx context.Context, orderID, contractorID uuid.UUID, customerPrice, contractorPrice decimal.Decimal) (int64, error)
}

// AdminDirectory yields the capability-scoped recipient list for
// admin broadcasts. Injected so the bid engine stays free of user
// directory concerns.
type AdminDirectory interface {
	AdminRecipients(ctx context.Context) ([]uuid.UUID, error)
}

// Notifier is the best-effort notification boundary; implementations
// never propagate failure to the caller.
type Notifier interface {
	Notify(ctx context.Context, recipient uuid.UUID, event enums.NotificationType, payload map[string]any)
}
