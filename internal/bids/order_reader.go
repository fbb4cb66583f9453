package bids

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freightlinkhq/freightlink-backend/internal/orders"
	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
)

type orderReader struct {
	repo orders.Repository
}

// NewOrderReader adapts the orders repository to the narrow view the
// acceptance transaction needs.
func NewOrderReader(repo orders.Repository) OrderReader {
	return &orderReader{repo: repo}
}

func (o *orderReader) WithTx(tx *gorm.DB) OrderReader {
	if tx == nil {
		return o
	}
	return &orderReader{repo: o.repo.WithTx(tx)}
}

func (o *orderReader) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return o.repo.FindByID(ctx, id)
}

func (o *orderReader) AssignContractorIf(ctx context.Context, orderID, contractorID uuid.UUID, customerPrice, contractorPrice decimal.Decimal) (int64, error) {
	return o.repo.AssignContractorIf(ctx, orderID, contractorID, customerPrice, contractorPrice)
}
