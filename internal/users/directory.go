package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightlinkhq/freightlink-backend/internal/cmr"
	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
	pkgerrors "github.com/freightlinkhq/freightlink-backend/pkg/errors"
)

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListByRole(ctx context.Context, role enums.UserRole) ([]models.User, error)
}

// Directory answers the capability questions other domains ask about
// users: bid eligibility, admin recipients and carrier profiles.
type Directory struct {
	users userReader
}

// NewDirectory wraps the repository behind the read-only lookups.
func NewDirectory(users userReader) (*Directory, error) {
	if users == nil {
		return nil, errors.New("users repository required")
	}
	return &Directory{users: users}, nil
}

// IsContractorEligible reports whether the contractor may place bids.
// Only active, verified contractor accounts qualify.
func (d *Directory) IsContractorEligible(ctx context.Context, contractorID uuid.UUID) (bool, error) {
	user, err := d.users.FindByID(ctx, contractorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.Role == enums.UserRoleContractor && user.IsActive && user.Verified, nil
}

// AdminRecipients lists the active admin user IDs for broadcasts.
func (d *Directory) AdminRecipients(ctx context.Context) ([]uuid.UUID, error) {
	admins, err := d.users.ListByRole(ctx, enums.UserRoleAdmin)
	if err != nil {
		return nil, err
	}
	recipients := make([]uuid.UUID, 0, len(admins))
	for _, admin := range admins {
		recipients = append(recipients, admin.ID)
	}
	return recipients, nil
}

// CarrierProfile resolves the snapshot stamped onto consignment notes.
func (d *Directory) CarrierProfile(ctx context.Context, contractorID uuid.UUID) (*cmr.CarrierProfile, error) {
	user, err := d.users.FindByID(ctx, contractorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contractor not found")
		}
		return nil, err
	}
	if user.Role != enums.UserRoleContractor {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user is not a contractor")
	}
	profile := &cmr.CarrierProfile{Name: user.DisplayName()}
	if user.Address != nil {
		profile.Address = *user.Address
	}
	return profile, nil
}
