package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightlinkhq/freightlink-backend/internal/users"
	"github.com/freightlinkhq/freightlink-backend/pkg/config"
	pkgmodels "github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
	pkgerrors "github.com/freightlinkhq/freightlink-backend/pkg/errors"
	"github.com/freightlinkhq/freightlink-backend/pkg/types"
)

type stubTxRunner struct{}

func (s stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubUserRepository struct {
	data      map[string]*pkgmodels.User
	created   *pkgmodels.User
	createErr error
}

func newStubUserRepository() *stubUserRepository {
	return &stubUserRepository{data: map[string]*pkgmodels.User{}}
}

func (s *stubUserRepository) FindByEmail(ctx context.Context, email string) (*pkgmodels.User, error) {
	if user, ok := s.data[email]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepository) Create(ctx context.Context, dto users.CreateUserDTO) (*pkgmodels.User, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	user := dto.ToModel()
	user.ID = uuid.New()
	s.data[dto.Email] = user
	s.created = user
	return user, nil
}

func newRegisterTestSetup(t *testing.T) (RegisterService, *stubUserRepository) {
	t.Helper()
	userRepo := newStubUserRepository()
	svc, err := NewRegisterService(RegisterServiceParams{
		TxRunner: stubTxRunner{},
		UserRepoFactory: func(tx *gorm.DB) registerUserRepository {
			return userRepo
		},
		PasswordConfig: config.PasswordConfig{},
	})
	if err != nil {
		t.Fatalf("new register service: %v", err)
	}
	return svc, userRepo
}

func sampleContractorRequest(email string) RegisterRequest {
	company := "Spedition Krause GmbH"
	return RegisterRequest{
		FirstName:   "Jonas",
		LastName:    "Krause",
		Email:       email,
		Password:    "Secret123!long",
		Role:        enums.UserRoleContractor,
		CompanyName: &company,
		Address: &types.Address{
			Line1:      "Logistikpark 7",
			City:       "Dortmund",
			PostalCode: "44147",
			Country:    "DE",
		},
		AcceptTOS: true,
	}
}

func TestRegisterCreatesContractor(t *testing.T) {
	svc, userRepo := newRegisterTestSetup(t)
	req := sampleContractorRequest("dispo@krause.example")

	created, err := svc.Register(context.Background(), req)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if userRepo.created == nil {
		t.Fatal("expected user to be created")
	}
	if userRepo.created.Role != enums.UserRoleContractor {
		t.Fatalf("expected contractor role, got %s", userRepo.created.Role)
	}
	if userRepo.created.Verified {
		t.Fatal("new contractors must start unverified")
	}
	if created.Email != "dispo@krause.example" {
		t.Fatalf("unexpected email %s", created.Email)
	}
}

func TestRegisterCustomerWithoutCompany(t *testing.T) {
	svc, userRepo := newRegisterTestSetup(t)
	req := RegisterRequest{
		FirstName: "Mara",
		LastName:  "Weber",
		Email:     "mara@example.com",
		Password:  "Secret123!long",
		Role:      enums.UserRoleCustomer,
		AcceptTOS: true,
	}

	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if userRepo.created == nil || userRepo.created.Role != enums.UserRoleCustomer {
		t.Fatalf("expected customer account, got %+v", userRepo.created)
	}
}

func TestRegisterContractorRequiresCompany(t *testing.T) {
	svc, _ := newRegisterTestSetup(t)
	req := sampleContractorRequest("dispo@krause.example")
	req.CompanyName = nil

	_, err := svc.Register(context.Background(), req)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	svc, _ := newRegisterTestSetup(t)
	req := sampleContractorRequest("sneaky@example.com")
	req.Role = enums.UserRoleAdmin

	_, err := svc.Register(context.Background(), req)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, userRepo := newRegisterTestSetup(t)
	existing := &pkgmodels.User{ID: uuid.New(), Email: "dispo@krause.example"}
	userRepo.data[existing.Email] = existing

	_, err := svc.Register(context.Background(), sampleContractorRequest(existing.Email))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestAdminRegisterCreatesVerifiedAdmin(t *testing.T) {
	userRepo := newStubUserRepository()
	svc, err := NewAdminRegisterService(AdminRegisterServiceParams{
		TxRunner: stubTxRunner{},
		UserRepoFactory: func(tx *gorm.DB) registerUserRepository {
			return userRepo
		},
		PasswordConfig: config.PasswordConfig{},
	})
	if err != nil {
		t.Fatalf("new admin register service: %v", err)
	}

	created, err := svc.Register(context.Background(), AdminRegisterRequest{
		FirstName: "Ops",
		LastName:  "Admin",
		Email:     "Ops@FreightLink.example",
		Password:  "Secret123!long",
	})
	if err != nil {
		t.Fatalf("admin register failed: %v", err)
	}
	if created.Email != "ops@freightlink.example" {
		t.Fatalf("email not normalized: %s", created.Email)
	}
	if userRepo.created.Role != enums.UserRoleAdmin {
		t.Fatalf("expected admin role, got %s", userRepo.created.Role)
	}
}
