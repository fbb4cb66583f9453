package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	internalorders "github.com/freightlinkhq/freightlink-backend/internal/orders"
	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
	pkgerrors "github.com/freightlinkhq/freightlink-backend/pkg/errors"
	"github.com/freightlinkhq/freightlink-backend/pkg/pagination"
)

type stubOrdersService struct {
	created *models.Order
	order   *models.Order
	err     error

	createInput     *internalorders.CreateInput
	transitionInput *internalorders.TransitionInput
	overrideInput   *internalorders.OverrideInput
	cancelledOrder  uuid.UUID
}

func (s *stubOrdersService) Create(ctx context.Context, input internalorders.CreateInput) (*models.Order, error) {
	s.createInput = &input
	return s.created, s.err
}

func (s *stubOrdersService) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubOrdersService) Transition(ctx context.Context, input internalorders.TransitionInput) error {
	s.transitionInput = &input
	return s.err
}

func (s *stubOrdersService) AdminOverride(ctx context.Context, input internalorders.OverrideInput) error {
	s.overrideInput = &input
	return s.err
}

func (s *stubOrdersService) Cancel(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor) error {
	s.cancelledOrder = orderID
	return s.err
}

type stubOrdersRepo struct {
	items  []models.Order
	cursor string
	err    error

	listedCustomer uuid.UUID
	listedStatus   enums.OrderStatus
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) internalorders.Repository { return s }

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	return order, s.err
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) FindByIDWithStops(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	s.listedCustomer = customerID
	return s.items, s.cursor, s.err
}

func (s *stubOrdersRepo) ListByStatus(ctx context.Context, status enums.OrderStatus, params pagination.Params) ([]models.Order, string, error) {
	s.listedStatus = status
	return s.items, s.cursor, s.err
}

func (s *stubOrdersRepo) UpdateStatusIf(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (int64, error) {
	return 0, s.err
}

func (s *stubOrdersRepo) AssignContractorIf(ctx context.Context, orderID, contractorID uuid.UUID, customerPrice, contractorPrice decimal.Decimal) (int64, error) {
	return 0, s.err
}

func (s *stubOrdersRepo) Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return s.err
}

func (s *stubOrdersRepo) NextOrderNumber(ctx context.Context) (int64, error) {
	return 1, s.err
}

const createOrderBody = `{
	"pickup_address": {"line1":"Industriestr. 4","city":"Hamburg","state":"HH","postal_code":"20095","country":"DE"},
	"pickup_contact_name": "Jonas Weber",
	"pickup_contact_phone": "+49 40 1234567",
	"pickup_date": "2026-09-02T08:00:00Z",
	"delivery_address": {"line1":"Kozia 12","city":"Warsaw","state":"MZ","postal_code":"00-070","country":"PL"},
	"delivery_contact_name": "Anna Kowalska",
	"delivery_contact_phone": "+48 22 7654321",
	"delivery_date": "2026-09-04T16:00:00Z",
	"cargo_description": "12 pallets of machine parts",
	"price": 1450.00
}`

func TestCreateOrderSuccess(t *testing.T) {
	customerID := uuid.New()
	svc := &stubOrdersService{created: &models.Order{ID: uuid.New(), CustomerID: customerID, OrderNumber: 1042}}
	handler := CreateOrder(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", bytes.NewReader([]byte(createOrderBody)))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, customerID, enums.UserRoleCustomer)
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", resp.Code, resp.Body.String())
	}
	if svc.createInput == nil {
		t.Fatal("expected service to receive create input")
	}
	if svc.createInput.CustomerID != customerID {
		t.Fatalf("expected customer %s got %s", customerID, svc.createInput.CustomerID)
	}
	if !svc.createInput.Price.Equal(decimal.RequireFromString("1450.00")) {
		t.Fatalf("unexpected price %s", svc.createInput.Price)
	}
}

func TestCreateOrderMissingPrice(t *testing.T) {
	handler := CreateOrder(&stubOrdersService{}, testLogger())

	body := `{"pickup_contact_name":"Jonas Weber"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, uuid.New(), enums.UserRoleCustomer)
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCreateOrderRequiresAuthContext(t *testing.T) {
	handler := CreateOrder(&stubOrdersService{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", bytes.NewReader([]byte(createOrderBody)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestListOrdersCustomerScopesToOwn(t *testing.T) {
	customerID := uuid.New()
	repo := &stubOrdersRepo{items: []models.Order{{ID: uuid.New(), CustomerID: customerID}}, cursor: "next-page"}
	handler := ListOrders(repo, testLogger())

	req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/v1/orders/", nil), customerID, enums.UserRoleCustomer)
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if repo.listedCustomer != customerID {
		t.Fatalf("expected list scoped to %s got %s", customerID, repo.listedCustomer)
	}

	var envelope struct {
		Data struct {
			Items  []models.Order `json:"items"`
			Cursor string         `json:"cursor"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Items) != 1 || envelope.Data.Cursor != "next-page" {
		t.Fatalf("unexpected page %+v", envelope.Data)
	}
}

func TestListOrdersContractorSeesPendingBoard(t *testing.T) {
	repo := &stubOrdersRepo{}
	handler := ListOrders(repo, testLogger())

	req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/v1/orders/", nil), uuid.New(), enums.UserRoleContractor)
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if repo.listedStatus != enums.OrderStatusPending {
		t.Fatalf("expected pending board got %s", repo.listedStatus)
	}
}

func TestListOrdersAdminStatusFilter(t *testing.T) {
	repo := &stubOrdersRepo{}
	handler := ListOrders(repo, testLogger())

	req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/v1/orders/?status=completed", nil), uuid.New(), enums.UserRoleAdmin)
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if repo.listedStatus != enums.OrderStatusCompleted {
		t.Fatalf("expected completed filter got %s", repo.listedStatus)
	}
}

func TestListOrdersAdminRejectsUnknownStatus(t *testing.T) {
	handler := ListOrders(&stubOrdersRepo{}, testLogger())

	req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/v1/orders/?status=teleported", nil), uuid.New(), enums.UserRoleAdmin)
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestOrderDetailHiddenFromOtherCustomer(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{order: &models.Order{ID: orderID, CustomerID: uuid.New(), Status: enums.OrderStatusPending}}
	handler := OrderDetail(svc, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil)
	req = authedRequest(req, uuid.New(), enums.UserRoleCustomer)
	req = withPathParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
	if code := decodeErrorCode(t, resp); code != string(pkgerrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN got %s", code)
	}
}

func TestOrderDetailContractorSeesPendingOrder(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{order: &models.Order{ID: orderID, CustomerID: uuid.New(), Status: enums.OrderStatusPending}}
	handler := OrderDetail(svc, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil)
	req = authedRequest(req, uuid.New(), enums.UserRoleContractor)
	req = withPathParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestOrderDetailContractorBlockedAfterAssignment(t *testing.T) {
	orderID := uuid.New()
	assigned := uuid.New()
	svc := &stubOrdersService{order: &models.Order{
		ID:           orderID,
		CustomerID:   uuid.New(),
		ContractorID: &assigned,
		Status:       enums.OrderStatusAccepted,
	}}
	handler := OrderDetail(svc, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil)
	req = authedRequest(req, uuid.New(), enums.UserRoleContractor)
	req = withPathParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestTransitionOrderParsesTarget(t *testing.T) {
	orderID := uuid.New()
	actorID := uuid.New()
	svc := &stubOrdersService{}
	handler := TransitionOrder(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/transition", bytes.NewReader([]byte(`{"target":"picked_up"}`)))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, actorID, enums.UserRoleContractor)
	req = withPathParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.transitionInput == nil {
		t.Fatal("expected transition input")
	}
	if svc.transitionInput.Target != enums.OrderStatusPickedUp {
		t.Fatalf("expected picked_up got %s", svc.transitionInput.Target)
	}
	if svc.transitionInput.Actor.UserID != actorID {
		t.Fatalf("expected actor %s got %s", actorID, svc.transitionInput.Actor.UserID)
	}
}

func TestTransitionOrderRejectsUnknownTarget(t *testing.T) {
	orderID := uuid.New()
	handler := TransitionOrder(&stubOrdersService{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/transition", bytes.NewReader([]byte(`{"target":"warp_speed"}`)))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, uuid.New(), enums.UserRoleContractor)
	req = withPathParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestTransitionOrderStateConflictSurfaces(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "transition disallowed")}
	handler := TransitionOrder(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/transition", bytes.NewReader([]byte(`{"target":"delivered"}`)))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, uuid.New(), enums.UserRoleContractor)
	req = withPathParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	if code := decodeErrorCode(t, resp); code != string(pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT got %s", code)
	}
}

func TestCancelOrderDelegates(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{}
	handler := CancelOrder(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", nil)
	req = authedRequest(req, uuid.New(), enums.UserRoleCustomer)
	req = withPathParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.cancelledOrder != orderID {
		t.Fatalf("expected cancel on %s got %s", orderID, svc.cancelledOrder)
	}
}

func TestAdminOverrideRequiresReason(t *testing.T) {
	orderID := uuid.New()
	handler := AdminOverrideOrder(&stubOrdersService{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/orders/"+orderID.String()+"/override", bytes.NewReader([]byte(`{"target":"completed"}`)))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, uuid.New(), enums.UserRoleAdmin)
	req = withPathParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminOverridePassesReason(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{}
	handler := AdminOverrideOrder(svc, testLogger())

	body := `{"target":"cancelled","reason":"customer dispute resolved off-platform"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/orders/"+orderID.String()+"/override", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, uuid.New(), enums.UserRoleAdmin)
	req = withPathParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.overrideInput == nil {
		t.Fatal("expected override input")
	}
	if svc.overrideInput.Target != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled got %s", svc.overrideInput.Target)
	}
	if svc.overrideInput.Reason != "customer dispute resolved off-platform" {
		t.Fatalf("unexpected reason %q", svc.overrideInput.Reason)
	}
}
