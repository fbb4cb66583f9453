package controllers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightlinkhq/freightlink-backend/internal/cmr"
	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
	pkgerrors "github.com/freightlinkhq/freightlink-backend/pkg/errors"
)

type stubCMRService struct {
	group []models.CMR
	next  *models.CMR
	err   error

	proofCMR    uuid.UUID
	proof       *cmr.StopProof
	pickupInput *cmr.PickupSignaturesInput
}

func (s *stubCMRService) CreateGroupForOrder(ctx context.Context, orderID uuid.UUID) ([]models.CMR, error) {
	return s.group, s.err
}

func (s *stubCMRService) GetGroup(ctx context.Context, groupID uuid.UUID) ([]models.CMR, error) {
	return s.group, s.err
}

func (s *stubCMRService) GroupForOrder(ctx context.Context, orderID uuid.UUID) ([]models.CMR, error) {
	return s.group, s.err
}

func (s *stubCMRService) RecordStopCompletion(ctx context.Context, cmrID uuid.UUID, proof cmr.StopProof) (*models.CMR, error) {
	s.proofCMR = cmrID
	s.proof = &proof
	return s.next, s.err
}

func (s *stubCMRService) RecordPickupSignatures(ctx context.Context, input cmr.PickupSignaturesInput) error {
	s.pickupInput = &input
	return s.err
}

type stubCMRRepo struct {
	note *models.CMR
	err  error
}

func (s *stubCMRRepo) WithTx(tx *gorm.DB) cmr.Repository { return s }

func (s *stubCMRRepo) CreateBatch(ctx context.Context, cmrs []models.CMR) error { return s.err }

func (s *stubCMRRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.CMR, error) {
	if s.note == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.note, s.err
}

func (s *stubCMRRepo) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.CMR, error) {
	return nil, s.err
}

func (s *stubCMRRepo) Update(ctx context.Context, cmrID uuid.UUID, updates map[string]any) error {
	return s.err
}

func (s *stubCMRRepo) UpdateGroup(ctx context.Context, groupID uuid.UUID, updates map[string]any) error {
	return s.err
}

type stubDocsService struct {
	artifact *models.CMRArtifact
	data     []byte
	err      error
}

func (s *stubDocsService) Render(note models.CMR, order *models.Order) ([]byte, error) {
	return s.data, s.err
}

func (s *stubDocsService) MergeGroup(ctx context.Context, groupID uuid.UUID) (*models.CMRArtifact, error) {
	return s.artifact, s.err
}

func (s *stubDocsService) LatestArtifact(ctx context.Context, groupID uuid.UUID) (*models.CMRArtifact, []byte, error) {
	return s.artifact, s.data, s.err
}

func TestGetCMRGroupVisibleToCustomer(t *testing.T) {
	customerID := uuid.New()
	orderID := uuid.New()
	groupID := uuid.New()
	svc := &stubCMRService{group: []models.CMR{{ID: uuid.New(), OrderID: orderID, GroupID: groupID, StopIndex: 0}}}
	ordersSvc := &stubOrdersService{order: &models.Order{ID: orderID, CustomerID: customerID}}
	handler := GetCMRGroup(svc, ordersSvc, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cmr-groups/"+groupID.String(), nil)
	req = authedRequest(req, customerID, enums.UserRoleCustomer)
	req = withPathParam(req, "groupId", groupID.String())
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestGetCMRGroupHiddenFromUnassignedContractor(t *testing.T) {
	orderID := uuid.New()
	groupID := uuid.New()
	assigned := uuid.New()
	svc := &stubCMRService{group: []models.CMR{{ID: uuid.New(), OrderID: orderID, GroupID: groupID}}}
	ordersSvc := &stubOrdersService{order: &models.Order{ID: orderID, CustomerID: uuid.New(), ContractorID: &assigned}}
	handler := GetCMRGroup(svc, ordersSvc, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cmr-groups/"+groupID.String(), nil)
	req = authedRequest(req, uuid.New(), enums.UserRoleContractor)
	req = withPathParam(req, "groupId", groupID.String())
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
	if code := decodeErrorCode(t, resp); code != string(pkgerrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN got %s", code)
	}
}

func TestGetCMRGroupEmptyIsNotFound(t *testing.T) {
	groupID := uuid.New()
	handler := GetCMRGroup(&stubCMRService{}, &stubOrdersService{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cmr-groups/"+groupID.String(), nil)
	req = authedRequest(req, uuid.New(), enums.UserRoleCustomer)
	req = withPathParam(req, "groupId", groupID.String())
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestCompleteStopByAssignedContractor(t *testing.T) {
	contractorID := uuid.New()
	orderID := uuid.New()
	cmrID := uuid.New()
	svc := &stubCMRService{next: &models.CMR{ID: uuid.New(), StopIndex: 1}}
	repo := &stubCMRRepo{note: &models.CMR{ID: cmrID, OrderID: orderID, StopIndex: 0}}
	ordersSvc := &stubOrdersService{order: &models.Order{ID: orderID, ContractorID: &contractorID, Status: enums.OrderStatusInTransit}}
	handler := CompleteStop(svc, repo, ordersSvc, testLogger())

	body := `{"signature":{"image_key":"sig/consignee.png","signer_name":"Anna Kowalska","signed_at":"2026-09-04T16:20:00Z"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cmrs/"+cmrID.String()+"/complete-stop", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, contractorID, enums.UserRoleContractor)
	req = withPathParam(req, "cmrId", cmrID.String())
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", resp.Code, resp.Body.String())
	}
	if svc.proofCMR != cmrID {
		t.Fatalf("expected completion on %s got %s", cmrID, svc.proofCMR)
	}
	if svc.proof == nil || svc.proof.Signature == nil || svc.proof.Signature.SignerName != "Anna Kowalska" {
		t.Fatalf("expected signature forwarded got %+v", svc.proof)
	}
}

func TestCompleteStopRejectsOtherCarrier(t *testing.T) {
	assigned := uuid.New()
	orderID := uuid.New()
	cmrID := uuid.New()
	repo := &stubCMRRepo{note: &models.CMR{ID: cmrID, OrderID: orderID}}
	ordersSvc := &stubOrdersService{order: &models.Order{ID: orderID, ContractorID: &assigned}}
	handler := CompleteStop(&stubCMRService{}, repo, ordersSvc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cmrs/"+cmrID.String()+"/complete-stop", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, uuid.New(), enums.UserRoleContractor)
	req = withPathParam(req, "cmrId", cmrID.String())
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestCompleteStopUnknownNote(t *testing.T) {
	cmrID := uuid.New()
	handler := CompleteStop(&stubCMRService{}, &stubCMRRepo{}, &stubOrdersService{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cmrs/"+cmrID.String()+"/complete-stop", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, uuid.New(), enums.UserRoleContractor)
	req = withPathParam(req, "cmrId", cmrID.String())
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestRecordPickupSignaturesDelegates(t *testing.T) {
	contractorID := uuid.New()
	orderID := uuid.New()
	groupID := uuid.New()
	svc := &stubCMRService{group: []models.CMR{{ID: uuid.New(), OrderID: orderID, GroupID: groupID}}}
	ordersSvc := &stubOrdersService{order: &models.Order{ID: orderID, ContractorID: &contractorID}}
	handler := RecordPickupSignatures(svc, ordersSvc, testLogger())

	body := `{"sender":{"image_key":"sig/sender.png","signer_name":"Jonas Weber","signed_at":"2026-09-02T08:05:00Z"},"carrier":{"image_key":"sig/carrier.png","signer_name":"Iva Petrova","signed_at":"2026-09-02T08:06:00Z"},"sender_stop_index":0}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cmr-groups/"+groupID.String()+"/pickup-signatures", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, contractorID, enums.UserRoleContractor)
	req = withPathParam(req, "groupId", groupID.String())
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", resp.Code, resp.Body.String())
	}
	if svc.pickupInput == nil {
		t.Fatal("expected pickup input")
	}
	if svc.pickupInput.GroupID != groupID {
		t.Fatalf("expected group %s got %s", groupID, svc.pickupInput.GroupID)
	}
	if svc.pickupInput.Sender == nil || svc.pickupInput.Carrier == nil {
		t.Fatalf("expected both signatures forwarded got %+v", svc.pickupInput)
	}
}

func TestDownloadCMRDocumentStreamsArtifact(t *testing.T) {
	customerID := uuid.New()
	orderID := uuid.New()
	groupID := uuid.New()
	groups := &stubCMRService{group: []models.CMR{{ID: uuid.New(), OrderID: orderID, GroupID: groupID}}}
	ordersSvc := &stubOrdersService{order: &models.Order{ID: orderID, CustomerID: customerID}}
	docs := &stubDocsService{
		artifact: &models.CMRArtifact{ID: uuid.New(), GroupID: groupID, Filename: "cmr-group.pdf"},
		data:     []byte("%PDF-1.7 fake"),
	}
	handler := DownloadCMRDocument(docs, ordersSvc, groups, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cmr-groups/"+groupID.String()+"/document", nil)
	req = authedRequest(req, customerID, enums.UserRoleCustomer)
	req = withPathParam(req, "groupId", groupID.String())
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Disposition"); got != `attachment; filename="cmr-group.pdf"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if resp.Body.String() != "%PDF-1.7 fake" {
		t.Fatalf("unexpected body %q", resp.Body.String())
	}
}
