package cmr

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightlinkhq/freightlink-backend/internal/orders"
	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
	pkgerrors "github.com/freightlinkhq/freightlink-backend/pkg/errors"
	"github.com/freightlinkhq/freightlink-backend/pkg/outbox"
	"github.com/freightlinkhq/freightlink-backend/pkg/types"
)

type stubCMRRepo struct {
	rows map[uuid.UUID]*models.CMR
}

func newStubCMRRepo() *stubCMRRepo {
	return &stubCMRRepo{rows: make(map[uuid.UUID]*models.CMR)}
}

func (s *stubCMRRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubCMRRepo) CreateBatch(ctx context.Context, cmrs []models.CMR) error {
	for i := range cmrs {
		if cmrs[i].ID == uuid.Nil {
			cmrs[i].ID = uuid.New()
		}
		copied := cmrs[i]
		s.rows[copied.ID] = &copied
	}
	return nil
}

func (s *stubCMRRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.CMR, error) {
	row, ok := s.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *row
	return &copied, nil
}

func (s *stubCMRRepo) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.CMR, error) {
	var rows []models.CMR
	for _, row := range s.rows {
		if row.GroupID == groupID {
			rows = append(rows, *row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StopIndex < rows[j].StopIndex })
	return rows, nil
}

func (s *stubCMRRepo) Update(ctx context.Context, cmrID uuid.UUID, updates map[string]any) error {
	row, ok := s.rows[cmrID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	applyUpdates(row, updates)
	return nil
}

func (s *stubCMRRepo) UpdateGroup(ctx context.Context, groupID uuid.UUID, updates map[string]any) error {
	for _, row := range s.rows {
		if row.GroupID == groupID {
			applyUpdates(row, updates)
		}
	}
	return nil
}

func applyUpdates(row *models.CMR, updates map[string]any) {
	for key, value := range updates {
		switch key {
		case "consignee_signature":
			row.ConsigneeSignature = value.(*types.Signature)
		case "sender_signature":
			row.SenderSignature = value.(*types.Signature)
		case "shared_sender_signature":
			row.SharedSenderSignature = value.(*types.Signature)
		case "shared_carrier_signature":
			row.SharedCarrierSignature = value.(*types.Signature)
		case "shared_consignee_signature":
			row.SharedConsigneeSignature = value.(*types.Signature)
		case "delivery_photo":
			row.DeliveryPhoto = value.(*types.DeliveryPhoto)
		}
	}
}

type stubNumberSource struct {
	next int
}

func (s *stubNumberSource) Next(ctx context.Context, tx *gorm.DB, count int) ([]string, error) {
	numbers := make([]string, count)
	for i := range numbers {
		s.next++
		numbers[i] = fmt.Sprintf("CMR-%07d", s.next)
	}
	return numbers, nil
}

type stubOrderDir struct {
	order *models.Order
}

func (s *stubOrderDir) FindByIDWithStops(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.order
	return &copied, nil
}

type stubProfiles struct{}

func (stubProfiles) CarrierProfile(ctx context.Context, contractorID uuid.UUID) (*CarrierProfile, error) {
	return &CarrierProfile{
		Name:    "Spedition Krause GmbH",
		Address: types.Address{Line1: "Logistikpark 7", City: "Dortmund", Country: "DE"},
	}, nil
}

type transitionCall struct {
	orderID uuid.UUID
	target  enums.OrderStatus
}

type stubLifecycle struct {
	calls []transitionCall
	err   error
}

func (s *stubLifecycle) Transition(ctx context.Context, input orders.TransitionInput) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, transitionCall{orderID: input.OrderID, target: input.Target})
	return nil
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func testSig(name string) *types.Signature {
	return &types.Signature{
		ImageKey:   "sig/" + name,
		SignerName: name,
		SignedAt:   time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func testPhoto(name string) *types.DeliveryPhoto {
	return &types.DeliveryPhoto{
		ImageKey:   "photo/" + name,
		CapturedBy: name,
		CapturedAt: time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC),
	}
}

func multiStopOrder(extraDeliveries int) *models.Order {
	contractorID := uuid.New()
	order := &models.Order{
		ID:                  uuid.New(),
		OrderNumber:         10001,
		CustomerID:          uuid.New(),
		ContractorID:        &contractorID,
		PickupAddress:       types.Address{Line1: "Industriestr. 4", City: "Hamburg", Country: "DE"},
		PickupContactName:   "Versand Nord",
		DeliveryAddress:     types.Address{Line1: "Hafenstr. 1", City: "Bremen", Country: "DE"},
		DeliveryContactName: "Empfang Bremen",
		CargoDescription:    "12 pallets machine parts",
		Status:              enums.OrderStatusAccepted,
	}
	for i := 0; i < extraDeliveries; i++ {
		order.Stops = append(order.Stops, models.OrderStop{
			Kind:        enums.StopKindDelivery,
			Position:    i,
			Address:     types.Address{Line1: fmt.Sprintf("Zielweg %d", i+1), City: fmt.Sprintf("Stadt%d", i+1), Country: "DE"},
			ContactName: fmt.Sprintf("Empfang %d", i+1),
		})
	}
	return order
}

type testEnv struct {
	repo      *stubCMRRepo
	lifecycle *stubLifecycle
	pub       *stubOutboxPublisher
	svc       Service
}

func newTestEnv(t *testing.T, order *models.Order) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:      newStubCMRRepo(),
		lifecycle: &stubLifecycle{},
		pub:       &stubOutboxPublisher{},
	}
	svc, err := NewService(env.repo, &stubNumberSource{}, &stubOrderDir{order: order}, stubProfiles{}, env.lifecycle, stubTxRunner{}, env.pub, nil)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	env.svc = svc
	return env
}

func TestCreateGroupCardinality(t *testing.T) {
	order := multiStopOrder(2)
	env := newTestEnv(t, order)

	rows, err := env.svc.CreateGroupForOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 notes got %d", len(rows))
	}
	groupID := GroupIDForOrder(order.ID)
	seen := make(map[int]bool)
	numbers := make(map[string]bool)
	for _, row := range rows {
		if row.GroupID != groupID {
			t.Fatalf("note %s carries wrong group id", row.ID)
		}
		if row.TotalStops != 3 || !row.IsMultiStop {
			t.Fatalf("bad stop metadata %+v", row)
		}
		if seen[row.StopIndex] {
			t.Fatalf("duplicate stop index %d", row.StopIndex)
		}
		seen[row.StopIndex] = true
		if numbers[row.CMRNumber] {
			t.Fatalf("duplicate cmr number %s", row.CMRNumber)
		}
		numbers[row.CMRNumber] = true
		if row.CarrierName == "" || row.SenderName == "" || row.ConsigneeName == "" {
			t.Fatalf("missing party snapshot on stop %d", row.StopIndex)
		}
	}
	for i := 0; i < 3; i++ {
		if !seen[i] {
			t.Fatalf("missing stop index %d", i)
		}
	}
	// Primary delivery first, extra stops in list order.
	if rows[0].ConsigneeName != "Empfang Bremen" || rows[1].ConsigneeName != "Empfang 1" {
		t.Fatalf("unexpected consignee ordering %q %q", rows[0].ConsigneeName, rows[1].ConsigneeName)
	}
	if len(env.pub.events) != 1 || env.pub.events[0].EventType != enums.EventCMRGroupCreated {
		t.Fatalf("expected group created event got %+v", env.pub.events)
	}
}

func TestCreateGroupIdempotent(t *testing.T) {
	order := multiStopOrder(1)
	env := newTestEnv(t, order)

	first, err := env.svc.CreateGroupForOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	second, err := env.svc.CreateGroupForOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("re-invocation changed cardinality: %d vs %d", len(second), len(first))
	}
	if len(env.repo.rows) != len(first) {
		t.Fatalf("re-invocation created rows: %d stored", len(env.repo.rows))
	}
	if len(env.pub.events) != 1 {
		t.Fatalf("re-invocation emitted again: %d events", len(env.pub.events))
	}
}

func TestCreateGroupMissingContractor(t *testing.T) {
	order := multiStopOrder(1)
	order.ContractorID = nil
	env := newTestEnv(t, order)

	_, err := env.svc.CreateGroupForOrder(context.Background(), order.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeMissingContractor {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestRecordStopCompletionWalksAscendingIndex(t *testing.T) {
	order := multiStopOrder(2)
	env := newTestEnv(t, order)
	rows, err := env.svc.CreateGroupForOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Stop 2's recipient is absent (photo); stops 1 and 3 sign, in an
	// arbitrary completion order. The group completes only after all
	// three.
	next, err := env.svc.RecordStopCompletion(context.Background(), rows[2].ID, StopProof{Signature: testSig("empfang-3")})
	if err != nil {
		t.Fatalf("stop 3 failed: %v", err)
	}
	if next == nil || next.StopIndex != 0 {
		t.Fatalf("expected next stop 0 got %+v", next)
	}

	next, err = env.svc.RecordStopCompletion(context.Background(), rows[1].ID, StopProof{Photo: testPhoto("fahrer")})
	if err != nil {
		t.Fatalf("stop 2 failed: %v", err)
	}
	if next == nil || next.StopIndex != 0 {
		t.Fatalf("expected next stop 0 got %+v", next)
	}
	if len(env.lifecycle.calls) != 0 {
		t.Fatal("order must not transition before group completion")
	}

	next, err = env.svc.RecordStopCompletion(context.Background(), rows[0].ID, StopProof{Signature: testSig("empfang-1")})
	if err != nil {
		t.Fatalf("stop 1 failed: %v", err)
	}
	if next != nil {
		t.Fatalf("expected completion signal got %+v", next)
	}
	if len(env.lifecycle.calls) != 1 || env.lifecycle.calls[0].target != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered transition got %+v", env.lifecycle.calls)
	}
	last := env.pub.events[len(env.pub.events)-1]
	if last.EventType != enums.EventCMRGroupCompleted {
		t.Fatalf("expected group completed event got %s", last.EventType)
	}
}

func TestGroupCompletionMonotonic(t *testing.T) {
	order := multiStopOrder(0)
	env := newTestEnv(t, order)
	rows, err := env.svc.CreateGroupForOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := env.svc.RecordStopCompletion(context.Background(), rows[0].ID, StopProof{Signature: testSig("empfang")}); err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	// Re-proving an already complete stop must not reopen the group.
	next, err := env.svc.RecordStopCompletion(context.Background(), rows[0].ID, StopProof{Photo: testPhoto("fahrer")})
	if err != nil {
		t.Fatalf("repeat completion failed: %v", err)
	}
	if next != nil {
		t.Fatalf("group reopened: %+v", next)
	}
	group, _ := env.repo.ListByGroup(context.Background(), GroupIDForOrder(order.ID))
	for _, row := range group {
		if !row.StopComplete() {
			t.Fatalf("stop %d regressed to incomplete", row.StopIndex)
		}
	}
}

func TestRecordStopCompletionRequiresProof(t *testing.T) {
	order := multiStopOrder(0)
	env := newTestEnv(t, order)
	rows, _ := env.svc.CreateGroupForOrder(context.Background(), order.ID)

	_, err := env.svc.RecordStopCompletion(context.Background(), rows[0].ID, StopProof{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestRecordPickupSignaturesSingleSender(t *testing.T) {
	order := multiStopOrder(2)
	env := newTestEnv(t, order)
	if _, err := env.svc.CreateGroupForOrder(context.Background(), order.ID); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	groupID := GroupIDForOrder(order.ID)

	err := env.svc.RecordPickupSignatures(context.Background(), PickupSignaturesInput{
		GroupID: groupID,
		Sender:  testSig("versand"),
		Carrier: testSig("fahrer"),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}

	group, _ := env.repo.ListByGroup(context.Background(), groupID)
	for _, row := range group {
		if row.SharedSenderSignature == nil || row.SharedSenderSignature.SignerName != "versand" {
			t.Fatalf("stop %d missing shared sender signature", row.StopIndex)
		}
		if row.SharedCarrierSignature == nil || row.SharedCarrierSignature.SignerName != "fahrer" {
			t.Fatalf("stop %d missing shared carrier signature", row.StopIndex)
		}
		if row.ConsigneeSignature != nil || row.SharedConsigneeSignature != nil {
			t.Fatalf("stop %d consignee signature must remain empty", row.StopIndex)
		}
	}
	if len(env.lifecycle.calls) != 1 || env.lifecycle.calls[0].target != enums.OrderStatusPickedUp {
		t.Fatalf("expected picked_up transition got %+v", env.lifecycle.calls)
	}
}

func TestRecordPickupSignaturesMultiSenderStaysStopSpecific(t *testing.T) {
	order := multiStopOrder(1)
	order.Stops = append(order.Stops, models.OrderStop{
		Kind:        enums.StopKindPickup,
		Position:    0,
		Address:     types.Address{Line1: "Werk Süd 2", City: "München", Country: "DE"},
		ContactName: "Versand Süd",
	})
	env := newTestEnv(t, order)
	if _, err := env.svc.CreateGroupForOrder(context.Background(), order.ID); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	groupID := GroupIDForOrder(order.ID)

	err := env.svc.RecordPickupSignatures(context.Background(), PickupSignaturesInput{
		GroupID:         groupID,
		Sender:          testSig("versand-sued"),
		Carrier:         testSig("fahrer"),
		SenderStopIndex: 1,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}

	group, _ := env.repo.ListByGroup(context.Background(), groupID)
	for _, row := range group {
		if row.SharedSenderSignature != nil {
			t.Fatalf("stop %d sender signature must stay stop-specific", row.StopIndex)
		}
		if row.SharedCarrierSignature == nil {
			t.Fatalf("stop %d missing shared carrier signature", row.StopIndex)
		}
	}
	if group[1].SenderSignature == nil || group[1].SenderSignature.SignerName != "versand-sued" {
		t.Fatal("selected stop missing its sender signature")
	}
	if group[0].SenderSignature != nil {
		t.Fatal("unselected stop must not carry the sender signature")
	}
}

// convergingOrder routes several pickups to one receiving address:
// separate consignments, one dock. Each extra delivery stop reuses
// the primary delivery address so the consignee side stays single.
func convergingOrder(extraLegs int) *models.Order {
	order := multiStopOrder(0)
	for i := 0; i < extraLegs; i++ {
		order.Stops = append(order.Stops,
			models.OrderStop{
				Kind:        enums.StopKindPickup,
				Position:    i,
				Address:     types.Address{Line1: fmt.Sprintf("Werk %d", i+1), City: fmt.Sprintf("Ort%d", i+1), Country: "DE"},
				ContactName: fmt.Sprintf("Versand %d", i+1),
			},
			models.OrderStop{
				Kind:        enums.StopKindDelivery,
				Position:    i,
				Address:     order.DeliveryAddress,
				ContactName: order.DeliveryContactName,
			},
		)
	}
	return order
}

func TestRecordStopCompletionSharedConsignee(t *testing.T) {
	order := convergingOrder(2)
	env := newTestEnv(t, order)
	rows, err := env.svc.CreateGroupForOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 notes got %d", len(rows))
	}

	// One receiver signs once for all converging consignments; the
	// signature covers the sibling stops and closes the group.
	next, err := env.svc.RecordStopCompletion(context.Background(), rows[1].ID, StopProof{Signature: testSig("empfang-dock")})
	if err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	if next != nil {
		t.Fatalf("expected completion signal got next stop %d", next.StopIndex)
	}

	group, _ := env.repo.ListByGroup(context.Background(), GroupIDForOrder(order.ID))
	for _, row := range group {
		if !row.StopComplete() {
			t.Fatalf("stop %d incomplete after shared signature", row.StopIndex)
		}
	}
	for _, idx := range []int{0, 2} {
		sig := group[idx].SharedConsigneeSignature
		if sig == nil || sig.SignerName != "empfang-dock" {
			t.Fatalf("stop %d missing cached shared consignee signature", idx)
		}
	}
	if group[1].ConsigneeSignature == nil {
		t.Fatal("signed stop lost its own consignee signature")
	}

	if len(env.lifecycle.calls) != 1 || env.lifecycle.calls[0].target != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered transition got %+v", env.lifecycle.calls)
	}
	last := env.pub.events[len(env.pub.events)-1]
	if last.EventType != enums.EventCMRGroupCompleted {
		t.Fatalf("expected group completed event got %s", last.EventType)
	}
}

func TestRecordStopCompletionDistinctConsigneesStaySeparate(t *testing.T) {
	order := multiStopOrder(1)
	env := newTestEnv(t, order)
	rows, err := env.svc.CreateGroupForOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	next, err := env.svc.RecordStopCompletion(context.Background(), rows[0].ID, StopProof{Signature: testSig("empfang-1")})
	if err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	if next == nil {
		t.Fatal("one signature must not close a group of distinct receivers")
	}

	group, _ := env.repo.ListByGroup(context.Background(), GroupIDForOrder(order.ID))
	for _, row := range group {
		if row.SharedConsigneeSignature != nil {
			t.Fatalf("stop %d must not inherit another receiver's signature", row.StopIndex)
		}
	}
	if len(env.lifecycle.calls) != 0 {
		t.Fatal("order must not transition before group completion")
	}
}
