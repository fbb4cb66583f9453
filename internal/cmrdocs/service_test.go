package cmrdocs

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightlinkhq/freightlink-backend/internal/cmrdocs/layout"
	"github.com/freightlinkhq/freightlink-backend/pkg/config"
	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	pkgerrors "github.com/freightlinkhq/freightlink-backend/pkg/errors"
	"github.com/freightlinkhq/freightlink-backend/pkg/outbox"
	"github.com/freightlinkhq/freightlink-backend/pkg/types"
)

type stubGroups struct {
	rows []models.CMR
}

func (s *stubGroups) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.CMR, error) {
	return s.rows, nil
}

type stubGroupWriter struct {
	updates map[string]any
}

func (s *stubGroupWriter) UpdateGroup(ctx context.Context, groupID uuid.UUID, updates map[string]any) error {
	s.updates = updates
	return nil
}

type stubOrders struct {
	order *models.Order
}

func (s *stubOrders) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

type stubArtifacts struct {
	created []*models.CMRArtifact
}

func (s *stubArtifacts) WithTx(tx *gorm.DB) ArtifactRepository { return s }

func (s *stubArtifacts) Create(ctx context.Context, artifact *models.CMRArtifact) error {
	if artifact.ID == uuid.Nil {
		artifact.ID = uuid.New()
	}
	s.created = append(s.created, artifact)
	return nil
}

func (s *stubArtifacts) LatestByGroup(ctx context.Context, groupID uuid.UUID) (*models.CMRArtifact, error) {
	if len(s.created) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return s.created[len(s.created)-1], nil
}

type memoryStore struct {
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (s *memoryStore) Save(ctx context.Context, key, contentType string, data []byte) error {
	s.objects[key] = data
	return nil
}

func (s *memoryStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

type stubLocker struct {
	held bool
}

func (s *stubLocker) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.held {
		return false, nil
	}
	s.held = true
	return true, nil
}

func (s *stubLocker) Del(ctx context.Context, keys ...string) error {
	s.held = false
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

// failingRenderer fails on one specific stop index.
type failingRenderer struct {
	failOn string
}

func (r failingRenderer) Render(doc layout.Document) ([]byte, error) {
	if r.failOn != "" && bytes.Contains([]byte(doc.Title), []byte(r.failOn)) {
		return nil, fmt.Errorf("glyph table corrupted")
	}
	return layout.NewTextRenderer().Render(doc)
}

func testGroup(orderID uuid.UUID, stops int) []models.CMR {
	groupID := uuid.New()
	rows := make([]models.CMR, stops)
	for i := 0; i < stops; i++ {
		rows[i] = models.CMR{
			ID:               uuid.New(),
			CMRNumber:        fmt.Sprintf("CMR-%07d", i+1),
			OrderID:          orderID,
			GroupID:          groupID,
			StopIndex:        i,
			TotalStops:       stops,
			IsMultiStop:      stops > 1,
			SenderName:       "Versand Nord",
			SenderAddress:    types.Address{Line1: "Industriestr. 4", City: "Hamburg", Country: "DE"},
			ConsigneeName:    fmt.Sprintf("Empfang %d", i+1),
			ConsigneeAddress: types.Address{Line1: fmt.Sprintf("Zielweg %d", i+1), City: fmt.Sprintf("Stadt%d", i+1), Country: "DE"},
			CarrierName:      "Spedition Krause GmbH",
			CarrierAddress:   types.Address{Line1: "Logistikpark 7", City: "Dortmund", Country: "DE"},
			GoodsDescription: "12 pallets machine parts",
		}
	}
	return rows
}

func testOrder() *models.Order {
	return &models.Order{ID: uuid.New(), OrderNumber: 10001}
}

func newTestService(t *testing.T, groups *stubGroups, order *models.Order, artifacts *stubArtifacts, store ArtifactStore, locker Locker, renderer layout.Renderer, pub *stubOutboxPublisher) Service {
	t.Helper()
	svc, err := NewService(groups, &stubGroupWriter{}, &stubOrders{order: order}, artifacts, store, locker, renderer, stubTxRunner{}, pub, config.RenderConfig{Timeout: 5 * time.Second, LockTTL: time.Minute}, nil)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func TestRenderDeterministic(t *testing.T) {
	order := testOrder()
	rows := testGroup(order.ID, 1)
	rows[0].ConsigneeSignature = &types.Signature{
		ImageKey:   "sig/empfang",
		SignerName: "Empfang 1",
		SignedAt:   time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC),
		Location:   &types.Geolocation{Lat: 53.5511, Lng: 9.9937},
	}
	svc := newTestService(t, &stubGroups{rows: rows}, order, &stubArtifacts{}, newMemoryStore(), nil, nil, &stubOutboxPublisher{})

	first, err := svc.Render(rows[0], order)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	second, err := svc.Render(rows[0], order)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("render output differs for identical inputs")
	}
	if len(first) == 0 {
		t.Fatal("render produced no output")
	}
}

func TestMergeGroupConcatenatesAscending(t *testing.T) {
	order := testOrder()
	rows := testGroup(order.ID, 3)
	groups := &stubGroups{rows: rows}
	artifacts := &stubArtifacts{}
	store := newMemoryStore()
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, groups, order, artifacts, store, nil, nil, pub)

	artifact, err := svc.MergeGroup(context.Background(), rows[0].GroupID)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	data, ok := store.objects[artifact.ObjectKey]
	if !ok {
		t.Fatal("artifact bytes not persisted")
	}
	first := bytes.Index(data, []byte("CMR-0000001"))
	second := bytes.Index(data, []byte("CMR-0000002"))
	third := bytes.Index(data, []byte("CMR-0000003"))
	if first < 0 || second < 0 || third < 0 || !(first < second && second < third) {
		t.Fatalf("stops merged out of order: %d %d %d", first, second, third)
	}
	if artifact.SizeBytes != int64(len(data)) {
		t.Fatalf("size mismatch: %d vs %d", artifact.SizeBytes, len(data))
	}
	if len(artifacts.created) != 1 {
		t.Fatalf("expected one artifact row got %d", len(artifacts.created))
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected merged event got %d", len(pub.events))
	}
}

func TestMergeGroupSurfacesFailingStop(t *testing.T) {
	order := testOrder()
	rows := testGroup(order.ID, 3)
	renderer := failingRenderer{failOn: "stop 2 of 3"}
	store := newMemoryStore()
	svc := newTestService(t, &stubGroups{rows: rows}, order, &stubArtifacts{}, store, nil, renderer, &stubOutboxPublisher{})

	_, err := svc.MergeGroup(context.Background(), rows[0].GroupID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeRenderFailed {
		t.Fatalf("unexpected error %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok || details["stop_index"] != 1 {
		t.Fatalf("expected failing stop index 1 got %+v", typed.Details())
	}
	if len(store.objects) != 0 {
		t.Fatal("partial merge must not be persisted")
	}
}

func TestMergeGroupSingleFlight(t *testing.T) {
	order := testOrder()
	rows := testGroup(order.ID, 2)
	artifacts := &stubArtifacts{}
	locker := &stubLocker{}
	svc := newTestService(t, &stubGroups{rows: rows}, order, artifacts, newMemoryStore(), locker, nil, &stubOutboxPublisher{})

	winner, err := svc.MergeGroup(context.Background(), rows[0].GroupID)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	// A concurrent merge holds the lock; the loser gets the winner's
	// artifact instead of a duplicate merge.
	locker.held = true
	loser, err := svc.MergeGroup(context.Background(), rows[0].GroupID)
	if err != nil {
		t.Fatalf("loser should receive winner artifact: %v", err)
	}
	if loser.ID != winner.ID {
		t.Fatalf("loser got a different artifact")
	}
	if len(artifacts.created) != 1 {
		t.Fatalf("duplicate merge persisted: %d artifacts", len(artifacts.created))
	}
}

func TestMergeGroupTimesOut(t *testing.T) {
	order := testOrder()
	rows := testGroup(order.ID, 2)
	svc, err := NewService(&stubGroups{rows: rows}, &stubGroupWriter{}, &stubOrders{order: order}, &stubArtifacts{}, newMemoryStore(), nil, nil, stubTxRunner{}, &stubOutboxPublisher{}, config.RenderConfig{Timeout: time.Nanosecond, LockTTL: time.Minute}, nil)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	time.Sleep(time.Millisecond)

	_, mergeErr := svc.MergeGroup(context.Background(), rows[0].GroupID)
	typed := pkgerrors.As(mergeErr)
	if typed == nil {
		t.Fatalf("expected typed error got %v", mergeErr)
	}
	if typed.Code() != pkgerrors.CodeRenderFailed && typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("unexpected error code %s", typed.Code())
	}
}
