package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/freightlinkhq/freightlink-backend/internal/notifications"
	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
)

type stubNotificationsService struct {
	result  *notifications.ListResult
	updated int64
	unread  int64
	err     error

	listParams *notifications.ListParams
	markedBy   uuid.UUID
	markedID   uuid.UUID
}

func (s *stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	s.listParams = &params
	return s.result, s.err
}

func (s *stubNotificationsService) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	s.markedBy = recipientID
	s.markedID = notificationID
	return s.err
}

func (s *stubNotificationsService) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	s.markedBy = recipientID
	return s.updated, s.err
}

func (s *stubNotificationsService) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	s.markedBy = recipientID
	return s.unread, s.err
}

func TestListNotificationsScopesToActor(t *testing.T) {
	userID := uuid.New()
	svc := &stubNotificationsService{result: &notifications.ListResult{
		Items:  []models.Notification{{ID: uuid.New(), RecipientID: userID, Title: "Bid accepted"}},
		Cursor: "after",
	}}
	handler := ListNotifications(svc, testLogger())

	req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/v1/notifications/?limit=10&unreadOnly=true", nil), userID, enums.UserRoleCustomer)
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.listParams == nil {
		t.Fatal("expected list params")
	}
	if svc.listParams.RecipientID != userID {
		t.Fatalf("expected recipient %s got %s", userID, svc.listParams.RecipientID)
	}
	if svc.listParams.Limit != 10 || !svc.listParams.UnreadOnly {
		t.Fatalf("unexpected params %+v", svc.listParams)
	}

	var envelope struct {
		Data notifications.ListResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Items) != 1 || envelope.Data.Cursor != "after" {
		t.Fatalf("unexpected page %+v", envelope.Data)
	}
}

func TestListNotificationsRejectsBadLimit(t *testing.T) {
	handler := ListNotifications(&stubNotificationsService{}, testLogger())

	req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/v1/notifications/?limit=lots", nil), uuid.New(), enums.UserRoleCustomer)
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestMarkNotificationReadScopesToActor(t *testing.T) {
	userID := uuid.New()
	notificationID := uuid.New()
	svc := &stubNotificationsService{}
	handler := MarkNotificationRead(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/"+notificationID.String()+"/read", nil)
	req = authedRequest(req, userID, enums.UserRoleContractor)
	req = withPathParam(req, "notificationId", notificationID.String())
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.markedBy != userID || svc.markedID != notificationID {
		t.Fatalf("expected mark scoped to actor, got recipient=%s id=%s", svc.markedBy, svc.markedID)
	}
}

func TestMarkAllNotificationsReadReportsCount(t *testing.T) {
	svc := &stubNotificationsService{updated: 4}
	handler := MarkAllNotificationsRead(svc, testLogger())

	req := authedRequest(httptest.NewRequest(http.MethodPost, "/api/v1/notifications/read-all", nil), uuid.New(), enums.UserRoleCustomer)
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["updated"] != 4 {
		t.Fatalf("expected 4 updated got %d", envelope.Data["updated"])
	}
}

func TestUnreadNotificationsCount(t *testing.T) {
	svc := &stubNotificationsService{unread: 7}
	handler := UnreadNotificationsCount(svc, testLogger())

	req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/v1/notifications/unread-count", nil), uuid.New(), enums.UserRoleContractor)
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["unread"] != 7 {
		t.Fatalf("expected 7 unread got %d", envelope.Data["unread"])
	}
}
