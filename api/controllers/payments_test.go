package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/spewite/score-to-midi-backend/api/middleware"
	"github.com/spewite/score-to-midi-backend/internal/payments"
	"github.com/spewite/score-to-midi-backend/pkg/enums"
	pkgerrors "github.com/spewite/score-to-midi-backend/pkg/errors"
)

type stubPaymentsService struct {
	status       *payments.SessionStatus
	statusErr    error
	activateIn   payments.ActivateInput
	activateOut  *payments.ActivateResult
	activateErr  error
	statusCalls  int
	activateHits int
}

func (s *stubPaymentsService) GetSessionStatus(ctx context.Context, sessionID string) (*payments.SessionStatus, error) {
	s.statusCalls++
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return s.status, nil
}

func (s *stubPaymentsService) Activate(ctx context.Context, input payments.ActivateInput) (*payments.ActivateResult, error) {
	s.activateHits++
	s.activateIn = input
	if s.activateErr != nil {
		return nil, s.activateErr
	}
	return s.activateOut, nil
}

func TestPaymentSessionStatus_ReturnsStatus(t *testing.T) {
	svc := &stubPaymentsService{status: &payments.SessionStatus{
		Type:              enums.CheckoutTypeOnetime,
		Paid:              true,
		PurchaseConfirmed: true,
	}}
	handler := PaymentSessionStatus(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/session-status?session_id=cs_123", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data payments.SessionStatus `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.PurchaseConfirmed {
		t.Fatalf("expected purchase confirmed in response: %s", rec.Body.String())
	}
}

func TestPaymentSessionStatus_RequiresSessionID(t *testing.T) {
	svc := &stubPaymentsService{}
	handler := PaymentSessionStatus(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/session-status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if svc.statusCalls != 0 {
		t.Fatalf("service must not be called without session_id")
	}
}

func TestActivateSubscription_UsesContextUser(t *testing.T) {
	userID := uuid.New()
	svc := &stubPaymentsService{activateOut: &payments.ActivateResult{Activated: true, SubscriptionID: "sub_1"}}
	handler := ActivateSubscription(svc, nil)

	body, _ := json.Marshal(map[string]string{"session_id": "cs_123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/activate", bytes.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.activateIn.UserID != userID {
		t.Fatalf("expected user %s, got %s", userID, svc.activateIn.UserID)
	}
	if svc.activateIn.SessionID != "cs_123" {
		t.Fatalf("expected session cs_123, got %q", svc.activateIn.SessionID)
	}
}

func TestActivateSubscription_RequiresAuth(t *testing.T) {
	svc := &stubPaymentsService{}
	handler := ActivateSubscription(svc, nil)

	body, _ := json.Marshal(map[string]string{"session_id": "cs_123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/activate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if svc.activateHits != 0 {
		t.Fatalf("service must not be called without a user")
	}
}

func TestActivateSubscription_ConflictPassesThrough(t *testing.T) {
	userID := uuid.New()
	svc := &stubPaymentsService{activateErr: pkgerrors.New(pkgerrors.CodeConflict, "user already has an active subscription")}
	handler := ActivateSubscription(svc, nil)

	body, _ := json.Marshal(map[string]string{"session_id": "cs_123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/activate", bytes.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}
