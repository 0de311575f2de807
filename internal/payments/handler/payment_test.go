package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rentcore/internal/payments/service"
	apperrors "rentcore/pkg/errors"
	"rentcore/pkg/logger"
	"rentcore/pkg/middleware"
	"rentcore/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockPaymentService struct {
	service.PaymentService

	initiateFunc func(ctx context.Context, req *model.InitiatePaymentRequest) (*model.PaymentRecord, error)
	applyFunc    func(ctx context.Context, event *model.PaymentEvent) (*model.PaymentResult, error)
	getFunc      func(ctx context.Context, id string) (*model.PaymentRecord, error)
	listFunc     func(ctx context.Context, reservationID string) ([]*model.PaymentRecord, error)
}

func (m *mockPaymentService) Initiate(ctx context.Context, req *model.InitiatePaymentRequest) (*model.PaymentRecord, error) {
	return m.initiateFunc(ctx, req)
}

func (m *mockPaymentService) Apply(ctx context.Context, event *model.PaymentEvent) (*model.PaymentResult, error) {
	return m.applyFunc(ctx, event)
}

func (m *mockPaymentService) GetByID(ctx context.Context, id string) (*model.PaymentRecord, error) {
	return m.getFunc(ctx, id)
}

func (m *mockPaymentService) ListForReservation(ctx context.Context, reservationID string) ([]*model.PaymentRecord, error) {
	return m.listFunc(ctx, reservationID)
}

func newRouter(svc service.PaymentService, secret string) *httprouter.Router {
	router := httprouter.New()
	NewPaymentHandler(svc, secret, logger.Nop()).RegisterRoutes(router)
	return router
}

func serve(router http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPaymentHandler_Initiate(t *testing.T) {
	svc := &mockPaymentService{
		initiateFunc: func(_ context.Context, req *model.InitiatePaymentRequest) (*model.PaymentRecord, error) {
			if req.ReservationID != "r-1" || req.Provider != model.ProviderClick {
				t.Errorf("unexpected request %+v", req)
			}
			return &model.PaymentRecord{ID: "p-1", ReservationID: "r-1", Status: model.PaymentPending, Amount: 20000}, nil
		},
	}

	rec := serve(newRouter(svc, ""), http.MethodPost, "/api/v1/payments", `{"reservation_id":"r-1","provider":"click"}`, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body)
	}
	var body struct {
		Data model.PaymentRecord `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.ID != "p-1" || body.Data.Amount != 20000 {
		t.Errorf("body = %+v", body.Data)
	}
}

func TestPaymentHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown payment", apperrors.AccountNotFound("no payment for key"), http.StatusNotFound},
		{"amount mismatch", apperrors.InvalidAmount("amount mismatch"), http.StatusBadRequest},
		{"not confirmed", apperrors.InvalidState("reservation is pending"), http.StatusConflict},
		{"lock timeout", apperrors.Timeout("busy"), http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPaymentService{
				applyFunc: func(context.Context, *model.PaymentEvent) (*model.PaymentResult, error) {
					return nil, tt.err
				},
			}
			rec := serve(newRouter(svc, ""), http.MethodPost, "/api/v1/payments/events",
				`{"mapping_key":"click-p-1","external_transaction_id":"t-1","amount":100,"currency":"UZS","outcome":"success"}`, nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestPaymentHandler_EventsReplay(t *testing.T) {
	svc := &mockPaymentService{
		applyFunc: func(_ context.Context, event *model.PaymentEvent) (*model.PaymentResult, error) {
			return &model.PaymentResult{PaymentID: "p-1", ReservationID: "r-1", Status: model.PaymentPaid, Replayed: true}, nil
		},
	}

	rec := serve(newRouter(svc, ""), http.MethodPost, "/api/v1/payments/events",
		`{"mapping_key":"p-1","external_transaction_id":"t-1","amount":100,"currency":"UZS","outcome":"success"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"replayed":true`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestPaymentHandler_EventsSignature(t *testing.T) {
	const secret = "hook-secret"
	body := `{"mapping_key":"p-1","external_transaction_id":"t-1","amount":100,"currency":"UZS","outcome":"cancel"}`
	applied := 0
	svc := &mockPaymentService{
		applyFunc: func(_ context.Context, event *model.PaymentEvent) (*model.PaymentResult, error) {
			applied++
			if event.Outcome != model.OutcomeCancel {
				t.Errorf("outcome = %s", event.Outcome)
			}
			return &model.PaymentResult{PaymentID: "p-1", Status: model.PaymentFailed}, nil
		},
	}
	router := newRouter(svc, secret)

	unsigned := serve(router, http.MethodPost, "/api/v1/payments/events", body, nil)
	if unsigned.Code != http.StatusUnauthorized {
		t.Errorf("unsigned status = %d, want 401", unsigned.Code)
	}

	signed := serve(router, http.MethodPost, "/api/v1/payments/events", body, map[string]string{
		middleware.SignatureHeader: middleware.Sign([]byte(body), secret),
	})
	if signed.Code != http.StatusOK {
		t.Errorf("signed status = %d, want 200 (%s)", signed.Code, signed.Body)
	}
	if applied != 1 {
		t.Errorf("applied = %d, want 1", applied)
	}
}

func TestPaymentHandler_List(t *testing.T) {
	svc := &mockPaymentService{
		listFunc: func(_ context.Context, reservationID string) ([]*model.PaymentRecord, error) {
			return []*model.PaymentRecord{{ID: "p-1", ReservationID: reservationID}}, nil
		},
	}
	router := newRouter(svc, "")

	if rec := serve(router, http.MethodGet, "/api/v1/payments", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing reservation_id status = %d, want 400", rec.Code)
	}
	rec := serve(router, http.MethodGet, "/api/v1/payments?reservation_id=r-9", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"reservation_id":"r-9"`) {
		t.Errorf("status = %d body = %s", rec.Code, rec.Body)
	}
}

func TestPaymentHandler_GetByID(t *testing.T) {
	svc := &mockPaymentService{
		getFunc: func(_ context.Context, id string) (*model.PaymentRecord, error) {
			return nil, apperrors.NotFoundWithID("Payment", id)
		},
	}

	rec := serve(newRouter(svc, ""), http.MethodGet, "/api/v1/payments/id/p-404", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
