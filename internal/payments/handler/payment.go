package handler

import (
	"net/http"

	"rentcore/internal/payments/service"
	apperrors "rentcore/pkg/errors"
	httputil "rentcore/pkg/http"
	"rentcore/pkg/logger"
	"rentcore/pkg/middleware"
	"rentcore/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type PaymentHandler struct {
	service service.PaymentService
	// eventsSecret guards the events endpoint when set.
	eventsSecret string
	log          *logger.Logger
}

func NewPaymentHandler(service service.PaymentService, eventsSecret string, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:      service,
		eventsSecret: eventsSecret,
		log:          log,
	}
}

func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.InitiatePaymentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Initiate", err)
		return
	}

	record, err := h.service.Initiate(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Initiate", err)
		return
	}

	if err := httputil.WriteCreated(w, record); err != nil {
		h.log.Error("failed to write created response", "handler", "Initiate", "operation", "WriteCreated", "error", err)
	}
}

func (h *PaymentHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	record, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}
	h.writeSuccess(w, "GetByID", record)
}

func (h *PaymentHandler) ListForReservation(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	reservationID := r.URL.Query().Get("reservation_id")
	if reservationID == "" {
		h.writeError(w, "ListForReservation", apperrors.InvalidInput("reservation_id is required"))
		return
	}

	records, err := h.service.ListForReservation(r.Context(), reservationID)
	if err != nil {
		h.writeError(w, "ListForReservation", err)
		return
	}
	h.writeSuccess(w, "ListForReservation", records)
}

// Events accepts a normalized provider callback. Replays answer 200 with
// replayed=true so providers stop retrying.
func (h *PaymentHandler) Events(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var event model.PaymentEvent
	if err := httputil.DecodeJSON(r, &event); err != nil {
		h.writeError(w, "Events", err)
		return
	}

	result, err := h.service.Apply(r.Context(), &event)
	if err != nil {
		h.log.Warn("payment event rejected",
			"mapping_key", event.MappingKey,
			"outcome", event.Outcome,
			"request_id", middleware.RequestID(r.Context()),
			"error", err,
		)
		h.writeError(w, "Events", err)
		return
	}

	h.log.Info("payment event applied",
		"payment_id", result.PaymentID,
		"reservation_id", result.ReservationID,
		"status", result.Status,
		"replayed", result.Replayed,
	)
	h.writeSuccess(w, "Events", result)
}

func (h *PaymentHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/payments", h.Initiate)
	router.GET("/api/v1/payments", h.ListForReservation)
	router.GET("/api/v1/payments/id/:id", h.GetByID)

	if h.eventsSecret == "" {
		router.POST("/api/v1/payments/events", h.Events)
		return
	}
	signed := middleware.PaymentEventSignature(h.eventsSecret, h.log)(eventsAdapter(h.Events))
	router.Handler(http.MethodPost, "/api/v1/payments/events", signed)
}

func eventsAdapter(handle httprouter.Handle) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handle(w, r, httprouter.ParamsFromContext(r.Context()))
	})
}

func (h *PaymentHandler) writeError(w http.ResponseWriter, name string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
	}
}

func (h *PaymentHandler) writeSuccess(w http.ResponseWriter, name string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", name, "operation", "WriteSuccess", "error", err)
	}
}
