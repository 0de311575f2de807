package handler

import (
	"context"
	"errors"
	"net/http"

	"rentcore/internal/reservations/service"
	"rentcore/internal/reservations/validator"
	apperrors "rentcore/pkg/errors"
	httputil "rentcore/pkg/http"
	"rentcore/pkg/interval"
	"rentcore/pkg/logger"
	"rentcore/pkg/model"
	"rentcore/pkg/validation"

	"github.com/julienschmidt/httprouter"
)

type ReservationHandler struct {
	service   service.ReservationService
	validator *validator.ReservationValidator
	log       *logger.Logger
}

func NewReservationHandler(service service.ReservationService, validator *validator.ReservationValidator, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service:   service,
		validator: validator,
		log:       log,
	}
}

type partnerUserRequest struct {
	PartnerUserID string `json:"partner_user_id"`
}

type rebuildResponse struct {
	ResourceID string `json:"resource_id"`
	Blocks     int    `json:"blocks"`
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.CreateReservationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	reservation, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}
	h.writeSuccess(w, "GetByID", reservation)
}

func (h *ReservationHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	query := r.URL.Query()
	filter := model.ReservationFilter{
		ResourceID:  query.Get("resource_id"),
		RequesterID: query.Get("requester_id"),
	}
	if raw := query.Get("status"); raw != "" {
		status, err := model.ParseReservationStatus(raw)
		if err != nil {
			h.writeError(w, "GetAll", apperrors.InvalidInput(err.Error()))
			return
		}
		filter.Status = status
	}

	reservations, total, err := h.service.List(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, reservations, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReservationHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.partnerAction(w, r, ps, "Confirm", h.service.Confirm)
}

func (h *ReservationHandler) Reject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.partnerAction(w, r, ps, "Reject", h.service.Reject)
}

func (h *ReservationHandler) Issue(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.partnerAction(w, r, ps, "Issue", h.service.Issue)
}

func (h *ReservationHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.partnerAction(w, r, ps, "Complete", h.service.Complete)
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.CancelRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}
	if err := h.validator.ValidateCancel(&req); err != nil {
		h.writeError(w, "Cancel", validationError(err))
		return
	}

	reservation, err := h.service.Cancel(r.Context(), ps.ByName("id"), req.RequesterID)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}
	h.writeSuccess(w, "Cancel", reservation)
}

func (h *ReservationHandler) Availability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	from, err := httputil.ParseTimeParam(r, "from")
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}
	to, err := httputil.ParseTimeParam(r, "to")
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}
	if from.IsZero() || to.IsZero() {
		h.writeError(w, "Availability", apperrors.InvalidInput("Both 'from' and 'to' query parameters are required"))
		return
	}

	availability, err := h.service.Availability(r.Context(), ps.ByName("id"), interval.New(from, to), r.URL.Query().Get("exclude"))
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}
	h.writeSuccess(w, "Availability", availability)
}

func (h *ReservationHandler) Blocks(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	blocks, err := h.service.Blocks(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Blocks", err)
		return
	}
	h.writeSuccess(w, "Blocks", blocks)
}

func (h *ReservationHandler) AddBlock(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.ManualBlockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "AddBlock", err)
		return
	}

	block, err := h.service.AddBlock(r.Context(), ps.ByName("id"), &req)
	if err != nil {
		h.writeError(w, "AddBlock", err)
		return
	}

	if err := httputil.WriteCreated(w, block); err != nil {
		h.log.Error("failed to write created response", "handler", "AddBlock", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) RemoveBlock(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	partnerUserID := r.URL.Query().Get("partner_user_id")
	if partnerUserID == "" {
		h.writeError(w, "RemoveBlock", apperrors.InvalidInput("partner_user_id query parameter is required"))
		return
	}

	if err := h.service.RemoveBlock(r.Context(), ps.ByName("id"), ps.ByName("blockId"), partnerUserID); err != nil {
		h.writeError(w, "RemoveBlock", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *ReservationHandler) RebuildLedger(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req partnerUserRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "RebuildLedger", err)
		return
	}

	resourceID := ps.ByName("id")
	n, err := h.service.RebuildLedger(r.Context(), resourceID, req.PartnerUserID)
	if err != nil {
		h.writeError(w, "RebuildLedger", err)
		return
	}
	h.writeSuccess(w, "RebuildLedger", rebuildResponse{ResourceID: resourceID, Blocks: n})
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations", h.Create)
	router.GET("/api/v1/reservations", h.GetAll)
	router.GET("/api/v1/reservations/id/:id", h.GetByID)
	router.POST("/api/v1/reservations/id/:id/confirm", h.Confirm)
	router.POST("/api/v1/reservations/id/:id/reject", h.Reject)
	router.POST("/api/v1/reservations/id/:id/cancel", h.Cancel)
	router.POST("/api/v1/reservations/id/:id/issue", h.Issue)
	router.POST("/api/v1/reservations/id/:id/complete", h.Complete)

	router.GET("/api/v1/resources/:id/availability", h.Availability)
	router.GET("/api/v1/resources/:id/blocks", h.Blocks)
	router.POST("/api/v1/resources/:id/blocks", h.AddBlock)
	router.DELETE("/api/v1/resources/:id/blocks/:blockId", h.RemoveBlock)
	router.POST("/api/v1/resources/:id/ledger/rebuild", h.RebuildLedger)
}

type partnerActionFunc func(ctx context.Context, id, confirmerID string) (*model.Reservation, error)

func (h *ReservationHandler) partnerAction(w http.ResponseWriter, r *http.Request, ps httprouter.Params, name string, action partnerActionFunc) {
	var req model.PartnerActionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, name, err)
		return
	}
	if err := h.validator.ValidatePartnerAction(&req); err != nil {
		h.writeError(w, name, validationError(err))
		return
	}

	reservation, err := action(r.Context(), ps.ByName("id"), req.ConfirmerID)
	if err != nil {
		h.writeError(w, name, err)
		return
	}
	h.writeSuccess(w, name, reservation)
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, name string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ReservationHandler) writeSuccess(w http.ResponseWriter, name string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", name, "operation", "WriteSuccess", "error", err)
	}
}

func validationError(err error) error {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Request validation failed", verrs.Details())
	}
	return apperrors.InvalidInput(err.Error())
}
