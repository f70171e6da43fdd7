// Package api exposes the order and staff services over HTTP. The session
// identity comes from trusted gateway headers; this service never reads
// tenant or user identity from request bodies.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"tenantcore-backend/internal/domain/orders"
	"tenantcore-backend/internal/domain/staff"
	apperrors "tenantcore-backend/internal/errors"
	"tenantcore-backend/internal/repository"
	"tenantcore-backend/internal/store"
)

// Identity headers set by the gateway after authentication.
const (
	HeaderUserID   = "X-User-Id"
	HeaderTenantID = "X-Tenant-Id"
	HeaderIsAdmin  = "X-Is-Admin"
)

// Handler serves the order and staff routes.
type Handler struct {
	orders          *orders.Service
	staff           *staff.Service
	editLockMinutes int
	defaultPageSize int
	logger          *zap.Logger
}

// NewHandler builds the HTTP handler set.
func NewHandler(orderService *orders.Service, staffService *staff.Service, editLockMinutes, defaultPageSize int, logger *zap.Logger) *Handler {
	return &Handler{
		orders:          orderService,
		staff:           staffService,
		editLockMinutes: editLockMinutes,
		defaultPageSize: defaultPageSize,
		logger:          logger,
	}
}

// Mount attaches all routes under the given router.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/code/{code}", h.findOrderByCode)
		r.Get("/{id}", h.getOrder)
		r.Patch("/{id}/status", h.updateOrderStatus)
		r.Delete("/{id}", h.deleteOrder)
	})
	r.Get("/customers/{customerID}/orders", h.listCustomerOrders)

	r.Route("/staff", func(r chi.Router) {
		r.Post("/", h.createStaff)
		r.Get("/", h.listStaff)
		r.Get("/{id}", h.getStaff)
		r.Patch("/{id}", h.updateStaff)
		r.Post("/{id}/deactivate", h.deactivateStaff)
		r.Delete("/{id}", h.deleteStaff)
	})
}

func (h *Handler) session(r *http.Request) *repository.SessionUser {
	tenantID := r.Header.Get(HeaderTenantID)
	if tenantID == "" {
		return nil
	}
	return &repository.SessionUser{
		UserID:              r.Header.Get(HeaderUserID),
		TenantID:            tenantID,
		IsAdmin:             r.Header.Get(HeaderIsAdmin) == "true",
		DataEditLockMinutes: h.editLockMinutes,
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session == nil {
		h.writeError(w, apperrors.Validation("MISSING_TENANT", "tenant header is required"))
		return
	}
	var body store.Record
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, apperrors.Validation("BAD_BODY", "request body is not valid JSON"))
		return
	}
	created, err := h.orders.Create(r.Context(), body, session)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session == nil {
		h.writeError(w, apperrors.Validation("MISSING_TENANT", "tenant header is required"))
		return
	}
	rec, err := h.orders.GetByID(r.Context(), chi.URLParam(r, "id"), session.TenantID, fieldsParam(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if rec == nil {
		h.writeNotFound(w)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) findOrderByCode(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session == nil {
		h.writeError(w, apperrors.Validation("MISSING_TENANT", "tenant header is required"))
		return
	}
	rec, err := h.orders.FindByOrderCode(r.Context(), session.TenantID, chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if rec == nil {
		h.writeNotFound(w)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) listCustomerOrders(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session == nil {
		h.writeError(w, apperrors.Validation("MISSING_TENANT", "tenant header is required"))
		return
	}
	customerID := chi.URLParam(r, "customerID")
	limit := h.limitParam(r)
	if r.URL.Query().Has("cursor") {
		page, err := h.orders.PageForCustomer(r.Context(), session.TenantID, customerID, limit, r.URL.Query().Get("cursor"))
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]any{
			"items":        page.Items,
			"nextPageHash": page.NextPageHash,
		})
		return
	}
	records, err := h.orders.ListForCustomer(r.Context(), session.TenantID, customerID, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"items": records})
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session == nil {
		h.writeError(w, apperrors.Validation("MISSING_TENANT", "tenant header is required"))
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, apperrors.Validation("BAD_BODY", "request body is not valid JSON"))
		return
	}
	updated, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), body.Status, session)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if updated == nil {
		h.writeNotFound(w)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session == nil {
		h.writeError(w, apperrors.Validation("MISSING_TENANT", "tenant header is required"))
		return
	}
	if err := h.orders.Delete(r.Context(), chi.URLParam(r, "id"), session); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createStaff(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session == nil {
		h.writeError(w, apperrors.Validation("MISSING_TENANT", "tenant header is required"))
		return
	}
	var body store.Record
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, apperrors.Validation("BAD_BODY", "request body is not valid JSON"))
		return
	}
	created, err := h.staff.Create(r.Context(), body, session)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listStaff(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session == nil {
		h.writeError(w, apperrors.Validation("MISSING_TENANT", "tenant header is required"))
		return
	}
	if email := r.URL.Query().Get("email"); email != "" {
		rec, err := h.staff.FindByEmail(r.Context(), session.TenantID, email)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if rec == nil {
			h.writeNotFound(w)
			return
		}
		h.writeJSON(w, http.StatusOK, rec)
		return
	}
	limit := h.limitParam(r)
	if r.URL.Query().Has("cursor") {
		page, err := h.staff.Page(r.Context(), session.TenantID, limit, r.URL.Query().Get("cursor"))
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]any{
			"items":        page.Items,
			"nextPageHash": page.NextPageHash,
		})
		return
	}
	records, err := h.staff.List(r.Context(), session.TenantID, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"items": records})
}

func (h *Handler) getStaff(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session == nil {
		h.writeError(w, apperrors.Validation("MISSING_TENANT", "tenant header is required"))
		return
	}
	rec, err := h.staff.GetByID(r.Context(), chi.URLParam(r, "id"), session.TenantID, fieldsParam(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if rec == nil {
		h.writeNotFound(w)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) updateStaff(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session == nil {
		h.writeError(w, apperrors.Validation("MISSING_TENANT", "tenant header is required"))
		return
	}
	var body store.Record
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, apperrors.Validation("BAD_BODY", "request body is not valid JSON"))
		return
	}
	updated, err := h.staff.Update(r.Context(), chi.URLParam(r, "id"), body, session)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if updated == nil {
		h.writeNotFound(w)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deactivateStaff(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session == nil {
		h.writeError(w, apperrors.Validation("MISSING_TENANT", "tenant header is required"))
		return
	}
	updated, err := h.staff.Deactivate(r.Context(), chi.URLParam(r, "id"), session)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if updated == nil {
		h.writeNotFound(w)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteStaff(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session == nil {
		h.writeError(w, apperrors.Validation("MISSING_TENANT", "tenant header is required"))
		return
	}
	if err := h.staff.Delete(r.Context(), chi.URLParam(r, "id"), session); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) limitParam(r *http.Request) int32 {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 32); err == nil && n > 0 {
			return int32(n)
		}
	}
	return int32(h.defaultPageSize)
}

func fieldsParam(r *http.Request) []string {
	fields := r.URL.Query()["field"]
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("encode response", zap.Error(err))
	}
}

func (h *Handler) writeNotFound(w http.ResponseWriter) {
	h.writeJSON(w, http.StatusNotFound, map[string]any{
		"error": map[string]any{"code": "NOT_FOUND", "message": "resource not found"},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	status := http.StatusInternalServerError
	code := "INTERNAL"
	message := "internal error"
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case apperrors.ErrorTypeValidation:
			status = http.StatusBadRequest
		case apperrors.ErrorTypeConflict:
			status = http.StatusConflict
		default:
			status = http.StatusInternalServerError
		}
		code = appErr.Code
		message = appErr.Message
	} else {
		h.logger.Error("unclassified error", zap.Error(err))
	}
	h.writeJSON(w, status, map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
}
