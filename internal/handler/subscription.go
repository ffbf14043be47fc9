package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/photostudio-system/internal/model"
	"github.com/mmeshcher/photostudio-system/internal/repository"
	"github.com/mmeshcher/photostudio-system/internal/validation"
)

type subscriptionRequest struct {
	UserEmail string     `json:"userEmail"`
	PlanName  string     `json:"planName"`
	AutoRenew bool       `json:"autoRenew"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

type subscriptionResponse struct {
	ID        int64  `json:"id"`
	UserEmail string `json:"userEmail"`
	PlanName  string `json:"planName"`
	AutoRenew bool   `json:"autoRenew"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
}

func newSubscriptionResponse(s *model.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:        s.ID,
		UserEmail: s.UserEmail,
		PlanName:  s.PlanName,
		AutoRenew: s.AutoRenew,
		StartDate: s.StartDate.Format(time.RFC3339),
		EndDate:   s.EndDate.Format(time.RFC3339),
		IsActive:  s.IsActive,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
}

func newSubscriptionListResponse(subs []model.Subscription) []subscriptionResponse {
	resp := make([]subscriptionResponse, 0, len(subs))
	for i := range subs {
		resp = append(resp, newSubscriptionResponse(&subs[i]))
	}
	return resp
}

func subscriptionIDFromPath(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// ListSubscriptions возвращает все подписки.
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.ListSubscriptions(r.Context())
	if err != nil {
		h.logger.Error("list subscriptions error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newSubscriptionListResponse(subs)); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// CreateSubscription создаёт новую подписку. Пустые план и даты заполняются
// значениями по умолчанию.
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var start, end time.Time
	if req.StartDate != nil {
		start = *req.StartDate
	}
	if req.EndDate != nil {
		end = *req.EndDate
	}

	if errs := validation.ValidateCreateSubscription(req.UserEmail, req.PlanName, start, end); !errs.Empty() {
		h.writeValidationErrors(w, errs)
		return
	}

	sub := &model.Subscription{
		UserEmail: req.UserEmail,
		PlanName:  req.PlanName,
		AutoRenew: req.AutoRenew,
		StartDate: start,
		EndDate:   end,
	}

	if err := h.service.CreateSubscription(r.Context(), sub); err != nil {
		h.logger.Error("create subscription error", zap.Error(err), zap.String("email", req.UserEmail))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(newSubscriptionResponse(sub)); err != nil {
		h.logger.Error("encode subscription error", zap.Error(err))
	}
}

// GetSubscription возвращает подписку по идентификатору.
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := subscriptionIDFromPath(r)
	if err != nil {
		http.Error(w, "invalid subscription id", http.StatusBadRequest)
		return
	}

	sub, err := h.service.GetSubscription(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get subscription error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newSubscriptionResponse(sub)); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// ListSubscriptionsByUser возвращает подписки пользователя.
func (h *Handler) ListSubscriptionsByUser(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	subs, err := h.service.ListSubscriptionsByUser(r.Context(), email)
	if err != nil {
		h.logger.Error("list user subscriptions error", zap.Error(err), zap.String("email", email))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newSubscriptionListResponse(subs)); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// GetCurrentSubscription возвращает действующую подписку пользователя.
func (h *Handler) GetCurrentSubscription(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	sub, err := h.service.GetCurrentSubscription(r.Context(), email)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get current subscription error", zap.Error(err), zap.String("email", email))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newSubscriptionResponse(sub)); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type updateSubscriptionRequest struct {
	UserEmail string    `json:"userEmail"`
	PlanName  string    `json:"planName"`
	AutoRenew bool      `json:"autoRenew"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	IsActive  bool      `json:"isActive"`
}

// UpdateSubscription перезаписывает поля подписки.
func (h *Handler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := subscriptionIDFromPath(r)
	if err != nil {
		http.Error(w, "invalid subscription id", http.StatusBadRequest)
		return
	}

	var req updateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if errs := validation.ValidateUpdateSubscription(id, req.UserEmail, req.PlanName, req.StartDate, req.EndDate); !errs.Empty() {
		h.writeValidationErrors(w, errs)
		return
	}

	sub := &model.Subscription{
		ID:        id,
		UserEmail: req.UserEmail,
		PlanName:  req.PlanName,
		AutoRenew: req.AutoRenew,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		IsActive:  req.IsActive,
	}

	if err := h.service.UpdateSubscription(r.Context(), sub); err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("update subscription error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CancelSubscription отменяет подписку.
func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := subscriptionIDFromPath(r)
	if err != nil {
		http.Error(w, "invalid subscription id", http.StatusBadRequest)
		return
	}

	if err := h.service.CancelSubscription(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("cancel subscription error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteSubscription удаляет подписку.
func (h *Handler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := subscriptionIDFromPath(r)
	if err != nil {
		http.Error(w, "invalid subscription id", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteSubscription(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("delete subscription error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
