// Package handler содержит HTTP-обработчики API сервиса фотостудии.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/photostudio-system/internal/middleware"
	"github.com/mmeshcher/photostudio-system/internal/model"
	"github.com/mmeshcher/photostudio-system/internal/repository"
	"github.com/mmeshcher/photostudio-system/internal/service"
	"github.com/mmeshcher/photostudio-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterProfile(ctx context.Context, email, password, firstName, lastName, phone string) (*model.Profile, error)
	Authenticate(ctx context.Context, email, password string) (*model.Profile, error)
	GetProfile(ctx context.Context, email string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, email, firstName, lastName, phone string) (*model.Profile, error)

	UploadSubmissions(ctx context.Context, owner, serviceType, comment string, price int64, files []service.UploadFile) ([]model.Submission, error)
	ListActiveOrders(ctx context.Context, owner string, page, pageSize int) ([]model.Submission, int, int, int, error)
	GetSubmission(ctx context.Context, id int64) (*model.Submission, error)
	ListAllOrders(ctx context.Context) ([]model.Submission, error)
	ListArchive(ctx context.Context) ([]model.Submission, error)
	ListReviewQueue(ctx context.Context) ([]model.Submission, error)
	SetStatus(ctx context.Context, id int64, newStatus string) error
	MarkReviewed(ctx context.Context, id int64) error
	AttachProcessedOutput(ctx context.Context, id int64, data []byte, staff string) error
	DeliverToUser(ctx context.Context, id int64, data []byte, staff string) error
	Stats(ctx context.Context) (*model.Stats, error)

	CreateSubscription(ctx context.Context, sub *model.Subscription) error
	GetSubscription(ctx context.Context, id int64) (*model.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
	ListSubscriptionsByUser(ctx context.Context, email string) ([]model.Subscription, error)
	GetCurrentSubscription(ctx context.Context, email string) (*model.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *model.Subscription) error
	CancelSubscription(ctx context.Context, id int64) error
	DeleteSubscription(ctx context.Context, id int64) error
}

// Handler реализует HTTP-обработчики API сервиса фотостудии.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type validationErrorResponse struct {
	Title  string            `json:"title"`
	Errors validation.Errors `json:"errors"`
}

func (h *Handler) writeValidationErrors(w http.ResponseWriter, errs validation.Errors) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	if err := json.NewEncoder(w).Encode(validationErrorResponse{
		Title:  "Validation Failed",
		Errors: errs,
	}); err != nil {
		h.logger.Error("write validation errors", zap.Error(err))
	}
}

type profileRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
}

type profileResponse struct {
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	PhoneNumber  string `json:"phoneNumber"`
	Role         string `json:"role"`
	RegisteredAt string `json:"registeredAt"`
}

func newProfileResponse(p *model.Profile) profileResponse {
	return profileResponse{
		Email:        p.Email,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		PhoneNumber:  p.PhoneNumber,
		Role:         p.Role,
		RegisteredAt: p.RegisteredAt.Format(time.RFC3339),
	}
}

// Register обрабатывает регистрацию нового пользователя и устанавливает cookie.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if errs := validation.ValidateCreateProfile(req.Email, req.Password, req.FirstName, req.LastName, req.PhoneNumber); !errs.Empty() {
		h.writeValidationErrors(w, errs)
		return
	}

	p, err := h.service.RegisterProfile(r.Context(), req.Email, req.Password, req.FirstName, req.LastName, req.PhoneNumber)
	if err != nil {
		if errors.Is(err, repository.ErrProfileExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register profile error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := h.authMiddleware.SetAuthCookie(w, p.Email, p.Role); err != nil {
		h.logger.Error("set auth cookie error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := h.authMiddleware.SetAuthCookie(w, p.Email, p.Role); err != nil {
		h.logger.Error("set auth cookie error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// CreateProfile создаёт новую учётную запись.
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if errs := validation.ValidateCreateProfile(req.Email, req.Password, req.FirstName, req.LastName, req.PhoneNumber); !errs.Empty() {
		h.writeValidationErrors(w, errs)
		return
	}

	p, err := h.service.RegisterProfile(r.Context(), req.Email, req.Password, req.FirstName, req.LastName, req.PhoneNumber)
	if err != nil {
		if errors.Is(err, repository.ErrProfileExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("create profile error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(newProfileResponse(p)); err != nil {
		h.logger.Error("encode profile error", zap.Error(err))
	}
}

// GetProfile возвращает учётную запись по email из пути запроса.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	p, err := h.service.GetProfile(r.Context(), email)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get profile error", zap.Error(err), zap.String("email", email))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newProfileResponse(p)); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type updateProfileRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
}

// UpdateProfile обновляет контактные данные учётной записи.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if errs := validation.ValidateUpdateProfile(req.FirstName, req.LastName, req.PhoneNumber); !errs.Empty() {
		h.writeValidationErrors(w, errs)
		return
	}

	p, err := h.service.UpdateProfile(r.Context(), email, req.FirstName, req.LastName, req.PhoneNumber)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("update profile error", zap.Error(err), zap.String("email", email))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newProfileResponse(p)); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type submissionResponse struct {
	ID            int64  `json:"id"`
	FileName      string `json:"fileName"`
	UserEmail     string `json:"userEmail"`
	ServiceType   string `json:"serviceType"`
	Comment       string `json:"comment"`
	Price         int64  `json:"price"`
	UploadedAt    string `json:"uploadedAt"`
	Status        string `json:"status"`
	IsReviewed    bool   `json:"isReviewed"`
	IsDelivered   bool   `json:"isDelivered"`
	ProcessedBy   string `json:"processedBy,omitempty"`
	OrderNumber   int    `json:"orderNumber"`
	GlobalOrderID int64  `json:"globalOrderId"`
}

func newSubmissionResponse(s model.Submission) submissionResponse {
	return submissionResponse{
		ID:            s.ID,
		FileName:      s.FileName,
		UserEmail:     s.UserEmail,
		ServiceType:   s.ServiceType,
		Comment:       s.Comment,
		Price:         s.Price,
		UploadedAt:    s.UploadedAt.Format(time.RFC3339),
		Status:        string(s.Status),
		IsReviewed:    s.IsReviewed,
		IsDelivered:   s.IsDelivered,
		ProcessedBy:   s.ProcessedBy,
		OrderNumber:   s.OrderNumber,
		GlobalOrderID: s.GlobalOrderID,
	}
}

func newSubmissionListResponse(subs []model.Submission) []submissionResponse {
	resp := make([]submissionResponse, 0, len(subs))
	for _, s := range subs {
		resp = append(resp, newSubmissionResponse(s))
	}
	return resp
}

// GetActiveOrders возвращает страницу недоставленных заявок пользователя.
// Параметры page и pageSize берутся из строки запроса, итоговые значения
// страницы возвращаются в заголовках ответа.
func (h *Handler) GetActiveOrders(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	items, total, page, pageSize, err := h.service.ListActiveOrders(r.Context(), email, page, pageSize)
	if err != nil {
		h.logger.Error("list active orders error", zap.Error(err), zap.String("email", email))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	w.Header().Set("X-Current-Page", strconv.Itoa(page))
	w.Header().Set("X-Page-Size", strconv.Itoa(pageSize))
	if err := json.NewEncoder(w).Encode(newSubmissionListResponse(items)); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

const maxUploadSize = 32 << 20

// UploadPhotos принимает пакет фотографий с параметрами услуги и создаёт
// заявку на каждый файл.
func (h *Handler) UploadPhotos(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	serviceType := r.FormValue("serviceType")
	comment := r.FormValue("comment")

	var price int64
	if v := r.FormValue("price"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid price", http.StatusBadRequest)
			return
		}
		price = parsed
	}

	var files []service.UploadFile
	for _, fh := range r.MultipartForm.File["photoFile"] {
		f, err := fh.Open()
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		files = append(files, service.UploadFile{Name: fh.Filename, Data: data})
	}

	subs, err := h.service.UploadSubmissions(r.Context(), email, serviceType, comment, price, files)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyFile):
			http.Error(w, "photo file is required", http.StatusBadRequest)
		case errors.Is(err, service.ErrNegativePrice):
			http.Error(w, "price must be non-negative", http.StatusBadRequest)
		default:
			h.logger.Error("upload photos error", zap.Error(err), zap.String("email", email))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(newSubmissionListResponse(subs)); err != nil {
		h.logger.Error("encode submissions error", zap.Error(err))
	}
}

func submissionIDFromQuery(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		raw = r.FormValue("id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid submission id %q", raw)
	}
	return id, nil
}
