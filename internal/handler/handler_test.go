package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/photostudio-system/internal/middleware"
	"github.com/mmeshcher/photostudio-system/internal/model"
	"github.com/mmeshcher/photostudio-system/internal/repository"
	"github.com/mmeshcher/photostudio-system/internal/service"
)

type stubService struct {
	registerProfile *model.Profile
	registerErr     error

	authProfile *model.Profile
	authErr     error

	profileResp *model.Profile
	profileErr  error

	uploadResp []model.Submission
	uploadErr  error

	activeItems []model.Submission
	activeTotal int
	activeErr   error

	submission    *model.Submission
	submissionErr error

	listResp []model.Submission
	listErr  error

	setStatusErr    error
	markReviewedErr error
	attachErr       error
	deliverErr      error

	statsResp *model.Stats
	statsErr  error

	subscription     *model.Subscription
	subscriptionErr  error
	subscriptionList []model.Subscription
}

func (s *stubService) RegisterProfile(ctx context.Context, email, password, firstName, lastName, phone string) (*model.Profile, error) {
	return s.registerProfile, s.registerErr
}

func (s *stubService) Authenticate(ctx context.Context, email, password string) (*model.Profile, error) {
	return s.authProfile, s.authErr
}

func (s *stubService) GetProfile(ctx context.Context, email string) (*model.Profile, error) {
	return s.profileResp, s.profileErr
}

func (s *stubService) UpdateProfile(ctx context.Context, email, firstName, lastName, phone string) (*model.Profile, error) {
	return s.profileResp, s.profileErr
}

func (s *stubService) UploadSubmissions(ctx context.Context, owner, serviceType, comment string, price int64, files []service.UploadFile) ([]model.Submission, error) {
	return s.uploadResp, s.uploadErr
}

func (s *stubService) ListActiveOrders(ctx context.Context, owner string, page, pageSize int) ([]model.Submission, int, int, int, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 5
	}
	return s.activeItems, s.activeTotal, page, pageSize, s.activeErr
}

func (s *stubService) GetSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	return s.submission, s.submissionErr
}

func (s *stubService) ListAllOrders(ctx context.Context) ([]model.Submission, error) {
	return s.listResp, s.listErr
}

func (s *stubService) ListArchive(ctx context.Context) ([]model.Submission, error) {
	return s.listResp, s.listErr
}

func (s *stubService) ListReviewQueue(ctx context.Context) ([]model.Submission, error) {
	return s.listResp, s.listErr
}

func (s *stubService) SetStatus(ctx context.Context, id int64, newStatus string) error {
	if s.setStatusErr != nil {
		return s.setStatusErr
	}
	if _, err := model.ParseSubmissionStatus(newStatus); err != nil {
		return err
	}
	return nil
}

func (s *stubService) MarkReviewed(ctx context.Context, id int64) error {
	return s.markReviewedErr
}

func (s *stubService) AttachProcessedOutput(ctx context.Context, id int64, data []byte, staff string) error {
	return s.attachErr
}

func (s *stubService) DeliverToUser(ctx context.Context, id int64, data []byte, staff string) error {
	return s.deliverErr
}

func (s *stubService) Stats(ctx context.Context) (*model.Stats, error) {
	return s.statsResp, s.statsErr
}

func (s *stubService) CreateSubscription(ctx context.Context, sub *model.Subscription) error {
	if s.subscriptionErr != nil {
		return s.subscriptionErr
	}
	sub.ID = 1
	sub.IsActive = true
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	return nil
}

func (s *stubService) GetSubscription(ctx context.Context, id int64) (*model.Subscription, error) {
	return s.subscription, s.subscriptionErr
}

func (s *stubService) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	return s.subscriptionList, nil
}

func (s *stubService) ListSubscriptionsByUser(ctx context.Context, email string) ([]model.Subscription, error) {
	return s.subscriptionList, nil
}

func (s *stubService) GetCurrentSubscription(ctx context.Context, email string) (*model.Subscription, error) {
	return s.subscription, s.subscriptionErr
}

func (s *stubService) UpdateSubscription(ctx context.Context, sub *model.Subscription) error {
	return s.subscriptionErr
}

func (s *stubService) CancelSubscription(ctx context.Context, id int64) error {
	return s.subscriptionErr
}

func (s *stubService) DeleteSubscription(ctx context.Context, id int64) error {
	return s.subscriptionErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

func authCookie(t *testing.T, h *Handler, email, role string) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	if err := h.authMiddleware.SetAuthCookie(rec, email, role); err != nil {
		t.Fatalf("set auth cookie: %v", err)
	}
	return rec.Result().Cookies()[0]
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{
		registerProfile: &model.Profile{
			ID:    42,
			Email: "user@example.com",
			Role:  model.RoleUser,
		},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(profileRequest{
		Email:     "user@example.com",
		Password:  "pass123",
		FirstName: "Ivan",
		LastName:  "Petrov",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("register must set auth cookie")
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(profileRequest{
		Email:    "not-an-email",
		Password: "123",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}

	var resp validationErrorResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode validation response: %v", err)
	}
	if resp.Title != "Validation Failed" {
		t.Fatalf("title = %q, want Validation Failed", resp.Title)
	}
	if len(resp.Errors["email"]) == 0 || len(resp.Errors["password"]) == 0 {
		t.Fatalf("expected email and password errors, got %+v", resp.Errors)
	}
}

func TestRegister_Conflict(t *testing.T) {
	svc := &stubService{registerErr: repository.ErrProfileExists}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(profileRequest{
		Email:     "user@example.com",
		Password:  "pass123",
		FirstName: "Ivan",
		LastName:  "Petrov",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestLogin_UnauthorizedOnBadPassword(t *testing.T) {
	svc := &stubService{authErr: service.ErrInvalidCredentials}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{
		Email:    "user@example.com",
		Password: "wrong",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	svc := &stubService{profileErr: repository.ErrProfileNotFound}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/profile/missing@example.com", nil)
	req.AddCookie(authCookie(t, h, "missing@example.com", model.RoleUser))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNotFound)
	}
}

func TestGetProfile_RequiresAuth(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/profile/user@example.com", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestGetActiveOrders_PagingHeaders(t *testing.T) {
	svc := &stubService{
		activeItems: []model.Submission{
			{ID: 2, FileName: "b.jpg", OrderNumber: 2, UploadedAt: time.Now()},
			{ID: 1, FileName: "a.jpg", OrderNumber: 1, UploadedAt: time.Now()},
		},
		activeTotal: 12,
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/profile/user@example.com/active-orders?page=-1&pageSize=0", nil)
	req.AddCookie(authCookie(t, h, "user@example.com", model.RoleUser))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if got := res.Header.Get("X-Total-Count"); got != "12" {
		t.Fatalf("X-Total-Count = %q, want 12", got)
	}
	if got := res.Header.Get("X-Current-Page"); got != "1" {
		t.Fatalf("X-Current-Page = %q, want 1", got)
	}
	if got := res.Header.Get("X-Page-Size"); got != "5" {
		t.Fatalf("X-Page-Size = %q, want 5", got)
	}

	var items []submissionResponse
	if err := json.NewDecoder(res.Body).Decode(&items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 2 || items[0].OrderNumber != 2 {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestUploadPhotos_Created(t *testing.T) {
	svc := &stubService{
		uploadResp: []model.Submission{
			{ID: 1, FileName: "a.jpg", OrderNumber: 1, Status: model.StatusPending, UploadedAt: time.Now()},
		},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("photoFile", "a.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write([]byte("image-bytes"))
	mw.WriteField("serviceType", "retouch")
	mw.WriteField("price", "500")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/profile/user@example.com/orders", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(authCookie(t, h, "user@example.com", model.RoleUser))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusCreated)
	}
}

func TestUploadPhotos_NoFile(t *testing.T) {
	svc := &stubService{uploadErr: service.ErrEmptyFile}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("serviceType", "retouch")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/profile/user@example.com/orders", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(authCookie(t, h, "user@example.com", model.RoleUser))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}
