// Package service реализует бизнес-логику сервиса фотостудии.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/photostudio-system/internal/mailer"
	"github.com/mmeshcher/photostudio-system/internal/model"
)

// ErrInvalidCredentials возвращается при неверной паре email/пароль.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmptyFile возвращается, если загружаемый файл пуст или отсутствует.
	ErrEmptyFile = errors.New("empty file")
	// ErrNegativePrice возвращается при отрицательной цене заявки.
	ErrNegativePrice = errors.New("price must be non-negative")
	// ErrDeliveryFailed возвращается, если письмо с результатом не удалось
	// отправить. Заявка при этом остаётся недоставленной, операцию можно
	// повторить.
	ErrDeliveryFailed = errors.New("delivery failed")
)

const defaultPageSize = 5

const (
	deliverySubject = "Your processed photo is ready"
	deliveryBody    = "<p>Your photo has been processed. Please find it attached.</p>"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateProfile(ctx context.Context, p *model.Profile) error
	GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, email, firstName, lastName, phone string) error

	CreateSubmissions(ctx context.Context, owner string, subs []model.Submission) ([]model.Submission, error)
	GetSubmissionByID(ctx context.Context, id int64) (*model.Submission, error)
	ListActiveSubmissions(ctx context.Context, owner string, limit, offset int) ([]model.Submission, int, error)
	ListSubmissions(ctx context.Context) ([]model.Submission, error)
	ListDeliveredSubmissions(ctx context.Context) ([]model.Submission, error)
	ListUnreviewedSubmissions(ctx context.Context) ([]model.Submission, error)
	SetSubmissionStatus(ctx context.Context, id int64, status model.SubmissionStatus) error
	MarkSubmissionReviewed(ctx context.Context, id int64) error
	AttachProcessedImage(ctx context.Context, id int64, data []byte, processedBy string) error
	MarkSubmissionDelivered(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*model.Stats, error)

	CreateSubscription(ctx context.Context, sub *model.Subscription) error
	GetSubscriptionByID(ctx context.Context, id int64) (*model.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
	ListSubscriptionsByUser(ctx context.Context, email string) ([]model.Subscription, error)
	GetCurrentSubscription(ctx context.Context, email string) (*model.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *model.Subscription) error
	CancelSubscription(ctx context.Context, id int64) error
	DeleteSubscription(ctx context.Context, id int64) error
}

// Mailer описывает контракт отправки почтовых уведомлений.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string, attachments ...mailer.Attachment) error
}

// Service содержит бизнес-логику сервиса фотостудии.
type Service struct {
	repo   Repository
	mailer Mailer
}

// NewService создаёт новый сервис с указанным репозиторием и почтовым клиентом.
func NewService(repo Repository, m Mailer) *Service {
	return &Service{
		repo:   repo,
		mailer: m,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterProfile регистрирует нового пользователя с ролью User.
func (s *Service) RegisterProfile(ctx context.Context, email, password, firstName, lastName, phone string) (*model.Profile, error) {
	p := &model.Profile{
		Email:        email,
		PasswordHash: hashPassword(email, password),
		FirstName:    firstName,
		LastName:     lastName,
		PhoneNumber:  phone,
		Role:         model.RoleUser,
	}

	if err := s.repo.CreateProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Authenticate проверяет email и пароль пользователя.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.Profile, error) {
	p, err := s.repo.GetProfileByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	hashed := hashPassword(email, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(p.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return p, nil
}

func hashPassword(email, password string) []byte {
	sum := sha256.Sum256([]byte(email + ":" + password))
	return sum[:]
}

// GetProfile возвращает учётную запись по email.
func (s *Service) GetProfile(ctx context.Context, email string) (*model.Profile, error) {
	return s.repo.GetProfileByEmail(ctx, email)
}

// UpdateProfile обновляет контактные данные учётной записи.
func (s *Service) UpdateProfile(ctx context.Context, email, firstName, lastName, phone string) (*model.Profile, error) {
	if err := s.repo.UpdateProfile(ctx, email, firstName, lastName, phone); err != nil {
		return nil, err
	}
	return s.repo.GetProfileByEmail(ctx, email)
}

// UploadFile описывает один загружаемый файл.
type UploadFile struct {
	Name string
	Data []byte
}

// UploadSubmissions создаёт заявку на каждый загруженный файл. Все заявки
// пакета получают последовательные номера пользователя.
func (s *Service) UploadSubmissions(ctx context.Context, owner, serviceType, comment string, price int64, files []UploadFile) ([]model.Submission, error) {
	if len(files) == 0 {
		return nil, ErrEmptyFile
	}
	if price < 0 {
		return nil, ErrNegativePrice
	}

	batch := make([]model.Submission, 0, len(files))
	for _, f := range files {
		if len(f.Data) == 0 {
			return nil, ErrEmptyFile
		}
		batch = append(batch, model.Submission{
			FileName:    f.Name,
			ImageData:   f.Data,
			ServiceType: serviceType,
			Comment:     comment,
			Price:       price,
			Status:      model.StatusPending,
		})
	}

	return s.repo.CreateSubmissions(ctx, owner, batch)
}

// ListActiveOrders возвращает страницу недоставленных заявок пользователя.
// Некорректные номер страницы и размер приводятся к значениям по умолчанию.
func (s *Service) ListActiveOrders(ctx context.Context, owner string, page, pageSize int) ([]model.Submission, int, int, int, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	items, total, err := s.repo.ListActiveSubmissions(ctx, owner, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, 0, 0, err
	}

	return items, total, page, pageSize, nil
}

// GetSubmission возвращает заявку по идентификатору.
func (s *Service) GetSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	return s.repo.GetSubmissionByID(ctx, id)
}

// ListAllOrders возвращает все заявки.
func (s *Service) ListAllOrders(ctx context.Context) ([]model.Submission, error) {
	return s.repo.ListSubmissions(ctx)
}

// ListArchive возвращает доставленные заявки.
func (s *Service) ListArchive(ctx context.Context) ([]model.Submission, error) {
	return s.repo.ListDeliveredSubmissions(ctx)
}

// ListReviewQueue возвращает заявки, ожидающие проверки.
func (s *Service) ListReviewQueue(ctx context.Context) ([]model.Submission, error) {
	return s.repo.ListUnreviewedSubmissions(ctx)
}

// SetStatus разбирает и перезаписывает статус заявки. Переходы между
// статусами не ограничиваются.
func (s *Service) SetStatus(ctx context.Context, id int64, newStatus string) error {
	status, err := model.ParseSubmissionStatus(newStatus)
	if err != nil {
		return err
	}
	return s.repo.SetSubmissionStatus(ctx, id, status)
}

// MarkReviewed отмечает заявку как просмотренную.
func (s *Service) MarkReviewed(ctx context.Context, id int64) error {
	return s.repo.MarkSubmissionReviewed(ctx, id)
}

// AttachProcessedOutput сохраняет результат обработки без отправки пользователю.
func (s *Service) AttachProcessedOutput(ctx context.Context, id int64, data []byte, staff string) error {
	if len(data) == 0 {
		return ErrEmptyFile
	}
	return s.repo.AttachProcessedImage(ctx, id, data, staff)
}

// DeliverToUser сохраняет результат обработки, отправляет его пользователю
// по почте и только после успешной отправки отмечает заявку доставленной.
// При ошибке отправки результат уже сохранён, флаг доставки не меняется,
// операцию можно повторить.
func (s *Service) DeliverToUser(ctx context.Context, id int64, data []byte, staff string) error {
	if len(data) == 0 {
		return ErrEmptyFile
	}

	sub, err := s.repo.GetSubmissionByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.AttachProcessedImage(ctx, id, data, staff); err != nil {
		return err
	}

	if s.mailer == nil {
		return fmt.Errorf("%w: mailer not configured", ErrDeliveryFailed)
	}

	att := mailer.Attachment{
		FileName:    "processed_" + sub.FileName,
		ContentType: "image/jpeg",
		Data:        data,
	}
	if err := s.mailer.Send(ctx, sub.UserEmail, deliverySubject, deliveryBody, att); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	return s.repo.MarkSubmissionDelivered(ctx, id)
}

// Stats возвращает сводные счётчики для панели администратора.
func (s *Service) Stats(ctx context.Context) (*model.Stats, error) {
	return s.repo.Stats(ctx)
}

// CreateSubscription создаёт подписку, подставляя значения по умолчанию:
// план Basic, начало — сейчас, окончание — через календарный месяц.
func (s *Service) CreateSubscription(ctx context.Context, sub *model.Subscription) error {
	if sub.PlanName == "" {
		sub.PlanName = "Basic"
	}
	if sub.StartDate.IsZero() {
		sub.StartDate = time.Now().UTC()
	}
	if sub.EndDate.IsZero() {
		sub.EndDate = sub.StartDate.AddDate(0, 1, 0)
	}
	sub.IsActive = true

	return s.repo.CreateSubscription(ctx, sub)
}

// GetSubscription возвращает подписку по идентификатору.
func (s *Service) GetSubscription(ctx context.Context, id int64) (*model.Subscription, error) {
	return s.repo.GetSubscriptionByID(ctx, id)
}

// ListSubscriptions возвращает все подписки.
func (s *Service) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	return s.repo.ListSubscriptions(ctx)
}

// ListSubscriptionsByUser возвращает подписки пользователя.
func (s *Service) ListSubscriptionsByUser(ctx context.Context, email string) ([]model.Subscription, error) {
	return s.repo.ListSubscriptionsByUser(ctx, email)
}

// GetCurrentSubscription возвращает действующую подписку пользователя.
func (s *Service) GetCurrentSubscription(ctx context.Context, email string) (*model.Subscription, error) {
	return s.repo.GetCurrentSubscription(ctx, email)
}

// UpdateSubscription перезаписывает поля подписки.
func (s *Service) UpdateSubscription(ctx context.Context, sub *model.Subscription) error {
	return s.repo.UpdateSubscription(ctx, sub)
}

// CancelSubscription отменяет подписку: деактивирует её и переносит дату
// окончания на момент отмены.
func (s *Service) CancelSubscription(ctx context.Context, id int64) error {
	return s.repo.CancelSubscription(ctx, id)
}

// DeleteSubscription удаляет подписку.
func (s *Service) DeleteSubscription(ctx context.Context, id int64) error {
	return s.repo.DeleteSubscription(ctx, id)
}
