package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mmeshcher/photostudio-system/internal/model"
)

// MemoryRepository хранит данные в памяти под мьютексом. Повторяет семантику
// PostgresRepository (нумерация, сортировки, временные окна) и используется
// в тестах вместо реальной БД.
type MemoryRepository struct {
	mu sync.Mutex

	profiles      map[string]*model.Profile
	submissions   map[int64]*model.Submission
	subscriptions map[int64]*model.Subscription

	nextProfileID      int64
	nextSubmissionID   int64
	nextSubscriptionID int64
	nextGlobalOrderID  int64
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		profiles:      make(map[string]*model.Profile),
		submissions:   make(map[int64]*model.Submission),
		subscriptions: make(map[int64]*model.Subscription),
	}
}

// Close ничего не освобождает, метод нужен для совместимости с контрактом.
func (r *MemoryRepository) Close() error {
	return nil
}

// CreateProfile создаёт новую учётную запись пользователя.
func (r *MemoryRepository) CreateProfile(_ context.Context, p *model.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[p.Email]; ok {
		return fmt.Errorf("%w: %s", ErrProfileExists, p.Email)
	}

	r.nextProfileID++
	p.ID = r.nextProfileID
	if p.RegisteredAt.IsZero() {
		p.RegisteredAt = time.Now()
	}

	cp := *p
	r.profiles[p.Email] = &cp
	return nil
}

// GetProfileByEmail возвращает учётную запись по email.
func (r *MemoryRepository) GetProfileByEmail(_ context.Context, email string) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[email]
	if !ok {
		return nil, ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

// UpdateProfile обновляет контактные данные учётной записи.
func (r *MemoryRepository) UpdateProfile(_ context.Context, email, firstName, lastName, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[email]
	if !ok {
		return ErrProfileNotFound
	}
	p.FirstName = firstName
	p.LastName = lastName
	p.PhoneNumber = phone
	return nil
}

// CreateSubmissions сохраняет пакет заявок, назначая номера так же, как
// PostgresRepository: следующий номер пользователя и сквозной номер.
func (r *MemoryRepository) CreateSubmissions(_ context.Context, owner string, subs []model.Submission) ([]model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lastNumber := 0
	for _, s := range r.submissions {
		if s.UserEmail == owner && s.OrderNumber > lastNumber {
			lastNumber = s.OrderNumber
		}
	}

	for i := range subs {
		s := &subs[i]
		s.UserEmail = owner
		s.OrderNumber = lastNumber + 1 + i
		if s.Status == "" {
			s.Status = model.StatusPending
		}
		if s.UploadedAt.IsZero() {
			s.UploadedAt = time.Now()
		}

		r.nextSubmissionID++
		r.nextGlobalOrderID++
		s.ID = r.nextSubmissionID
		s.GlobalOrderID = r.nextGlobalOrderID

		cp := *s
		r.submissions[s.ID] = &cp
	}

	return subs, nil
}

// GetSubmissionByID возвращает заявку вместе с изображениями.
func (r *MemoryRepository) GetSubmissionByID(_ context.Context, id int64) (*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.submissions[id]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	cp := *s
	return &cp, nil
}

// ListActiveSubmissions возвращает страницу недоставленных заявок пользователя
// по убыванию номера заказа и общее количество активных заявок.
func (r *MemoryRepository) ListActiveSubmissions(_ context.Context, owner string, limit, offset int) ([]model.Submission, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var active []model.Submission
	for _, s := range r.submissions {
		if s.UserEmail == owner && !s.IsDelivered {
			active = append(active, *s)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].OrderNumber > active[j].OrderNumber
	})

	total := len(active)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return active[offset:end], total, nil
}

// ListSubmissions возвращает все заявки в порядке создания.
func (r *MemoryRepository) ListSubmissions(_ context.Context) ([]model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Submission
	for _, s := range r.submissions {
		res = append(res, *s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// ListDeliveredSubmissions возвращает архив доставленных заявок.
func (r *MemoryRepository) ListDeliveredSubmissions(_ context.Context) ([]model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Submission
	for _, s := range r.submissions {
		if s.IsDelivered {
			res = append(res, *s)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UploadedAt.After(res[j].UploadedAt) })
	return res, nil
}

// ListUnreviewedSubmissions возвращает очередь заявок, ожидающих проверки.
func (r *MemoryRepository) ListUnreviewedSubmissions(_ context.Context) ([]model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Submission
	for _, s := range r.submissions {
		if !s.IsReviewed {
			res = append(res, *s)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UploadedAt.After(res[j].UploadedAt) })
	return res, nil
}

// SetSubmissionStatus перезаписывает статус заявки.
func (r *MemoryRepository) SetSubmissionStatus(_ context.Context, id int64, status model.SubmissionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.submissions[id]
	if !ok {
		return ErrSubmissionNotFound
	}
	s.Status = status
	return nil
}

// MarkSubmissionReviewed отмечает заявку как просмотренную.
func (r *MemoryRepository) MarkSubmissionReviewed(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.submissions[id]
	if !ok {
		return ErrSubmissionNotFound
	}
	s.IsReviewed = true
	return nil
}

// AttachProcessedImage сохраняет результат обработки и исполнителя.
func (r *MemoryRepository) AttachProcessedImage(_ context.Context, id int64, data []byte, processedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.submissions[id]
	if !ok {
		return ErrSubmissionNotFound
	}
	s.ProcessedImage = data
	s.ProcessedBy = processedBy
	return nil
}

// MarkSubmissionDelivered отмечает заявку как доставленную.
func (r *MemoryRepository) MarkSubmissionDelivered(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.submissions[id]
	if !ok {
		return ErrSubmissionNotFound
	}
	s.IsDelivered = true
	return nil
}

// Stats возвращает сводные счётчики.
func (r *MemoryRepository) Stats(_ context.Context) (*model.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var st model.Stats
	for _, p := range r.profiles {
		st.TotalUsers++
		switch p.Role {
		case model.RoleAdmin:
			st.Admins++
		case model.RoleUser:
			st.RegularUsers++
		}
	}
	for _, s := range r.submissions {
		st.TotalSubmissions++
		if s.IsReviewed {
			st.ReviewedSubmissions++
		}
	}
	return &st, nil
}

// CreateSubscription сохраняет новую подписку.
func (r *MemoryRepository) CreateSubscription(_ context.Context, sub *model.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSubscriptionID++
	sub.ID = r.nextSubscriptionID
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}

	cp := *sub
	r.subscriptions[sub.ID] = &cp
	return nil
}

// GetSubscriptionByID возвращает подписку по идентификатору.
func (r *MemoryRepository) GetSubscriptionByID(_ context.Context, id int64) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.subscriptions[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	cp := *s
	return &cp, nil
}

// ListSubscriptions возвращает все подписки по убыванию даты создания.
func (r *MemoryRepository) ListSubscriptions(_ context.Context) ([]model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Subscription
	for _, s := range r.subscriptions {
		res = append(res, *s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// ListSubscriptionsByUser возвращает подписки пользователя по убыванию даты начала.
func (r *MemoryRepository) ListSubscriptionsByUser(_ context.Context, email string) ([]model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Subscription
	for _, s := range r.subscriptions {
		if s.UserEmail == email {
			res = append(res, *s)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].StartDate.After(res[j].StartDate) })
	return res, nil
}

// GetCurrentSubscription возвращает действующую подписку пользователя с самой
// поздней датой начала.
func (r *MemoryRepository) GetCurrentSubscription(_ context.Context, email string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var current *model.Subscription
	for _, s := range r.subscriptions {
		if s.UserEmail != email || !s.ActiveAt(now) {
			continue
		}
		if current == nil || s.StartDate.After(current.StartDate) {
			current = s
		}
	}
	if current == nil {
		return nil, ErrSubscriptionNotFound
	}
	cp := *current
	return &cp, nil
}

// UpdateSubscription перезаписывает все поля подписки, кроме идентификатора.
func (r *MemoryRepository) UpdateSubscription(_ context.Context, sub *model.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.subscriptions[sub.ID]
	if !ok {
		return ErrSubscriptionNotFound
	}
	s.UserEmail = sub.UserEmail
	s.PlanName = sub.PlanName
	s.AutoRenew = sub.AutoRenew
	s.StartDate = sub.StartDate
	s.EndDate = sub.EndDate
	s.IsActive = sub.IsActive
	return nil
}

// CancelSubscription деактивирует подписку и сдвигает дату окончания на момент отмены.
func (r *MemoryRepository) CancelSubscription(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.subscriptions[id]
	if !ok {
		return ErrSubscriptionNotFound
	}
	s.IsActive = false
	s.EndDate = time.Now()
	return nil
}

// DeleteSubscription удаляет подписку.
func (r *MemoryRepository) DeleteSubscription(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subscriptions[id]; !ok {
		return ErrSubscriptionNotFound
	}
	delete(r.subscriptions, id)
	return nil
}
