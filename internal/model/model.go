// Package model содержит доменные сущности сервиса фотостудии.
package model

import (
	"errors"
	"time"
)

// ErrUnknownStatus возвращается при разборе нераспознанного статуса заявки.
var ErrUnknownStatus = errors.New("unknown submission status")

// Роли пользователей.
const (
	RoleUser  = "User"
	RoleAdmin = "Admin"
)

// SubmissionStatus описывает статус обработки заявки на фото.
type SubmissionStatus string

const (
	StatusPending    SubmissionStatus = "Pending"
	StatusInProgress SubmissionStatus = "InProgress"
	StatusCompleted  SubmissionStatus = "Completed"
)

// ParseSubmissionStatus разбирает строковое значение статуса заявки.
func ParseSubmissionStatus(s string) (SubmissionStatus, error) {
	switch SubmissionStatus(s) {
	case StatusPending, StatusInProgress, StatusCompleted:
		return SubmissionStatus(s), nil
	}
	return "", ErrUnknownStatus
}

// Submission представляет заявку на обработку одной загруженной фотографии.
// OrderNumber — номер в рамках одного пользователя, GlobalOrderID — сквозной
// номер по всем заявкам. Оба назначаются при создании и не переиспользуются.
type Submission struct {
	ID             int64
	FileName       string
	ImageData      []byte
	UserEmail      string
	ServiceType    string
	Comment        string
	Price          int64
	UploadedAt     time.Time
	Status         SubmissionStatus
	IsReviewed     bool
	IsDelivered    bool
	ProcessedImage []byte
	ProcessedBy    string
	OrderNumber    int
	GlobalOrderID  int64
}

// Subscription описывает подписку пользователя на тарифный план.
type Subscription struct {
	ID        int64
	UserEmail string
	PlanName  string
	AutoRenew bool
	StartDate time.Time
	EndDate   time.Time
	IsActive  bool
	CreatedAt time.Time
}

// ActiveAt сообщает, действует ли подписка в указанный момент времени.
// Признак выводится из флага и временного окна, отдельно он не хранится.
func (s *Subscription) ActiveAt(now time.Time) bool {
	return s.IsActive && !s.StartDate.After(now) && !s.EndDate.Before(now)
}

// Profile представляет учётную запись пользователя фотостудии.
type Profile struct {
	ID           int64
	Email        string
	PasswordHash []byte
	FirstName    string
	LastName     string
	PhoneNumber  string
	Role         string
	RegisteredAt time.Time
}

// Stats содержит сводные счётчики для панели администратора.
type Stats struct {
	TotalUsers          int64 `json:"totalUsers"`
	Admins              int64 `json:"admins"`
	RegularUsers        int64 `json:"users"`
	TotalSubmissions    int64 `json:"submissions"`
	ReviewedSubmissions int64 `json:"reviewed"`
}
