// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mmeshcher/photostudio-system/internal/model"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrProfileExists возвращается при попытке создать учётную запись с уже занятым email.
var (
	ErrProfileExists = errors.New("profile already exists")
	// ErrProfileNotFound возвращается, если учётная запись не найдена.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrSubmissionNotFound возвращается, если заявка с указанным id не найдена.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrSubscriptionNotFound возвращается, если подписка не найдена.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// Ретраи полезны для Serialization Failure или Deadlocks.
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateProfile создаёт новую учётную запись пользователя.
func (r *PostgresRepository) CreateProfile(ctx context.Context, p *model.Profile) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO profiles (email, password_hash, first_name, last_name, phone_number, role)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, registered_at`,
		p.Email, p.PasswordHash, p.FirstName, p.LastName, p.PhoneNumber, p.Role,
	).Scan(&p.ID, &p.RegisteredAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrProfileExists, p.Email)
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// GetProfileByEmail возвращает учётную запись по email.
func (r *PostgresRepository) GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, first_name, last_name, phone_number, role, registered_at
		 FROM profiles WHERE email = $1`,
		email,
	)

	var p model.Profile
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.FirstName, &p.LastName, &p.PhoneNumber, &p.Role, &p.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return &p, nil
}

// UpdateProfile обновляет контактные данные учётной записи.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, email, firstName, lastName, phone string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE profiles SET first_name = $2, last_name = $3, phone_number = $4 WHERE email = $1`,
		email, firstName, lastName, phone,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// CreateSubmissions сохраняет пакет заявок одного пользователя, назначая
// каждой номер в последовательности пользователя и сквозной номер.
// Выдача номеров пользователя сериализуется advisory-блокировкой по email,
// чтобы параллельные загрузки не получили одинаковый номер. Сквозной номер
// берётся из последовательности БД.
func (r *PostgresRepository) CreateSubmissions(ctx context.Context, owner string, subs []model.Submission) ([]model.Submission, error) {
	err := r.withRetry(ctx, func() error {
		return r.createSubmissionsTx(ctx, owner, subs)
	})
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *PostgresRepository) createSubmissionsTx(ctx context.Context, owner string, subs []model.Submission) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, owner); err != nil {
		return fmt.Errorf("lock owner sequence: %w", err)
	}

	var lastNumber int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(order_number), 0) FROM photo_submissions WHERE user_email = $1`,
		owner,
	).Scan(&lastNumber)
	if err != nil {
		return fmt.Errorf("select last order number: %w", err)
	}

	for i := range subs {
		s := &subs[i]
		s.UserEmail = owner
		s.OrderNumber = lastNumber + 1 + i
		if s.Status == "" {
			s.Status = model.StatusPending
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO photo_submissions
			     (file_name, image_data, user_email, service_type, comment, price, status, order_number)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id, global_order_id, uploaded_at`,
			s.FileName, s.ImageData, s.UserEmail, s.ServiceType, s.Comment, s.Price, string(s.Status), s.OrderNumber,
		).Scan(&s.ID, &s.GlobalOrderID, &s.UploadedAt)
		if err != nil {
			return fmt.Errorf("insert submission: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetSubmissionByID возвращает заявку вместе с изображениями.
func (r *PostgresRepository) GetSubmissionByID(ctx context.Context, id int64) (*model.Submission, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, file_name, image_data, user_email, service_type, comment, price,
		        uploaded_at, status, is_reviewed, is_delivered, processed_image, processed_by,
		        order_number, global_order_id
		 FROM photo_submissions WHERE id = $1`,
		id,
	)

	var s model.Submission
	var status string
	err := row.Scan(&s.ID, &s.FileName, &s.ImageData, &s.UserEmail, &s.ServiceType, &s.Comment, &s.Price,
		&s.UploadedAt, &status, &s.IsReviewed, &s.IsDelivered, &s.ProcessedImage, &s.ProcessedBy,
		&s.OrderNumber, &s.GlobalOrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	s.Status = model.SubmissionStatus(status)

	return &s, nil
}

// Колонки списочных выборок: без изображений, они тяжёлые и нужны только
// при скачивании.
const submissionListColumns = `id, file_name, user_email, service_type, comment, price,
	uploaded_at, status, is_reviewed, is_delivered, processed_by, order_number, global_order_id`

func scanSubmissionRows(rows pgx.Rows) ([]model.Submission, error) {
	defer rows.Close()

	var res []model.Submission
	for rows.Next() {
		var s model.Submission
		var status string
		if err := rows.Scan(&s.ID, &s.FileName, &s.UserEmail, &s.ServiceType, &s.Comment, &s.Price,
			&s.UploadedAt, &status, &s.IsReviewed, &s.IsDelivered, &s.ProcessedBy,
			&s.OrderNumber, &s.GlobalOrderID); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		s.Status = model.SubmissionStatus(status)
		res = append(res, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListActiveSubmissions возвращает страницу недоставленных заявок пользователя
// по убыванию номера заказа и общее количество активных заявок.
func (r *PostgresRepository) ListActiveSubmissions(ctx context.Context, owner string, limit, offset int) ([]model.Submission, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM photo_submissions WHERE user_email = $1 AND NOT is_delivered`,
		owner,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count active submissions: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionListColumns+`
		 FROM photo_submissions
		 WHERE user_email = $1 AND NOT is_delivered
		 ORDER BY order_number DESC
		 LIMIT $2 OFFSET $3`,
		owner, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select active submissions: %w", err)
	}

	items, err := scanSubmissionRows(rows)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// ListSubmissions возвращает все заявки для панели администратора.
func (r *PostgresRepository) ListSubmissions(ctx context.Context) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionListColumns+` FROM photo_submissions ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select submissions: %w", err)
	}
	return scanSubmissionRows(rows)
}

// ListDeliveredSubmissions возвращает архив доставленных заявок.
func (r *PostgresRepository) ListDeliveredSubmissions(ctx context.Context) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionListColumns+`
		 FROM photo_submissions
		 WHERE is_delivered
		 ORDER BY uploaded_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select delivered submissions: %w", err)
	}
	return scanSubmissionRows(rows)
}

// ListUnreviewedSubmissions возвращает очередь заявок, ожидающих проверки.
func (r *PostgresRepository) ListUnreviewedSubmissions(ctx context.Context) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionListColumns+`
		 FROM photo_submissions
		 WHERE NOT is_reviewed
		 ORDER BY uploaded_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select unreviewed submissions: %w", err)
	}
	return scanSubmissionRows(rows)
}

// SetSubmissionStatus перезаписывает статус заявки.
func (r *PostgresRepository) SetSubmissionStatus(ctx context.Context, id int64, status model.SubmissionStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE photo_submissions SET status = $2 WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

// MarkSubmissionReviewed отмечает заявку как просмотренную.
func (r *PostgresRepository) MarkSubmissionReviewed(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE photo_submissions SET is_reviewed = true WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark submission reviewed: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

// AttachProcessedImage сохраняет результат обработки и исполнителя.
func (r *PostgresRepository) AttachProcessedImage(ctx context.Context, id int64, data []byte, processedBy string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE photo_submissions SET processed_image = $2, processed_by = $3 WHERE id = $1`,
		id, data, processedBy,
	)
	if err != nil {
		return fmt.Errorf("attach processed image: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

// MarkSubmissionDelivered отмечает заявку как доставленную. Флаг меняется
// только в одну сторону: false -> true.
func (r *PostgresRepository) MarkSubmissionDelivered(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE photo_submissions SET is_delivered = true WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark submission delivered: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

// Stats возвращает сводные счётчики для панели администратора.
func (r *PostgresRepository) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE role = $1),
		        COUNT(*) FILTER (WHERE role = $2)
		 FROM profiles`,
		model.RoleAdmin, model.RoleUser,
	).Scan(&st.TotalUsers, &st.Admins, &st.RegularUsers)
	if err != nil {
		return nil, fmt.Errorf("count profiles: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_reviewed) FROM photo_submissions`,
	).Scan(&st.TotalSubmissions, &st.ReviewedSubmissions)
	if err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}

	return &st, nil
}

// CreateSubscription сохраняет новую подписку.
func (r *PostgresRepository) CreateSubscription(ctx context.Context, sub *model.Subscription) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO subscriptions (user_email, plan_name, auto_renew, start_date, end_date, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		sub.UserEmail, sub.PlanName, sub.AutoRenew, sub.StartDate, sub.EndDate, sub.IsActive,
	).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

const subscriptionColumns = `id, user_email, plan_name, auto_renew, start_date, end_date, is_active, created_at`

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	err := row.Scan(&s.ID, &s.UserEmail, &s.PlanName, &s.AutoRenew, &s.StartDate, &s.EndDate, &s.IsActive, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return &s, nil
}

func scanSubscriptionRows(rows pgx.Rows) ([]model.Subscription, error) {
	defer rows.Close()

	var res []model.Subscription
	for rows.Next() {
		var s model.Subscription
		if err := rows.Scan(&s.ID, &s.UserEmail, &s.PlanName, &s.AutoRenew, &s.StartDate, &s.EndDate, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		res = append(res, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetSubscriptionByID возвращает подписку по идентификатору.
func (r *PostgresRepository) GetSubscriptionByID(ctx context.Context, id int64) (*model.Subscription, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`,
		id,
	)
	return scanSubscription(row)
}

// ListSubscriptions возвращает все подписки по убыванию даты создания.
func (r *PostgresRepository) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select subscriptions: %w", err)
	}
	return scanSubscriptionRows(rows)
}

// ListSubscriptionsByUser возвращает подписки пользователя по убыванию даты начала.
func (r *PostgresRepository) ListSubscriptionsByUser(ctx context.Context, email string) ([]model.Subscription, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE user_email = $1
		 ORDER BY start_date DESC`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("select subscriptions by user: %w", err)
	}
	return scanSubscriptionRows(rows)
}

// GetCurrentSubscription возвращает действующую подписку пользователя с самой
// поздней датой начала. Если действующих нет — ErrSubscriptionNotFound.
func (r *PostgresRepository) GetCurrentSubscription(ctx context.Context, email string) (*model.Subscription, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE user_email = $1 AND is_active AND start_date <= now() AND end_date >= now()
		 ORDER BY start_date DESC
		 LIMIT 1`,
		email,
	)
	return scanSubscription(row)
}

// UpdateSubscription перезаписывает все поля подписки, кроме идентификатора.
func (r *PostgresRepository) UpdateSubscription(ctx context.Context, sub *model.Subscription) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE subscriptions
		 SET user_email = $2, plan_name = $3, auto_renew = $4, start_date = $5, end_date = $6, is_active = $7
		 WHERE id = $1`,
		sub.ID, sub.UserEmail, sub.PlanName, sub.AutoRenew, sub.StartDate, sub.EndDate, sub.IsActive,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// CancelSubscription деактивирует подписку и сдвигает дату окончания на момент отмены.
func (r *PostgresRepository) CancelSubscription(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE subscriptions SET is_active = false, end_date = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// DeleteSubscription удаляет подписку.
func (r *PostgresRepository) DeleteSubscription(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM subscriptions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}
