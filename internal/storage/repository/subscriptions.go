package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
)

// CreateSubscriptionReplacingActive создаёт новую запись подписки,
// предварительно переводя существующую активную запись пользователя
// в статус cancelled. Обе операции выполняются в одной транзакции,
// поэтому снаружи замена атомарна: два одновременно активных статуса
// невозможны (дополнительно это закреплено частичным уникальным индексом).
func (s *Storage) CreateSubscriptionReplacingActive(ctx context.Context, sub models.Subscription) (int64, error) {
	const op = "storage.CreateSubscriptionReplacingActive"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	cancelQuery := `UPDATE user_subscriptions
			  SET status = $1, updated_at = NOW()
			  WHERE user_uid = $2 AND status = $3`
	if _, err = tx.ExecContext(ctx, cancelQuery,
		models.StatusCancelled, sub.UserUID, models.StatusActive); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	insertQuery := `INSERT INTO user_subscriptions (user_uid, plan_id, status, end_date)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`
	var newID int64
	if err = tx.QueryRowContext(ctx, insertQuery,
		sub.UserUID, sub.PlanID, sub.Status, sub.EndDate).Scan(&newID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetSubscription возвращает запись подписки по ID.
func (s *Storage) GetSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	row := s.DB.QueryRowContext(ctx, subscriptionQuery+` WHERE id = $1`, id)
	return scanSubscription(row, op)
}

// GetActiveSubscription возвращает запись пользователя со статусом active
// или ErrNotFound, если такой нет. Просроченность записи здесь не
// проверяется: это забота резолвера.
func (s *Storage) GetActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.GetActiveSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	row := s.DB.QueryRowContext(ctx, subscriptionQuery+` WHERE user_uid = $1 AND status = $2`,
		userUID, models.StatusActive)
	return scanSubscription(row, op)
}

// ListSubscriptions возвращает все записи журнала подписок с пагинацией.
func (s *Storage) ListSubscriptions(ctx context.Context, limit, offset int) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptions"
	query := subscriptionQuery + ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return s.listSubscriptions(ctx, op, query, limit, offset)
}

// ListSubscriptionsByUser возвращает записи журнала одного пользователя.
func (s *Storage) ListSubscriptionsByUser(ctx context.Context, userUID string, limit, offset int) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptionsByUser"
	query := subscriptionQuery + ` WHERE user_uid = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return s.listSubscriptions(ctx, op, query, userUID, limit, offset)
}

// UpdateSubscriptionStatus выставляет записи новый статус и возвращает
// число изменённых строк. Повторный перевод в тот же статус изменяет
// ноль строк и ошибкой не считается.
func (s *Storage) UpdateSubscriptionStatus(ctx context.Context, id int64, status string) (int64, error) {
	const op = "storage.UpdateSubscriptionStatus"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE user_subscriptions
			  SET status = $1, updated_at = NOW()
			  WHERE id = $2 AND status <> $1`
	result, err := s.DB.ExecContext(ctx, query, status, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected, nil
}

// RenewSubscription возвращает запись в статус active, при переданной
// дате продлевая срок действия. endDate = nil оставляет прежнюю дату.
func (s *Storage) RenewSubscription(ctx context.Context, id int64, endDate *time.Time) error {
	const op = "storage.RenewSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE user_subscriptions
			  SET status = $1,
			      end_date = COALESCE($2, end_date),
			      updated_at = NOW()
			  WHERE id = $3`
	result, err := s.DB.ExecContext(ctx, query, models.StatusActive, endDate, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// ExpireOverdueSubscriptions переводит в статус expired все активные
// записи, чья дата окончания строго раньше now. Возвращает число
// изменённых строк. Используется плановой выметающей задачей.
func (s *Storage) ExpireOverdueSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.ExpireOverdueSubscriptions"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE user_subscriptions
			  SET status = $1, updated_at = NOW()
			  WHERE status = $2 AND end_date IS NOT NULL AND end_date < $3`
	result, err := s.DB.ExecContext(ctx, query, models.StatusExpired, models.StatusActive, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected, nil
}

const subscriptionQuery = `SELECT id, user_uid, plan_id, status, start_date, end_date,
			      created_at, updated_at
			  FROM user_subscriptions`

func (s *Storage) listSubscriptions(ctx context.Context, op, query string, args ...any) ([]*models.Subscription, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		sub := &models.Subscription{}
		var endDate sql.NullTime
		if err = rows.Scan(&sub.ID, &sub.UserUID, &sub.PlanID, &sub.Status,
			&sub.StartDate, &endDate, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if endDate.Valid {
			sub.EndDate = &endDate.Time
		}
		result = append(result, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func scanSubscription(row *sql.Row, op string) (*models.Subscription, error) {
	sub := &models.Subscription{}
	var endDate sql.NullTime
	if err := row.Scan(&sub.ID, &sub.UserUID, &sub.PlanID, &sub.Status,
		&sub.StartDate, &endDate, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if endDate.Valid {
		sub.EndDate = &endDate.Time
	}
	return sub, nil
}
