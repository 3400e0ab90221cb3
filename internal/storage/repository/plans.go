package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
)

// CreatePlan вставляет новый тарифный план и возвращает его ID.
func (s *Storage) CreatePlan(ctx context.Context, plan models.Plan) (int64, error) {
	const op = "storage.CreatePlan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	features, err := json.Marshal(plan.Features)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO subscription_plans (name, features, price, is_active)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`
	var newID int64
	if err := s.DB.QueryRowContext(ctx, query,
		plan.Name, features, plan.Price, plan.IsActive).Scan(&newID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetPlan возвращает план по ID.
func (s *Storage) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	const op = "storage.GetPlan"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, features, price, is_active, created_at, updated_at
			  FROM subscription_plans
			  WHERE id = $1`
	return scanPlan(s.DB.QueryRowContext(ctx, query, id), op)
}

// GetPlanByName возвращает план по уникальному названию.
func (s *Storage) GetPlanByName(ctx context.Context, name string) (*models.Plan, error) {
	const op = "storage.GetPlanByName"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, features, price, is_active, created_at, updated_at
			  FROM subscription_plans
			  WHERE name = $1`
	return scanPlan(s.DB.QueryRowContext(ctx, query, name), op)
}

// ListPlans возвращает планы каталога, отсортированные по цене.
// При onlyActive = true отключённые планы не возвращаются.
func (s *Storage) ListPlans(ctx context.Context, onlyActive bool) ([]*models.Plan, error) {
	const op = "storage.ListPlans"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, features, price, is_active, created_at, updated_at
			  FROM subscription_plans`
	if onlyActive {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY price`

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Plan
	for rows.Next() {
		p := &models.Plan{}
		var features []byte
		if err = rows.Scan(&p.ID, &p.Name, &features, &p.Price,
			&p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err = json.Unmarshal(features, &p.Features); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdatePlan обновляет данные плана по ID и возвращает число изменённых строк.
func (s *Storage) UpdatePlan(ctx context.Context, plan models.Plan, id int64) (int64, error) {
	const op = "storage.UpdatePlan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	features, err := json.Marshal(plan.Features)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE subscription_plans
			  SET name = $1, features = $2, price = $3, is_active = $4, updated_at = NOW()
			  WHERE id = $5`
	result, err := s.DB.ExecContext(ctx, query,
		plan.Name, features, plan.Price, plan.IsActive, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected, nil
}

// SetPlanActive включает или отключает план, не удаляя его из каталога.
func (s *Storage) SetPlanActive(ctx context.Context, id int64, isActive bool) (int64, error) {
	const op = "storage.SetPlanActive"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscription_plans
			  SET is_active = $1, updated_at = NOW()
			  WHERE id = $2`
	result, err := s.DB.ExecContext(ctx, query, isActive, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected, nil
}

// RemovePlan удаляет план по ID. Внешний ключ из журнала подписок
// объявлен как RESTRICT: план с историческими записями удалить нельзя.
func (s *Storage) RemovePlan(ctx context.Context, id int64) (int64, error) {
	const op = "storage.RemovePlan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM subscription_plans WHERE id = $1`
	result, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return 0, fmt.Errorf("%s: %w", op, ErrRestricted)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected, nil
}

func scanPlan(row *sql.Row, op string) (*models.Plan, error) {
	p := &models.Plan{}
	var features []byte
	if err := row.Scan(&p.ID, &p.Name, &features, &p.Price,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(features, &p.Features); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}
