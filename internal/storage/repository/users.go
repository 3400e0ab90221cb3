package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
)

// RegisterUser сохраняет нового пользователя в базу данных и возвращает его UID.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	features, err := json.Marshal(user.EnabledFeatures)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var newUID string
	query := `INSERT INTO users (email, phone, name, password_hash, role, plan_id,
			      enabled_features, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.Phone, user.Name, user.PasswordHash, user.Role,
		user.PlanID, features, user.IsActive).Scan(&newUID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newUID, nil
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	row := s.DB.QueryRowContext(ctx, userQuery+` WHERE uid = $1`, userUID)
	return scanUser(row, op)
}

// GetUserByEmail возвращает пользователя по его email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	row := s.DB.QueryRowContext(ctx, userQuery+` WHERE email = $1`, email)
	return scanUser(row, op)
}

// GetUserByPhone возвращает пользователя по его телефону.
func (s *Storage) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	const op = "storage.GetUserByPhone"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	row := s.DB.QueryRowContext(ctx, userQuery+` WHERE phone = $1`, phone)
	return scanUser(row, op)
}

const userQuery = `SELECT uid, email, phone, name, password_hash, role, plan_id,
			      enabled_features, is_active, date_joined
			  FROM users`

func scanUser(row *sql.Row, op string) (*models.User, error) {
	u := &models.User{}
	var email, phone sql.NullString
	var planID sql.NullInt64
	var features []byte
	if err := row.Scan(&u.UID, &email, &phone, &u.Name, &u.PasswordHash,
		&u.Role, &planID, &features, &u.IsActive, &u.DateJoined); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if email.Valid {
		u.Email = &email.String
	}
	if phone.Valid {
		u.Phone = &phone.String
	}
	if planID.Valid {
		u.PlanID = &planID.Int64
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &u.EnabledFeatures); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return u, nil
}
