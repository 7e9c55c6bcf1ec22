// Package storage implements the PostgreSQL repository for users,
// payment orders, subscriptions and second-opinion entitlements.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// pgx driver registration for database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/byonco/webgate/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage wraps the PostgreSQL connection and implements the repository
// methods used by the services.
type Storage struct {
	DB *sql.DB
}

// New opens a connection to PostgreSQL and verifies it with a ping.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{DB: db}, nil
}

// ===== USER METHODS =====

// RegisterUser inserts a new user and returns its UID.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"

	query := `INSERT INTO users (uid, email, display_name, password_hash, role, profile_completed)
			  VALUES ($1, lower($2), $3, $4, $5, $6)
			  RETURNING uid`
	var uid string
	err := s.DB.QueryRowContext(ctx, query,
		user.UID, user.Email, user.DisplayName, user.PasswordHash,
		user.Role, user.ProfileCompleted).Scan(&uid)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return uid, nil
}

// GetUserByEmail returns the user with the given email, case-insensitive.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"

	query := `SELECT uid, email, display_name, password_hash, role, profile_completed,
			         reset_token, reset_expires_at, created_at
			  FROM users WHERE email = lower($1)`
	var user models.User
	err := s.DB.QueryRowContext(ctx, query, email).Scan(
		&user.UID, &user.Email, &user.DisplayName, &user.PasswordHash,
		&user.Role, &user.ProfileCompleted, &user.ResetToken,
		&user.ResetExpiresAt, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// GetUserByUID returns the user with the given UID.
func (s *Storage) GetUserByUID(ctx context.Context, uid string) (*models.User, error) {
	const op = "storage.GetUserByUID"

	query := `SELECT uid, email, display_name, password_hash, role, profile_completed,
			         reset_token, reset_expires_at, created_at
			  FROM users WHERE uid = $1`
	var user models.User
	err := s.DB.QueryRowContext(ctx, query, uid).Scan(
		&user.UID, &user.Email, &user.DisplayName, &user.PasswordHash,
		&user.Role, &user.ProfileCompleted, &user.ResetToken,
		&user.ResetExpiresAt, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// UpdateProfile stores the profile fields and the completion flag.
func (s *Storage) UpdateProfile(ctx context.Context, uid, displayName string, profileCompleted bool) error {
	const op = "storage.UpdateProfile"

	query := `UPDATE users SET display_name = $2, profile_completed = $3 WHERE uid = $1`
	res, err := s.DB.ExecContext(ctx, query, uid, displayName, profileCompleted)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// SetResetToken stores a pending password-reset token with its expiry.
func (s *Storage) SetResetToken(ctx context.Context, uid, token string, expiresAt time.Time) error {
	const op = "storage.SetResetToken"

	query := `UPDATE users SET reset_token = $2, reset_expires_at = $3 WHERE uid = $1`
	if _, err := s.DB.ExecContext(ctx, query, uid, token, expiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetUserByResetToken returns the user holding an unexpired reset token.
func (s *Storage) GetUserByResetToken(ctx context.Context, token string) (*models.User, error) {
	const op = "storage.GetUserByResetToken"

	query := `SELECT uid, email, display_name, password_hash, role, profile_completed,
			         reset_token, reset_expires_at, created_at
			  FROM users WHERE reset_token = $1 AND reset_expires_at > now()`
	var user models.User
	err := s.DB.QueryRowContext(ctx, query, token).Scan(
		&user.UID, &user.Email, &user.DisplayName, &user.PasswordHash,
		&user.Role, &user.ProfileCompleted, &user.ResetToken,
		&user.ResetExpiresAt, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// UpdatePassword replaces the password hash and clears any reset token.
func (s *Storage) UpdatePassword(ctx context.Context, uid, passwordHash string) error {
	const op = "storage.UpdatePassword"

	query := `UPDATE users SET password_hash = $2, reset_token = NULL, reset_expires_at = NULL
			  WHERE uid = $1`
	res, err := s.DB.ExecContext(ctx, query, uid, passwordHash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// ===== PAYMENT ORDER METHODS =====

// CreateOrder records a new checkout attempt.
func (s *Storage) CreateOrder(ctx context.Context, order models.PaymentOrder) error {
	const op = "storage.CreateOrder"

	query := `INSERT INTO payment_orders
			      (order_id, user_uid, amount_paise, currency, description, service_type, receipt, status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.DB.ExecContext(ctx, query,
		order.OrderID, order.UserUID, order.AmountPaise, order.Currency,
		order.Description, order.ServiceType, order.Receipt, order.Status)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetOrder returns the checkout attempt with the given provider order id.
func (s *Storage) GetOrder(ctx context.Context, orderID string) (*models.PaymentOrder, error) {
	const op = "storage.GetOrder"

	query := `SELECT order_id, user_uid, amount_paise, currency, description,
			         service_type, receipt, status, COALESCE(payment_id, ''), created_at
			  FROM payment_orders WHERE order_id = $1`
	var order models.PaymentOrder
	err := s.DB.QueryRowContext(ctx, query, orderID).Scan(
		&order.OrderID, &order.UserUID, &order.AmountPaise, &order.Currency,
		&order.Description, &order.ServiceType, &order.Receipt, &order.Status,
		&order.PaymentID, &order.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &order, nil
}

// MarkOrderStatus updates the status (and optionally the payment id) of a
// checkout attempt.
func (s *Storage) MarkOrderStatus(ctx context.Context, orderID, status, paymentID string) error {
	const op = "storage.MarkOrderStatus"

	query := `UPDATE payment_orders SET status = $2, payment_id = NULLIF($3, '')
			  WHERE order_id = $1`
	res, err := s.DB.ExecContext(ctx, query, orderID, status, paymentID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// ===== SUBSCRIPTION METHODS =====

// UpsertSubscription stores the authoritative subscription row for a user.
func (s *Storage) UpsertSubscription(ctx context.Context, userUID string, sub models.Subscription) error {
	const op = "storage.UpsertSubscription"

	query := `INSERT INTO subscriptions (user_uid, plan_id, subscribed_at, expires_at, payment_id, order_id, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (user_uid) DO UPDATE SET
			      plan_id = EXCLUDED.plan_id,
			      subscribed_at = EXCLUDED.subscribed_at,
			      expires_at = EXCLUDED.expires_at,
			      payment_id = EXCLUDED.payment_id,
			      order_id = EXCLUDED.order_id,
			      is_active = EXCLUDED.is_active`
	_, err := s.DB.ExecContext(ctx, query,
		userUID, sub.PlanID, sub.SubscribedAt, sub.ExpiresAt,
		sub.PaymentID, sub.OrderID, sub.Active)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetSubscriptionByUserUID returns the subscription row for a user, or
// ErrNotFound when the user never purchased one.
func (s *Storage) GetSubscriptionByUserUID(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByUserUID"

	query := `SELECT plan_id, subscribed_at, expires_at, COALESCE(payment_id, ''),
			         COALESCE(order_id, ''), is_active
			  FROM subscriptions WHERE user_uid = $1`
	var sub models.Subscription
	err := s.DB.QueryRowContext(ctx, query, userUID).Scan(
		&sub.PlanID, &sub.SubscribedAt, &sub.ExpiresAt,
		&sub.PaymentID, &sub.OrderID, &sub.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &sub, nil
}

// ExpireLapsedSubscriptions flips is_active off for rows whose expiry has
// passed and returns the number of rows touched.
func (s *Storage) ExpireLapsedSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.ExpireLapsedSubscriptions"

	query := `UPDATE subscriptions SET is_active = false
			  WHERE is_active = true AND expires_at <= $1`
	res, err := s.DB.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// ===== ENTITLEMENT METHODS =====

// UpsertEntitlement stores the second-opinion entitlement row for a user.
func (s *Storage) UpsertEntitlement(ctx context.Context, userUID string, ent models.Entitlement) error {
	const op = "storage.UpsertEntitlement"

	query := `INSERT INTO entitlements (user_uid, entitlement_id, source, is_active, activated_at)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (user_uid) DO UPDATE SET
			      entitlement_id = EXCLUDED.entitlement_id,
			      source = EXCLUDED.source,
			      is_active = EXCLUDED.is_active,
			      activated_at = EXCLUDED.activated_at`
	_, err := s.DB.ExecContext(ctx, query,
		userUID, ent.EntitlementID, ent.Source, ent.Active, ent.ActivatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetEntitlement returns the second-opinion entitlement row for a user.
func (s *Storage) GetEntitlement(ctx context.Context, userUID string) (*models.Entitlement, error) {
	const op = "storage.GetEntitlement"

	query := `SELECT entitlement_id, source, is_active, activated_at
			  FROM entitlements WHERE user_uid = $1`
	var ent models.Entitlement
	err := s.DB.QueryRowContext(ctx, query, userUID).Scan(
		&ent.EntitlementID, &ent.Source, &ent.Active, &ent.ActivatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &ent, nil
}
