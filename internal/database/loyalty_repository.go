package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
)

// LoyaltyRepository handles loyalty accounts and their ledger. Balances change
// only together with the ledger entry that explains them.
type LoyaltyRepository struct {
	db DB
}

// NewLoyaltyRepository creates a new LoyaltyRepository
func NewLoyaltyRepository(db DB) *LoyaltyRepository {
	return &LoyaltyRepository{db: db}
}

const loyaltyAccountColumns = `id, customer_id, total_points, lifetime_points, tier, created_at, updated_at`

// GetAccount returns the customer's account
func (r *LoyaltyRepository) GetAccount(ctx context.Context, customerID uuid.UUID) (*models.LoyaltyAccount, error) {
	var account models.LoyaltyAccount
	err := r.db.GetContext(ctx, &account,
		`SELECT `+loyaltyAccountColumns+` FROM loyalty_accounts WHERE customer_id = $1`, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "loyalty account", ID: customerID.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loyalty account: %w", err)
	}
	return &account, nil
}

// Debit removes points with one conditional decrement and writes the ledger
// entry in the same statement. Nothing changes when the balance is short.
func (r *LoyaltyRepository) Debit(ctx context.Context, debit models.PointsDebit) (*models.LoyaltyAccount, error) {
	if debit.Points <= 0 {
		return nil, &models.NonPositivePointsError{Requested: debit.Points}
	}

	query := `
		WITH acct AS (
			UPDATE loyalty_accounts
			SET total_points = total_points - $2::bigint, updated_at = $7
			WHERE customer_id = $1 AND total_points >= $2::bigint
			RETURNING ` + loyaltyAccountColumns + `
		),
		entry AS (
			INSERT INTO loyalty_transactions (id, account_id, type, points, description, booking_reference, created_at)
			SELECT $3, acct.id, $4, -($2::bigint), $5, $6, $7 FROM acct
		)
		SELECT ` + loyaltyAccountColumns + ` FROM acct`

	var account models.LoyaltyAccount
	err := r.db.GetContext(ctx, &account, query,
		debit.CustomerID, debit.Points, debit.TransactionID, debit.Type,
		debit.Description, debit.BookingReference, time.Now(),
	)
	if errors.Is(err, sql.ErrNoRows) {
		available := int64(0)
		current, getErr := r.GetAccount(ctx, debit.CustomerID)
		if getErr == nil {
			available = current.TotalPoints
		} else {
			var nf *models.NotFoundError
			if !errors.As(getErr, &nf) {
				return nil, getErr
			}
		}
		return nil, &models.InsufficientPointsError{Requested: debit.Points, Available: available}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to debit points: %w", err)
	}
	return &account, nil
}

// Credit adds points, opening the account in the base tier on first use. An
// earn already recorded for the booking reference is not applied twice; the
// bool reports whether the entry was written.
func (r *LoyaltyRepository) Credit(ctx context.Context, credit models.PointsCredit, tiers models.TierSchedule) (*models.LoyaltyAccount, bool, error) {
	var (
		account models.LoyaltyAccount
		applied bool
	)
	now := time.Now()

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO loyalty_accounts (id, customer_id, total_points, lifetime_points, tier, created_at, updated_at)
			VALUES ($1, $2, 0, 0, $3, $4, $4)
			ON CONFLICT (customer_id) DO NOTHING`,
			uuid.New(), credit.CustomerID, tiers.Base(), now)
		if err != nil {
			return fmt.Errorf("failed to open loyalty account: %w", err)
		}

		if err := tx.GetContext(ctx, &account,
			`SELECT `+loyaltyAccountColumns+` FROM loyalty_accounts WHERE customer_id = $1 FOR UPDATE`,
			credit.CustomerID); err != nil {
			return fmt.Errorf("failed to lock loyalty account: %w", err)
		}

		txn := models.LoyaltyTransaction{
			ID:               credit.TransactionID,
			AccountID:        account.ID,
			Type:             credit.Type,
			Points:           credit.Points,
			Description:      credit.Description,
			BookingReference: credit.BookingReference,
			CreatedAt:        now,
		}

		next := account
		if err := next.Apply(txn, tiers); err != nil {
			return err
		}

		// loyalty_earn_once_idx turns a repeated earn into a no-op
		result, err := tx.ExecContext(ctx, `
			INSERT INTO loyalty_transactions (id, account_id, type, points, description, booking_reference, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT DO NOTHING`,
			txn.ID, txn.AccountID, txn.Type, txn.Points, txn.Description, txn.BookingReference, txn.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to record loyalty transaction: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return nil
		}

		next.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, `
			UPDATE loyalty_accounts
			SET total_points = $2, lifetime_points = $3, tier = $4, updated_at = $5
			WHERE id = $1`,
			next.ID, next.TotalPoints, next.LifetimePoints, next.Tier, now); err != nil {
			return fmt.Errorf("failed to update loyalty account: %w", err)
		}

		account = next
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return &account, applied, nil
}

// ListTransactions returns the customer's ledger newest first
func (r *LoyaltyRepository) ListTransactions(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.LoyaltyTransaction, error) {
	query := `
		SELECT t.id, t.account_id, t.type, t.points, t.description, t.booking_reference, t.created_at
		FROM loyalty_transactions t
		JOIN loyalty_accounts a ON a.id = t.account_id
		WHERE a.customer_id = $1
		ORDER BY t.created_at DESC, t.id
		LIMIT $2 OFFSET $3`

	txns := []models.LoyaltyTransaction{}
	if err := r.db.SelectContext(ctx, &txns, query, customerID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list loyalty transactions: %w", err)
	}
	return txns, nil
}
