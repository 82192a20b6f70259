package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAccountNotFound is returned when a ledger operation targets an unknown account.
var ErrAccountNotFound = errors.New("account_not_found")

// ErrInsufficientCredits is returned when a deduct would take remaining below zero.
var ErrInsufficientCredits = errors.New("insufficient_credits")

// TransactionDetails carries the audit fields for one balance change.
type TransactionDetails struct {
	Reason           string
	SourceIdentifier string
	SubjectAddress   string
}

// CreditRepository persists credit balances and their append-only audit
// trail. Every balance change and its transaction row commit as one unit.
type CreditRepository interface {
	// GetAccount retrieves an account by its normalized email, or nil when absent.
	GetAccount(ctx context.Context, accountID string) (*model.CreditAccount, error)
	// UpsertAccount creates the account with the signup credit limit if it
	// does not exist yet, and returns the current row either way.
	UpsertAccount(ctx context.Context, accountID string, signupCredits int) (*model.CreditAccount, error)
	// Deduct atomically consumes credits and writes the audit transaction.
	Deduct(ctx context.Context, accountID string, amount int, d TransactionDetails) (*model.CreditAccount, error)
	// Refund atomically returns credits, clamping used at zero, and writes
	// the audit transaction with the amount actually restored.
	Refund(ctx context.Context, accountID string, amount int, d TransactionDetails) (*model.CreditAccount, error)
	// AddCredits atomically raises the account limit and writes the audit transaction.
	AddCredits(ctx context.Context, accountID string, amount int, d TransactionDetails) (*model.CreditAccount, error)
	// InsertPreviewTransaction appends a free_preview audit record. Preview
	// grants have no account, so the row carries only the network identity.
	InsertPreviewTransaction(ctx context.Context, d TransactionDetails) error
	// ListTransactions returns the newest audit records for an account.
	ListTransactions(ctx context.Context, accountID string, limit int) ([]model.CreditTransaction, error)
}

type creditRepo struct {
	pool *pgxpool.Pool
}

// NewCreditRepo creates a new CreditRepository.
func NewCreditRepo(pool *pgxpool.Pool) CreditRepository {
	return &creditRepo{pool: pool}
}

func (r *creditRepo) GetAccount(ctx context.Context, accountID string) (*model.CreditAccount, error) {
	const q = `
		SELECT account_id, used, credit_limit, created_at, updated_at
		FROM credit_accounts
		WHERE account_id = $1
	`
	var a model.CreditAccount
	err := r.pool.QueryRow(ctx, q, accountID).Scan(
		&a.AccountID,
		&a.Used,
		&a.Limit,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting account %s: %w", accountID, err)
	}
	return &a, nil
}

func (r *creditRepo) UpsertAccount(ctx context.Context, accountID string, signupCredits int) (*model.CreditAccount, error) {
	const q = `
		INSERT INTO credit_accounts (account_id, used, credit_limit)
		VALUES ($1, 0, $2)
		ON CONFLICT (account_id) DO UPDATE SET updated_at = NOW()
		RETURNING account_id, used, credit_limit, created_at, updated_at
	`
	var a model.CreditAccount
	err := r.pool.QueryRow(ctx, q, accountID, signupCredits).Scan(
		&a.AccountID,
		&a.Used,
		&a.Limit,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting account %s: %w", accountID, err)
	}
	return &a, nil
}

// Deduct uses a conditional update so two concurrent analyses for the same
// account cannot both spend the last credit.
func (r *creditRepo) Deduct(ctx context.Context, accountID string, amount int, d TransactionDetails) (*model.CreditAccount, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting deduct transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const updateQ = `
		UPDATE credit_accounts
		SET used = used + $2, updated_at = NOW()
		WHERE account_id = $1 AND credit_limit - used >= $2
		RETURNING account_id, used, credit_limit, created_at, updated_at
	`
	var a model.CreditAccount
	err = tx.QueryRow(ctx, updateQ, accountID, amount).Scan(
		&a.AccountID,
		&a.Used,
		&a.Limit,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Disambiguate: missing account vs exhausted balance.
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM credit_accounts WHERE account_id = $1)`, accountID).Scan(&exists); err != nil {
				return nil, fmt.Errorf("checking account %s: %w", accountID, err)
			}
			if !exists {
				return nil, ErrAccountNotFound
			}
			return nil, ErrInsufficientCredits
		}
		return nil, fmt.Errorf("deducting %d from %s: %w", amount, accountID, err)
	}

	before := a.Remaining() + amount
	if err := insertTransaction(ctx, tx, accountID, model.CreditActionDeduct, amount, before, a.Remaining(), d); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing deduct for %s: %w", accountID, err)
	}
	return &a, nil
}

func (r *creditRepo) Refund(ctx context.Context, accountID string, amount int, d TransactionDetails) (*model.CreditAccount, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting refund transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Row lock so the before balance and the update come from one read.
	const lockQ = `
		SELECT used, credit_limit
		FROM credit_accounts
		WHERE account_id = $1
		FOR UPDATE
	`
	var used, limit int
	if err := tx.QueryRow(ctx, lockQ, accountID).Scan(&used, &limit); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("locking account %s for refund: %w", accountID, err)
	}

	// used never goes negative: a refund against a fully unspent account
	// restores nothing.
	restored := amount
	if restored > used {
		restored = used
	}

	const updateQ = `
		UPDATE credit_accounts
		SET used = used - $2, updated_at = NOW()
		WHERE account_id = $1
		RETURNING account_id, used, credit_limit, created_at, updated_at
	`
	var a model.CreditAccount
	err = tx.QueryRow(ctx, updateQ, accountID, restored).Scan(
		&a.AccountID,
		&a.Used,
		&a.Limit,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("refunding %d to %s: %w", restored, accountID, err)
	}

	before := limit - used
	if err := insertTransaction(ctx, tx, accountID, model.CreditActionRefund, restored, before, a.Remaining(), d); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing refund for %s: %w", accountID, err)
	}
	return &a, nil
}

func (r *creditRepo) AddCredits(ctx context.Context, accountID string, amount int, d TransactionDetails) (*model.CreditAccount, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting add-credits transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const updateQ = `
		UPDATE credit_accounts
		SET credit_limit = credit_limit + $2, updated_at = NOW()
		WHERE account_id = $1
		RETURNING account_id, used, credit_limit, created_at, updated_at
	`
	var a model.CreditAccount
	err = tx.QueryRow(ctx, updateQ, accountID, amount).Scan(
		&a.AccountID,
		&a.Used,
		&a.Limit,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("adding %d credits to %s: %w", amount, accountID, err)
	}

	before := a.Remaining() - amount
	if err := insertTransaction(ctx, tx, accountID, model.CreditActionAdd, amount, before, a.Remaining(), d); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing add-credits for %s: %w", accountID, err)
	}
	return &a, nil
}

func (r *creditRepo) InsertPreviewTransaction(ctx context.Context, d TransactionDetails) error {
	const q = `
		INSERT INTO credit_transactions
			(account_id, action, amount, balance_before, balance_after, reason, source_identifier, subject_address)
		VALUES ('', $1, 0, 0, 0, $2, $3, $4)
	`
	if _, err := r.pool.Exec(ctx, q, model.CreditActionFreePreview, d.Reason, d.SourceIdentifier, d.SubjectAddress); err != nil {
		return fmt.Errorf("recording free preview transaction: %w", err)
	}
	return nil
}

func (r *creditRepo) ListTransactions(ctx context.Context, accountID string, limit int) ([]model.CreditTransaction, error) {
	const q = `
		SELECT id, account_id, action, amount, balance_before, balance_after, reason, source_identifier, subject_address, created_at
		FROM credit_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, q, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying transactions for %s: %w", accountID, err)
	}
	defer rows.Close()

	var txs []model.CreditTransaction
	for rows.Next() {
		var t model.CreditTransaction
		if err := rows.Scan(
			&t.ID,
			&t.AccountID,
			&t.Action,
			&t.Amount,
			&t.BalanceBefore,
			&t.BalanceAfter,
			&t.Reason,
			&t.SourceIdentifier,
			&t.SubjectAddress,
			&t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning transaction row: %w", err)
		}
		txs = append(txs, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transaction rows: %w", err)
	}
	if len(txs) == 0 {
		return []model.CreditTransaction{}, nil
	}
	return txs, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, accountID, action string, amount, before, after int, d TransactionDetails) error {
	const q = `
		INSERT INTO credit_transactions
			(account_id, action, amount, balance_before, balance_after, reason, source_identifier, subject_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := tx.Exec(ctx, q, accountID, action, amount, before, after, d.Reason, d.SourceIdentifier, d.SubjectAddress); err != nil {
		return fmt.Errorf("recording %s transaction for %s: %w", action, accountID, err)
	}
	return nil
}
