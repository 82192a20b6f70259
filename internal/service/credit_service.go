package service

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"
	"app/internal/repository"
	"app/internal/util"

	"github.com/rs/zerolog"
)

// MaxCreditsPerAdd bounds a single privileged add-credits call.
const MaxCreditsPerAdd = 1000

// ErrInvalidAmount is returned when an add-credits amount is out of range.
var ErrInvalidAmount = errors.New("invalid_amount")

// CreditService is the metering ledger for paid analyses. Balances only
// change through these operations, and every change writes one audit record.
type CreditService interface {
	// EnsureAccount creates the account on first signed-in action.
	EnsureAccount(ctx context.Context, accountID string) (*model.CreditAccount, error)
	GetBalance(ctx context.Context, accountID string) (*model.CreditAccount, error)
	// Deduct consumes one credit for a fresh analysis.
	Deduct(ctx context.Context, accountID string, d repository.TransactionDetails) (*model.CreditAccount, error)
	// Refund returns one credit, used when a cache hit made a charged
	// analysis free or a provider failure voided it.
	Refund(ctx context.Context, accountID string, d repository.TransactionDetails) (*model.CreditAccount, error)
	// AddCredits is the privileged purchase-fulfillment path. The caller is
	// responsible for enforcing the administrative credential.
	AddCredits(ctx context.Context, accountID string, amount int, d repository.TransactionDetails) (*model.CreditAccount, error)
	ListTransactions(ctx context.Context, accountID string, limit int) ([]model.CreditTransaction, error)
}

type creditService struct {
	repo          repository.CreditRepository
	signupCredits int
	logger        zerolog.Logger
}

// NewCreditService creates a new CreditService.
func NewCreditService(repo repository.CreditRepository, signupCredits int, logger zerolog.Logger) CreditService {
	return &creditService{
		repo:          repo,
		signupCredits: signupCredits,
		logger:        logger.With().Str("service", "CreditService").Logger(),
	}
}

func (s *creditService) EnsureAccount(ctx context.Context, accountID string) (*model.CreditAccount, error) {
	account, err := s.repo.UpsertAccount(ctx, util.NormalizeEmail(accountID), s.signupCredits)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Msg("Failed to upsert account")
		return nil, err
	}
	return account, nil
}

func (s *creditService) GetBalance(ctx context.Context, accountID string) (*model.CreditAccount, error) {
	account, err := s.repo.GetAccount(ctx, util.NormalizeEmail(accountID))
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Msg("Failed to get account")
		return nil, err
	}
	if account == nil {
		return nil, repository.ErrAccountNotFound
	}
	return account, nil
}

func (s *creditService) Deduct(ctx context.Context, accountID string, d repository.TransactionDetails) (*model.CreditAccount, error) {
	account, err := s.repo.Deduct(ctx, util.NormalizeEmail(accountID), 1, d)
	if err != nil {
		// Entitlement outcomes are expected business results, not failures.
		if errors.Is(err, repository.ErrInsufficientCredits) || errors.Is(err, repository.ErrAccountNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("account_id", accountID).Msg("Failed to deduct credit")
		return nil, err
	}
	return account, nil
}

func (s *creditService) Refund(ctx context.Context, accountID string, d repository.TransactionDetails) (*model.CreditAccount, error) {
	account, err := s.repo.Refund(ctx, util.NormalizeEmail(accountID), 1, d)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Msg("Failed to refund credit")
		return nil, err
	}
	return account, nil
}

func (s *creditService) AddCredits(ctx context.Context, accountID string, amount int, d repository.TransactionDetails) (*model.CreditAccount, error) {
	if amount <= 0 || amount > MaxCreditsPerAdd {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	account, err := s.repo.AddCredits(ctx, util.NormalizeEmail(accountID), amount, d)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("account_id", accountID).Int("amount", amount).Msg("Failed to add credits")
		return nil, err
	}
	s.logger.Info().Str("account_id", account.AccountID).Int("amount", amount).Int("new_limit", account.Limit).Msg("Credits added")
	return account, nil
}

func (s *creditService) ListTransactions(ctx context.Context, accountID string, limit int) ([]model.CreditTransaction, error) {
	txs, err := s.repo.ListTransactions(ctx, util.NormalizeEmail(accountID), limit)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Msg("Failed to list transactions")
		return nil, err
	}
	return txs, nil
}
