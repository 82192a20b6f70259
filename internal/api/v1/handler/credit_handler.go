package handler

import (
	"context"
	"errors"

	"app/internal/api/v1/dto"
	"app/internal/api/v1/operation"
	"app/internal/middleware"
	"app/internal/ratelimit"
	"app/internal/repository"
	"app/internal/service"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// CreditHandler implements Huma-based credit ledger operations
type CreditHandler struct {
	creditService service.CreditService
	limiter       *ratelimit.Limiter
	validate      *validator.Validate
	logger        zerolog.Logger
}

func NewCreditHandler(creditService service.CreditService, limiter *ratelimit.Limiter, validate *validator.Validate, logger zerolog.Logger) *CreditHandler {
	return &CreditHandler{
		creditService: creditService,
		limiter:       limiter,
		validate:      validate,
		logger:        logger,
	}
}

// Helper to extract the account from context (injected by auth middleware)
func accountFromContext(ctx context.Context) (string, error) {
	accountID := middleware.AccountID(ctx)
	if accountID == "" {
		return "", huma.Error401Unauthorized("Account not found in context")
	}
	return accountID, nil
}

// GetBalance returns the authenticated account's credit balance.
func (h *CreditHandler) GetBalance(ctx context.Context, input *operation.GetBalanceInput) (*operation.GetBalanceOutput, error) {
	accountID, err := accountFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rl := h.limiter.Check(ctx, "credits_read", middleware.NetworkID(ctx), ratelimit.Relaxed)
	if !rl.Allowed {
		return nil, huma.Error429TooManyRequests("Too many requests, retry later")
	}

	account, err := h.creditService.GetBalance(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, huma.Error404NotFound("Account not found")
		}
		return nil, huma.Error500InternalServerError("Failed to get balance", err)
	}

	return &operation.GetBalanceOutput{
		Body: dto.BalanceResponseDTO{
			AccountID: account.AccountID,
			Used:      account.Used,
			Limit:     account.Limit,
			Remaining: account.Remaining(),
		},
	}, nil
}

// AddCredits is the privileged purchase-fulfillment endpoint, gated by the
// admin middleware upstream.
func (h *CreditHandler) AddCredits(ctx context.Context, input *operation.AddCreditsInput) (*operation.AddCreditsOutput, error) {
	rl := h.limiter.Check(ctx, "credits_add", middleware.NetworkID(ctx), ratelimit.Standard)
	if !rl.Allowed {
		return nil, huma.Error429TooManyRequests("Too many requests, retry later")
	}

	if err := h.validate.Struct(&input.Body); err != nil {
		return nil, huma.Error422UnprocessableEntity("Invalid add-credits request", err)
	}

	reason := input.Body.Reason
	if reason == "" {
		reason = "manual credit grant"
	}
	account, err := h.creditService.AddCredits(ctx, input.Body.AccountID, input.Body.Amount, repository.TransactionDetails{
		Reason:           reason,
		SourceIdentifier: middleware.NetworkID(ctx),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			return nil, huma.Error422UnprocessableEntity("Amount must be between 1 and 1000")
		case errors.Is(err, repository.ErrAccountNotFound):
			return nil, huma.Error404NotFound("Account not found")
		default:
			return nil, huma.Error500InternalServerError("Failed to add credits", err)
		}
	}

	return &operation.AddCreditsOutput{
		Body: dto.AddCreditsResponseDTO{
			AccountID: account.AccountID,
			NewLimit:  account.Limit,
			Remaining: account.Remaining(),
		},
	}, nil
}

// ListTransactions returns the account's newest audit records.
func (h *CreditHandler) ListTransactions(ctx context.Context, input *operation.ListTransactionsInput) (*operation.ListTransactionsOutput, error) {
	accountID, err := accountFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rl := h.limiter.Check(ctx, "credits_read", middleware.NetworkID(ctx), ratelimit.Relaxed)
	if !rl.Allowed {
		return nil, huma.Error429TooManyRequests("Too many requests, retry later")
	}

	txs, err := h.creditService.ListTransactions(ctx, accountID, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list transactions", err)
	}

	out := dto.TransactionsResponseDTO{Transactions: []dto.TransactionDTO{}}
	for _, t := range txs {
		out.Transactions = append(out.Transactions, dto.TransactionDTO{
			ID:             t.ID,
			Action:         t.Action,
			Amount:         t.Amount,
			BalanceBefore:  t.BalanceBefore,
			BalanceAfter:   t.BalanceAfter,
			Reason:         t.Reason,
			SubjectAddress: t.SubjectAddress,
			CreatedAt:      t.CreatedAt,
		})
	}
	return &operation.ListTransactionsOutput{Body: out}, nil
}
