package handler

import (
	"context"
	"io"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/api/v1/operation"
	"app/internal/ratelimit"
	"app/internal/service"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

// BillingHandler exposes credit-pack checkout and the Stripe webhook.
type BillingHandler struct {
	paymentService *service.PaymentService
	limiter        *ratelimit.Limiter
	logger         zerolog.Logger
}

func NewBillingHandler(paymentService *service.PaymentService, limiter *ratelimit.Limiter, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{
		paymentService: paymentService,
		limiter:        limiter,
		logger:         logger,
	}
}

// CreateCheckout returns a hosted checkout URL for a credit pack.
func (h *BillingHandler) CreateCheckout(ctx context.Context, input *operation.CheckoutInput) (*operation.CheckoutOutput, error) {
	accountID, err := accountFromContext(ctx)
	if err != nil {
		return nil, err
	}

	url, err := h.paymentService.CreateCheckoutSession(ctx, accountID, input.Body.Pack)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to create checkout session", err)
	}

	return &operation.CheckoutOutput{
		Body: dto.CheckoutResponseDTO{CheckoutURL: url},
	}, nil
}

// StripeWebhook is mounted as a raw handler: signature verification needs
// the exact request body bytes, which the typed API layer would consume.
func (h *BillingHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Failed to read payload", http.StatusBadRequest)
		return
	}

	if err := h.paymentService.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.logger.Error().Err(err).Msg("Webhook processing failed")
		// Non-2xx makes Stripe retry the delivery.
		http.Error(w, "Webhook processing failed", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}
