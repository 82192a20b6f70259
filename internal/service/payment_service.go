package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"app/internal/config"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// PaymentService creates Stripe checkout sessions for credit packages and
// fulfills completed purchases through the ledger's privileged add path.
type PaymentService struct {
	cfg     *config.Config
	credits CreditService
	logger  zerolog.Logger
}

// NewPaymentService initializes the Stripe key and returns the service.
func NewPaymentService(cfg *config.Config, credits CreditService, logger zerolog.Logger) *PaymentService {
	stripe.Key = cfg.StripeSecretKey
	return &PaymentService{
		cfg:     cfg,
		credits: credits,
		logger:  logger.With().Str("service", "PaymentService").Logger(),
	}
}

// packPrice maps a credit package name to its Stripe price and credit count.
func (s *PaymentService) packPrice(pack string) (priceID string, credits int, err error) {
	switch pack {
	case "starter":
		return s.cfg.StripePriceStarter, s.cfg.CreditPackStarter, nil
	case "pro":
		return s.cfg.StripePricePro, s.cfg.CreditPackPro, nil
	default:
		return "", 0, fmt.Errorf("invalid credit pack: %s", pack)
	}
}

// CreateCheckoutSession returns the hosted checkout URL for a credit pack.
func (s *PaymentService) CreateCheckoutSession(ctx context.Context, accountID, pack string) (string, error) {
	priceID, credits, err := s.packPrice(pack)
	if err != nil {
		return "", err
	}
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.cfg.CheckoutSuccessURL),
		CancelURL:  stripe.String(s.cfg.CheckoutCancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		CustomerEmail: stripe.String(accountID),
		Metadata: map[string]string{
			"account_id": accountID,
			"pack":       pack,
			"credits":    strconv.Itoa(credits),
		},
	}
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Str("pack", pack).Msg("Failed to create checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// HandleWebhook verifies a Stripe event signature and fulfills completed
// checkouts. Fulfillment is idempotent from Stripe's side: the ledger write
// either commits with its audit row or the whole event fails and Stripe
// retries the delivery.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.cfg.StripeWebhookSecret)
	if err != nil {
		return fmt.Errorf("verifying webhook signature: %w", err)
	}

	if event.Type != "checkout.session.completed" {
		s.logger.Debug().Str("type", string(event.Type)).Msg("Ignoring webhook event")
		return nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("unmarshaling checkout session: %w", err)
	}

	accountID := sess.Metadata["account_id"]
	credits, convErr := strconv.Atoi(sess.Metadata["credits"])
	if accountID == "" || convErr != nil || credits <= 0 {
		return fmt.Errorf("checkout session %s missing fulfillment metadata", sess.ID)
	}

	if _, err := s.credits.AddCredits(ctx, accountID, credits, repository.TransactionDetails{
		Reason:           fmt.Sprintf("credit pack purchase (%s)", sess.Metadata["pack"]),
		SourceIdentifier: "stripe:" + sess.ID,
	}); err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Str("session_id", sess.ID).Msg("Failed to fulfill credit purchase")
		return err
	}
	s.logger.Info().Str("account_id", accountID).Int("credits", credits).Msg("Credit purchase fulfilled")
	return nil
}
