package handler

import (
	"context"
	"errors"

	"app/internal/api/v1/dto"
	"app/internal/api/v1/operation"
	"app/internal/middleware"
	"app/internal/ratelimit"
	"app/internal/service"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

// AuthHandler implements Huma-based magic-link sign-in operations
type AuthHandler struct {
	authService service.AuthService
	limiter     *ratelimit.Limiter
	logger      zerolog.Logger
}

func NewAuthHandler(authService service.AuthService, limiter *ratelimit.Limiter, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		limiter:     limiter,
		logger:      logger,
	}
}

// RequestMagicLink issues a one-time sign-in link. The strict limiter table
// applies: auth flows are a favorite brute-force target.
func (h *AuthHandler) RequestMagicLink(ctx context.Context, input *operation.RequestMagicLinkInput) (*operation.RequestMagicLinkOutput, error) {
	rl := h.limiter.Check(ctx, "auth_magic_link", middleware.NetworkID(ctx), ratelimit.Strict)
	if !rl.Allowed {
		return nil, huma.Error429TooManyRequests("Too many sign-in attempts, retry later")
	}

	if err := h.authService.RequestLink(ctx, input.Body.Email); err != nil {
		// Do not leak whether the address exists; delivery problems are
		// logged server-side.
		h.logger.Error().Err(err).Msg("Failed to issue magic link")
	}
	return &operation.RequestMagicLinkOutput{
		Body: dto.MagicLinkResponseDTO{Sent: true},
	}, nil
}

// VerifyMagicLink exchanges a one-time token for a session.
func (h *AuthHandler) VerifyMagicLink(ctx context.Context, input *operation.VerifyMagicLinkInput) (*operation.VerifyMagicLinkOutput, error) {
	rl := h.limiter.Check(ctx, "auth_verify", middleware.NetworkID(ctx), ratelimit.Strict)
	if !rl.Allowed {
		return nil, huma.Error429TooManyRequests("Too many sign-in attempts, retry later")
	}

	session, accountID, err := h.authService.VerifyLink(ctx, input.Body.Token)
	if err != nil {
		if errors.Is(err, service.ErrInvalidMagicLink) {
			return nil, huma.Error401Unauthorized("Sign-in link is invalid or expired, request a new one")
		}
		return nil, huma.Error500InternalServerError("Failed to verify sign-in link", err)
	}

	return &operation.VerifyMagicLinkOutput{
		Body: dto.SessionResponseDTO{
			SessionToken: session,
			AccountID:    accountID,
		},
	}, nil
}
