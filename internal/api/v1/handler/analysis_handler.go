package handler

import (
	"context"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/api/v1/operation"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// AnalysisHandler implements Huma-based analysis operations
type AnalysisHandler struct {
	analysisService service.AnalysisService
	validate        *validator.Validate
	logger          zerolog.Logger
}

func NewAnalysisHandler(analysisService service.AnalysisService, validate *validator.Validate, logger zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
		validate:        validate,
		logger:          logger,
	}
}

// Analyze runs the metered analysis pipeline for one address. Anonymous
// callers go through the free preview guard; authenticated callers spend a
// credit, refunded on cache hits.
func (h *AnalysisHandler) Analyze(ctx context.Context, input *operation.AnalyzeInput) (*operation.AnalyzeOutput, error) {
	if err := h.validate.Struct(&input.Body); err != nil {
		return nil, huma.Error422UnprocessableEntity("Invalid analysis request", err)
	}

	req := model.AnalysisRequest{
		Address:     input.Body.Address,
		Bedrooms:    input.Body.Bedrooms,
		Bathrooms:   input.Body.Bathrooms,
		AccountID:   middleware.AccountID(ctx),
		NetworkID:   middleware.NetworkID(ctx),
		Fingerprint: input.Body.Fingerprint,
	}

	result := h.analysisService.Analyze(ctx, req)
	if result.Status != model.StatusOK {
		return nil, statusError(result)
	}

	return &operation.AnalyzeOutput{
		Body: dto.AnalyzeResponseDTO{
			Status:           string(result.Status),
			Data:             result.Data,
			FromCache:        result.FromCache,
			CreditsRemaining: result.CreditsRemaining,
		},
	}, nil
}

// Health reports service liveness.
func (h *AnalysisHandler) Health(ctx context.Context, input *operation.HealthInput) (*operation.HealthOutput, error) {
	out := &operation.HealthOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// statusError maps a terminal pipeline status to a transport error. Every
// status keeps its distinct, actionable message; none downgrades into
// another.
func statusError(result *model.AnalysisResult) error {
	switch result.Status {
	case model.StatusRateLimited:
		return huma.Error429TooManyRequests("Too many requests, retry later")
	case model.StatusUnauthenticated:
		return huma.Error401Unauthorized("Sign in to analyze properties")
	case model.StatusInsufficientCredits:
		return huma.NewError(http.StatusPaymentRequired, "No analysis credits remaining, purchase a credit pack to continue")
	case model.StatusPreviewAlreadyUsed:
		return huma.Error409Conflict("Free preview already used from this network, sign in to continue")
	case model.StatusDailyCapReached:
		return huma.Error429TooManyRequests("Free previews are exhausted for today, try again tomorrow or sign in")
	case model.StatusAddressNotResolvable:
		return huma.Error422UnprocessableEntity("Could not locate that address, include city and state and try again")
	case model.StatusProviderError:
		return huma.NewError(http.StatusBadGateway, "Market data is temporarily unavailable, no credit was charged")
	default:
		return huma.Error500InternalServerError("Analysis failed")
	}
}
