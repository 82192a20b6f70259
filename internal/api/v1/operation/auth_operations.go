package operation

import "app/internal/api/v1/dto"

type RequestMagicLinkInput struct {
	Body dto.MagicLinkRequestDTO `json:"body"`
}

type RequestMagicLinkOutput struct {
	Body dto.MagicLinkResponseDTO `json:"body"`
}

type VerifyMagicLinkInput struct {
	Body dto.VerifyLinkRequestDTO `json:"body"`
}

type VerifyMagicLinkOutput struct {
	Body dto.SessionResponseDTO `json:"body"`
}

type CheckoutInput struct {
	Body dto.CheckoutRequestDTO `json:"body"`
}

type CheckoutOutput struct {
	Body dto.CheckoutResponseDTO `json:"body"`
}
