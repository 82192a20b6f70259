package dto

import "app/internal/model"

type AnalyzeRequestDTO struct {
	Address     string  `json:"address" required:"true" minLength:"3" validate:"required,min=3" doc:"Postal address of the property to analyze"`
	Bedrooms    int     `json:"bedrooms,omitempty" minimum:"0" maximum:"20" validate:"gte=0,lte=20" doc:"Bedroom count used for comparable matching"`
	Bathrooms   float64 `json:"bathrooms,omitempty" minimum:"0" maximum:"20" validate:"gte=0,lte=20" doc:"Bathroom count used for comparable matching"`
	Fingerprint string  `json:"fingerprint,omitempty" doc:"Opaque client fingerprint recorded with free previews"`
}

type AnalyzeResponseDTO struct {
	Status           string            `json:"status" doc:"Terminal pipeline status, OK on success"`
	Data             *model.MarketData `json:"data,omitempty"`
	FromCache        bool              `json:"from_cache"`
	CreditsRemaining *int              `json:"credits_remaining,omitempty"`
}
