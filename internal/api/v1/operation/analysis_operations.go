package operation

import "app/internal/api/v1/dto"

type AnalyzeInput struct {
	Body dto.AnalyzeRequestDTO `json:"body"`
}

type AnalyzeOutput struct {
	Body dto.AnalyzeResponseDTO `json:"body"`
}

type HealthInput struct {
	// No input
}

type HealthOutput struct {
	Body struct {
		Status string `json:"status"`
	} `json:"body"`
}
