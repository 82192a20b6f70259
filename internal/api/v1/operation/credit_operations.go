package operation

import "app/internal/api/v1/dto"

type GetBalanceInput struct {
	// No input needed - account comes from auth context
}

type GetBalanceOutput struct {
	Body dto.BalanceResponseDTO `json:"body"`
}

type AddCreditsInput struct {
	Body dto.AddCreditsRequestDTO `json:"body"`
}

type AddCreditsOutput struct {
	Body dto.AddCreditsResponseDTO `json:"body"`
}

type ListTransactionsInput struct {
	Limit int `query:"limit" default:"20" minimum:"1" maximum:"200" doc:"Number of audit records to return"`
}

type ListTransactionsOutput struct {
	Body dto.TransactionsResponseDTO `json:"body"`
}
