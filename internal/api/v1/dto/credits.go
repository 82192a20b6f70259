package dto

import "time"

type BalanceResponseDTO struct {
	AccountID string `json:"account_id"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

type AddCreditsRequestDTO struct {
	AccountID string `json:"account_id" required:"true" format:"email" validate:"required,email" doc:"Account email to credit"`
	Amount    int    `json:"amount" required:"true" minimum:"1" maximum:"1000" validate:"required,gte=1,lte=1000" doc:"Credits to add"`
	Reason    string `json:"reason,omitempty" doc:"Audit reason, defaults to manual grant"`
}

type AddCreditsResponseDTO struct {
	AccountID string `json:"account_id"`
	NewLimit  int    `json:"new_limit"`
	Remaining int    `json:"remaining"`
}

type TransactionDTO struct {
	ID             string    `json:"id"`
	Action         string    `json:"action"`
	Amount         int       `json:"amount"`
	BalanceBefore  int       `json:"balance_before"`
	BalanceAfter   int       `json:"balance_after"`
	Reason         string    `json:"reason"`
	SubjectAddress string    `json:"subject_address,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type TransactionsResponseDTO struct {
	Transactions []TransactionDTO `json:"transactions"`
}
