package dto

type MagicLinkRequestDTO struct {
	Email string `json:"email" required:"true" format:"email" doc:"Address to send the sign-in link to"`
}

type MagicLinkResponseDTO struct {
	Sent bool `json:"sent"`
}

type VerifyLinkRequestDTO struct {
	Token string `json:"token" required:"true" minLength:"1" doc:"One-time token from the magic link"`
}

type SessionResponseDTO struct {
	SessionToken string `json:"session_token"`
	AccountID    string `json:"account_id"`
}
