package dto

type CheckoutRequestDTO struct {
	Pack string `json:"pack" required:"true" enum:"starter,pro" doc:"Credit package to purchase"`
}

type CheckoutResponseDTO struct {
	CheckoutURL string `json:"checkout_url"`
}
