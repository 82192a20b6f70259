package model

// Status is the caller-facing outcome of one analysis request. The API
// layer maps these to transport status codes; the pipeline never downgrades
// one terminal state into another.
type Status string

const (
	StatusOK                   Status = "OK"
	StatusRateLimited          Status = "RATE_LIMITED"
	StatusUnauthenticated      Status = "UNAUTHENTICATED"
	StatusInsufficientCredits  Status = "INSUFFICIENT_CREDITS"
	StatusPreviewAlreadyUsed   Status = "PREVIEW_ALREADY_USED"
	StatusDailyCapReached      Status = "DAILY_CAP_REACHED"
	StatusAddressNotResolvable Status = "ADDRESS_NOT_RESOLVABLE"
	StatusProviderError        Status = "PROVIDER_ERROR"
	StatusInternalError        Status = "INTERNAL_ERROR"
)

// AnalysisRequest is one "analyze this address" invocation. AccountID is
// empty for anonymous callers, who go through the free preview guard.
type AnalysisRequest struct {
	Address     string
	Bedrooms    int
	Bathrooms   float64
	AccountID   string
	NetworkID   string
	Fingerprint string
}

// AnalysisResult is the terminal state of one pipeline invocation.
type AnalysisResult struct {
	Status           Status      `json:"status"`
	Data             *MarketData `json:"data,omitempty"`
	FromCache        bool        `json:"from_cache"`
	CreditsRemaining *int        `json:"credits_remaining,omitempty"`
	RetryInSeconds   int         `json:"retry_in_seconds,omitempty"`
}
