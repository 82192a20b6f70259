package model

import "time"

// Transaction actions recorded in the credit audit trail.
const (
	CreditActionDeduct      = "deduct"
	CreditActionRefund      = "refund"
	CreditActionAdd         = "add"
	CreditActionFreePreview = "free_preview"
)

// CreditAccount holds an email-identified analysis credit balance.
// Accounts are created on the first signed-in action and never deleted.
type CreditAccount struct {
	AccountID string    `db:"account_id" json:"account_id"`
	Used      int       `db:"used" json:"used"`
	Limit     int       `db:"credit_limit" json:"limit"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Remaining returns the credits still available to the account.
func (a *CreditAccount) Remaining() int {
	return a.Limit - a.Used
}

// CreditTransaction is one append-only audit record. Rows are immutable
// once written; retention and export are external concerns.
type CreditTransaction struct {
	ID               string    `db:"id" json:"id"`
	AccountID        string    `db:"account_id" json:"account_id"`
	Action           string    `db:"action" json:"action"`
	Amount           int       `db:"amount" json:"amount"`
	BalanceBefore    int       `db:"balance_before" json:"balance_before"`
	BalanceAfter     int       `db:"balance_after" json:"balance_after"`
	Reason           string    `db:"reason" json:"reason"`
	SourceIdentifier string    `db:"source_identifier" json:"source_identifier"`
	SubjectAddress   string    `db:"subject_address" json:"subject_address,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
