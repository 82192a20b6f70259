package model

import "time"

// FreePreviewRecord marks a no-credit analysis granted to a network
// identifier. A network with any record is considered "used".
type FreePreviewRecord struct {
	NetworkID      string    `db:"network_id" json:"network_id"`
	SubjectAddress string    `db:"subject_address" json:"subject_address"`
	Fingerprint    string    `db:"fingerprint" json:"fingerprint"`
	UsedAt         time.Time `db:"used_at" json:"used_at"`
}
