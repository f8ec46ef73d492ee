package domain

import "gorm.io/datatypes"

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	EntrySpend      EntryKind = "spend"       // Vote or poll cast
	EntryWithdraw   EntryKind = "withdraw"    // Withdrawal from an entity
	EntryInvest     EntryKind = "invest"      // Investment into a publication
	EntryQuotaReset EntryKind = "quota_reset" // Administrative quota reset
)

// LedgerEntry Model, append-only record of every committed value movement
type LedgerEntry struct {
	ID              string         `gorm:"primaryKey;size:64" json:"id"`                 // TypeID, sortable by creation
	IdempotencyKey  *string        `gorm:"size:128;uniqueIndex" json:"idempotency_key"`  // Caller supplied key, nullable
	Kind            EntryKind      `gorm:"size:32;not null;index" json:"kind"`           // Entry kind
	ActorID         string         `gorm:"size:64;not null;index" json:"actor_id"`       // Who acted
	CommunityID     string         `gorm:"size:64;not null;index" json:"community_id"`   // Community scope
	TargetType      TargetType     `gorm:"size:32" json:"target_type,omitempty"`         // Target entity type
	TargetID        string         `gorm:"size:64" json:"target_id,omitempty"`           // Target entity
	RequestedAmount int64          `gorm:"not null" json:"requested_amount"`             // Signed amount as requested
	VotingMode      VotingMode     `gorm:"size:32" json:"voting_mode,omitempty"`         // Effective voting mode
	QuotaAmount     int64          `gorm:"not null;default:0" json:"quota_amount"`       // Drawn from quota
	WalletAmount    int64          `gorm:"not null;default:0" json:"wallet_amount"`      // Drawn from or credited to wallets
	Details         datatypes.JSON `gorm:"type:json" json:"details,omitempty"`           // Kind specific payload, e.g. the withdrawal split
	CreatedAt       int64          `gorm:"autoCreateTime:milli;index" json:"created_at"` // Timestamp of creation in milliseconds
}

// LedgerFilter narrows ledger listings.
type LedgerFilter struct {
	UserID   string    // Entries acted by this user
	Kind     EntryKind // Entries of this kind
	Page     int       // 1-based page
	PageSize int       // Entries per page
}
