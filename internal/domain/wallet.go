package domain

import "time"

// Wallet Model, one per (user, community)
type Wallet struct {
	ID          uint      `gorm:"primaryKey" json:"-"`                                                          // Primary key
	UserID      string    `gorm:"size:64;not null;uniqueIndex:idx_wallet_owner,priority:1" json:"user_id"`      // Owner
	CommunityID string    `gorm:"size:64;not null;uniqueIndex:idx_wallet_owner,priority:2" json:"community_id"` // Community scope
	Balance     int64     `gorm:"not null;default:0" json:"balance"`                                            // Wallet balance in smallest unit, never negative
	Version     uint      `gorm:"not null;default:0" json:"version"`                                            // Bumped on every delta
	UpdatedAt   time.Time `json:"updated_at"`                                                                   // Last mutation
}
