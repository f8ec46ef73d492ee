package domain

// Community Model, carries the economic policy of a community
type Community struct {
	ID              string     `gorm:"primaryKey;size:64" json:"id"`               // Community ID
	DailyAllowance  int64      `gorm:"not null;default:0" json:"daily_allowance"`  // Quota granted per period
	StartingBalance int64      `gorm:"not null;default:0" json:"starting_balance"` // Balance of a freshly created wallet
	VotingMode      VotingMode `gorm:"size:32;not null" json:"voting_mode"`        // Default voting mode
}

// Membership Model, the role a user holds inside a community
type Membership struct {
	ID          uint   `gorm:"primaryKey" json:"-"`                                                    // Primary key
	UserID      string `gorm:"size:64;not null;uniqueIndex:idx_member,priority:1" json:"user_id"`      // Member
	CommunityID string `gorm:"size:64;not null;uniqueIndex:idx_member,priority:2" json:"community_id"` // Community
	Role        Role   `gorm:"size:32;not null" json:"role"`                                           // Role within the community
	TeamID      string `gorm:"size:64" json:"team_id,omitempty"`                                       // Team the member belongs to, if any
}
