package domain

import "time"

// Quota Model, the daily free allowance of a user inside a community
type Quota struct {
	ID             uint      `gorm:"primaryKey" json:"-"`                                                         // Primary key
	UserID         string    `gorm:"size:64;not null;uniqueIndex:idx_quota_owner,priority:1" json:"user_id"`      // Owner
	CommunityID    string    `gorm:"size:64;not null;uniqueIndex:idx_quota_owner,priority:2" json:"community_id"` // Community scope
	DailyAllowance int64     `gorm:"not null;default:0" json:"daily_allowance"`                                   // Allowance per period
	UsedToday      int64     `gorm:"not null;default:0" json:"used_today"`                                        // Spent in the current period
	LastResetAt    time.Time `gorm:"not null" json:"last_reset_at"`                                               // Start of the period UsedToday belongs to
	Version        uint      `gorm:"not null;default:0" json:"version"`                                           // Bumped on every write
}

// Stale reports whether UsedToday belongs to a period that ended before periodStart.
func (q Quota) Stale(periodStart time.Time) bool {
	return q.LastResetAt.Before(periodStart)
}

// Used returns the amount spent in the period starting at periodStart.
func (q Quota) Used(periodStart time.Time) int64 {
	if q.Stale(periodStart) {
		return 0
	}
	return q.UsedToday
}

// Remaining returns max(0, DailyAllowance - used) for the period starting at periodStart.
func (q Quota) Remaining(periodStart time.Time) int64 {
	left := q.DailyAllowance - q.Used(periodStart)
	if left < 0 {
		return 0
	}
	return left
}

// QuotaStatus is the read model returned to callers.
type QuotaStatus struct {
	Remaining   int64     `json:"remaining"`     // Left for today
	Allowance   int64     `json:"allowance"`     // Daily allowance
	UsedToday   int64     `json:"used_today"`    // Spent today
	LastResetAt time.Time `json:"last_reset_at"` // Start of the tracked period
}
