package domain

import "time"

// Entity Model, a publication, vote or poll that accumulates merit
type Entity struct {
	ID                   string     `gorm:"primaryKey;size:64" json:"id"`                     // Entity ID
	Type                 TargetType `gorm:"primaryKey;size:32" json:"type"`                   // Entity type
	CommunityID          string     `gorm:"size:64;not null;index" json:"community_id"`       // Owning community
	AuthorID             string     `gorm:"size:64;not null" json:"author_id"`                // Author
	BeneficiaryID        string     `gorm:"size:64" json:"beneficiary_id,omitempty"`          // Receives merit on behalf of the author, if set
	TeamID               string     `gorm:"size:64" json:"team_id,omitempty"`                 // Team the entity belongs to
	Balance              int64      `gorm:"not null;default:0" json:"balance"`                // Accumulated merit, may be negative
	InvestorSharePercent int        `gorm:"not null;default:0" json:"investor_share_percent"` // Share of withdrawals owed to investors
}

// Payee returns the user a withdrawal credits before investor redistribution.
func (e Entity) Payee() string {
	if e.BeneficiaryID != "" {
		return e.BeneficiaryID
	}
	return e.AuthorID
}

// OwnedBy reports whether userID authored or benefits from the entity.
func (e Entity) OwnedBy(userID string) bool {
	return e.AuthorID == userID || (e.BeneficiaryID != "" && e.BeneficiaryID == userID)
}

// Investment Model, principal an investor put into a publication
type Investment struct {
	ID            uint      `gorm:"primaryKey" json:"-"`                                                          // Primary key
	PublicationID string    `gorm:"size:64;not null;uniqueIndex:idx_investment,priority:1" json:"publication_id"` // Publication
	InvestorID    string    `gorm:"size:64;not null;uniqueIndex:idx_investment,priority:2" json:"investor_id"`    // Investor
	Amount        int64     `gorm:"not null" json:"amount"`                                                       // Contributed principal, > 0
	CreatedAt     time.Time `json:"created_at"`                                                                   // First investment
	UpdatedAt     time.Time `json:"updated_at"`                                                                   // Last top-up
}

// Payout is one investor's part of a withdrawal.
type Payout struct {
	InvestorID string `json:"investor_id"`
	Amount     int64  `json:"amount"`
}

// WithdrawalSplit divides a withdrawn amount between author and investors.
type WithdrawalSplit struct {
	WithdrawnAmount int64    `json:"withdrawn_amount"`
	InvestorTotal   int64    `json:"investor_total"`
	AuthorAmount    int64    `json:"author_amount"`
	PerInvestor     []Payout `json:"per_investor"`
}
