// Package store defines the Ledger Store: durable, transactional storage for
// wallets, quotas, permission rules, entities, investments and ledger entries.
//
// Every mutating method that can fail a business condition is a single
// conditional update and reports whether it applied. Callers combine them
// inside WithinTx when several records must change together.
package store

import (
	"context"
	"errors"
	"time"

	"merit_system/internal/domain"
)

// Store is implemented by gormstore (production) and memory (tests, local runs).
type Store interface {
	// WithinTx runs fn inside one transaction. If fn returns an error every
	// write made through tx is rolled back. Calls nested in a tx join it.
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	// Communities and memberships
	GetCommunity(ctx context.Context, communityID string) (*domain.Community, error)
	SaveCommunity(ctx context.Context, c *domain.Community) error
	GetMembership(ctx context.Context, userID, communityID string) (*domain.Membership, error)
	SaveMembership(ctx context.Context, m *domain.Membership) error

	// Wallets
	GetWallet(ctx context.Context, userID, communityID string) (*domain.Wallet, error)
	EnsureWallet(ctx context.Context, userID, communityID string, starting int64) (*domain.Wallet, error)
	DebitWallet(ctx context.Context, userID, communityID string, amount int64) (bool, error)  // applies only if balance >= amount
	CreditWallet(ctx context.Context, userID, communityID string, amount int64) (bool, error) // applies only if it cannot overflow

	// Quotas
	GetQuota(ctx context.Context, userID, communityID string) (*domain.Quota, error)
	EnsureQuota(ctx context.Context, userID, communityID string, allowance int64, now time.Time) (*domain.Quota, error)
	RollQuota(ctx context.Context, userID, communityID string, allowance int64, periodStart, now time.Time) (bool, error) // resets only if last reset < periodStart
	DebitQuota(ctx context.Context, userID, communityID string, amount int64) (bool, error)                               // applies only if used + amount <= allowance
	ResetQuotas(ctx context.Context, communityID, userID string, now time.Time) (int64, error)                            // empty userID resets the whole community

	// Permission rules
	ListRules(ctx context.Context, communityID string) ([]domain.PermissionRule, error)
	SaveRule(ctx context.Context, r *domain.PermissionRule) error

	// Entities and investments
	GetEntity(ctx context.Context, t domain.TargetType, entityID string) (*domain.Entity, error)
	SaveEntity(ctx context.Context, e *domain.Entity) error // upsert, never overwrites Balance
	AdjustEntityBalance(ctx context.Context, t domain.TargetType, entityID string, delta int64) error
	DrawEntityBalance(ctx context.Context, t domain.TargetType, entityID string, amount int64) (bool, error) // applies only if balance >= amount
	ListInvestments(ctx context.Context, publicationID string) ([]domain.Investment, error)
	AddInvestment(ctx context.Context, publicationID, investorID string, amount int64, now time.Time) error

	// Ledger
	AppendEntry(ctx context.Context, e *domain.LedgerEntry) error // domain.ErrDuplicate on a reused idempotency key
	GetEntryByKey(ctx context.Context, key string) (*domain.LedgerEntry, error)
	ListEntries(ctx context.Context, communityID string, f domain.LedgerFilter) ([]domain.LedgerEntry, int64, error)
}

// CommunitySettings returns the stored policy of a community, or fallback
// (with its ID set) when the community was never configured.
func CommunitySettings(ctx context.Context, s Store, communityID string, fallback domain.Community) (domain.Community, error) {
	c, err := s.GetCommunity(ctx, communityID)
	if errors.Is(err, domain.ErrNotFound) {
		fallback.ID = communityID
		return fallback, nil
	}
	if err != nil {
		return domain.Community{}, err
	}
	return *c, nil
}

// Page normalises a ledger filter's pagination, 20 per page by default and at most 100.
func Page(f domain.LedgerFilter) (page, pageSize, offset int) {
	page, pageSize = 1, 20
	if f.Page > 0 {
		page = f.Page
	}
	if f.PageSize > 0 && f.PageSize <= 100 {
		pageSize = f.PageSize
	}
	return page, pageSize, (page - 1) * pageSize
}
